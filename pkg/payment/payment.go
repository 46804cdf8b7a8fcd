package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrUpstream means the processor answered but refused the intent.
	ErrUpstream = errors.New("payment processor rejected the request")
	// ErrUnavailable means the processor could not be reached or the breaker is open.
	ErrUnavailable   = errors.New("payment processor unavailable")
	ErrInvalidAmount = errors.New("price must be a positive amount")
)

const (
	CurrencyUSD = "usd"
	MethodCard  = "card"
)

// Intent is the processor's handle for a pending charge. Only ClientSecret
// is returned to browsers.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// IntentRequest describes the charge to prepare, in minor units.
type IntentRequest struct {
	Amount      int64
	Currency    string
	MethodTypes []string
}

// Backend talks to a concrete processor. Implementations classify failures
// by wrapping ErrUpstream or ErrUnavailable.
type Backend interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// AmountInCents converts a decimal price to whole cents, rounding half away
// from zero.
func AmountInCents(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, ErrInvalidAmount
	}
	cents := math.Round(price * 100)
	if cents < 1 || cents > math.MaxInt32 {
		return 0, ErrInvalidAmount
	}
	return int64(cents), nil
}

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Processor creates card payment intents in USD through a Backend guarded by
// a circuit breaker. Processor rejections do not count as breaker failures.
type Processor struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker[Intent]
}

func NewProcessor(backend Backend, settings BreakerSettings) (*Processor, error) {
	if backend == nil {
		return nil, errors.New("payment backend is required")
	}
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := settings.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[Intent](gobreaker.Settings{
		Name:        "payment-intents",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUpstream) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Processor{backend: backend, breaker: breaker}, nil
}

// CreateIntent prepares a card charge for price dollars.
func (p *Processor) CreateIntent(ctx context.Context, price float64) (Intent, error) {
	amount, err := AmountInCents(price)
	if err != nil {
		return Intent{}, err
	}
	intent, err := p.breaker.Execute(func() (Intent, error) {
		return p.backend.CreateIntent(ctx, IntentRequest{
			Amount:      amount,
			Currency:    CurrencyUSD,
			MethodTypes: []string{MethodCard},
		})
	})
	if err != nil {
		return Intent{}, classify(err)
	}
	if strings.TrimSpace(intent.ClientSecret) == "" {
		return Intent{}, fmt.Errorf("%w: empty client secret", ErrUpstream)
	}
	return intent, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
