package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeBackend creates PaymentIntents through the Stripe API.
type StripeBackend struct {
	api *client.API
}

func NewStripeBackend(secretKey string) (*StripeBackend, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeBackend{api: api}, nil
}

func (s *StripeBackend) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice(req.MethodTypes),
	}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, classifyStripe(err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// classifyStripe treats client-side API errors as rejections and everything
// else (rate limits, 5xx, transport) as the processor being unavailable.
func classifyStripe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		status := se.HTTPStatusCode
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s (%s)", ErrUpstream, se.Msg, se.Code)
		}
		return fmt.Errorf("%w: stripe status %d: %s", ErrUnavailable, status, se.Msg)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
