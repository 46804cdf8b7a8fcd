package app

import (
	"context"
	"errors"
	"time"

	"bookshop/internal/usertoken"
	"bookshop/pkg/payment"
	"bookshop/pkg/queue"
	"bookshop/pkg/storage"
	"bookshop/pkg/store"
)

// IntentCreator prepares processor-side payment intents.
type IntentCreator interface {
	CreateIntent(ctx context.Context, price float64) (payment.Intent, error)
}

// CleanupEnqueuer schedules out-of-band removal of cart items.
type CleanupEnqueuer interface {
	Enqueue(ctx context.Context, paymentID string, cartIDs []string) (queue.CleanupJob, error)
}

// Config wires the dependencies of the shop application. Cleanup and Covers
// are optional.
type Config struct {
	Store    store.Store
	Tokens   *usertoken.Service
	Payments IntentCreator
	Cleanup  CleanupEnqueuer
	Covers   storage.CoverStore
	Now      func() time.Time
}

// App holds the shop's business operations. It is safe for concurrent use.
type App struct {
	store    store.Store
	tokens   *usertoken.Service
	payments IntentCreator
	cleanup  CleanupEnqueuer
	covers   storage.CoverStore
	now      func() time.Time
}

func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token service is required")
	}
	if cfg.Payments == nil {
		return nil, errors.New("payment processor is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:    cfg.Store,
		tokens:   cfg.Tokens,
		payments: cfg.Payments,
		cleanup:  cfg.Cleanup,
		covers:   cfg.Covers,
		now:      now,
	}, nil
}

// InsertOutcome reports a single inserted record.
type InsertOutcome struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateOutcome reports a single-document update.
type UpdateOutcome struct {
	Acknowledged bool `json:"acknowledged"`
	store.UpdateResult
}

// DeleteOutcome reports how many records a delete removed.
type DeleteOutcome struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
