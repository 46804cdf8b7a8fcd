package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshop/internal/util"
	"bookshop/pkg/domain"
	"bookshop/pkg/queue"
	"bookshop/pkg/store"
)

const msgCartNotCleared = "payment recorded but cart items could not be removed"

type PaymentOutcome struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// DeletionOutcome describes the cart clearing step of a checkout. A failed
// deletion is reported here rather than as an error.
type DeletionOutcome struct {
	Acknowledged   bool   `json:"acknowledged"`
	RequestedCount int    `json:"requestedCount"`
	DeletedCount   int64  `json:"deletedCount"`
	Error          string `json:"error,omitempty"`
	CleanupJobID   string `json:"cleanupJobId,omitempty"`
}

type CheckoutResult struct {
	Payment  PaymentOutcome  `json:"paymentResult"`
	Deletion DeletionOutcome `json:"deleteResult"`
}

// Partial reports a recorded payment whose cart items are still present.
func (r CheckoutResult) Partial() bool {
	return r.Payment.Acknowledged && !r.Deletion.Acknowledged
}

// RecordPayment stores p and then deletes the cart items it paid for. The
// two steps are not atomic: if the insert fails nothing is deleted, and if
// the deletion fails the payment stays recorded and the result is partial.
func (a *App) RecordPayment(ctx context.Context, p domain.Payment) (CheckoutResult, error) {
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return CheckoutResult{}, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if !validPrice(p.Price) {
		return CheckoutResult{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if p.BookItemIDs == nil {
		p.BookItemIDs = []string{}
	}
	if p.CartIDs == nil {
		p.CartIDs = []string{}
	}
	if p.Date.IsZero() {
		p.Date = a.now().UTC()
	}
	p.ID = ""

	logger := util.LoggerFromContext(ctx)
	paymentID, err := a.store.InsertPayment(ctx, p)
	if err != nil {
		if !errors.Is(err, store.ErrWrite) {
			err = fmt.Errorf("%w: %w", store.ErrWrite, err)
		}
		return CheckoutResult{}, fmt.Errorf("record payment: %w", err)
	}

	result := CheckoutResult{
		Payment: PaymentOutcome{Acknowledged: true, InsertedID: paymentID},
		Deletion: DeletionOutcome{
			Acknowledged:   true,
			RequestedCount: len(p.CartIDs),
		},
	}
	if len(p.CartIDs) == 0 {
		return result, nil
	}

	deleted, err := a.store.DeleteCartItems(ctx, p.CartIDs)
	if err != nil {
		logger.Error("checkout cart deletion failed",
			"payment_id", paymentID,
			"email", p.Email,
			"cart_ids", p.CartIDs,
			"err", err,
		)
		result.Deletion.Acknowledged = false
		result.Deletion.Error = msgCartNotCleared
		if a.cleanup != nil {
			job, qerr := a.cleanup.Enqueue(context.WithoutCancel(ctx), paymentID, p.CartIDs)
			if qerr != nil {
				logger.Error("enqueue cart cleanup failed", "payment_id", paymentID, "err", qerr)
			} else {
				result.Deletion.CleanupJobID = job.ID
				logger.Info("cart cleanup queued", "payment_id", paymentID, "job_id", job.ID)
			}
		}
		return result, nil
	}
	result.Deletion.DeletedCount = deleted
	return result, nil
}

// CleanupCart is the cleanup worker's handler. It deletes whatever listed
// cart items still exist.
func (a *App) CleanupCart(ctx context.Context, job queue.CleanupJob) (int64, error) {
	deleted, err := a.store.DeleteCartItems(ctx, job.CartIDs)
	if err != nil {
		return 0, fmt.Errorf("cleanup cart for payment %s: %w", job.PaymentID, err)
	}
	return deleted, nil
}
