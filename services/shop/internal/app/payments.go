package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshop/internal/usertoken"
	"bookshop/pkg/domain"
	"bookshop/pkg/payment"
)

// CreatePaymentIntent prepares a card charge and returns only its client secret.
func (a *App) CreatePaymentIntent(ctx context.Context, price float64) (string, error) {
	intent, err := a.payments.CreateIntent(ctx, price)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}

// PaymentHistory lists the payments of email. Callers may only read their own.
func (a *App) PaymentHistory(ctx context.Context, claims usertoken.Claims, email string) ([]domain.Payment, error) {
	email = strings.TrimSpace(email)
	if err := a.AuthorizeSelf(claims, email); err != nil {
		return nil, err
	}
	payments, err := a.store.ListPaymentsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	return payments, nil
}
