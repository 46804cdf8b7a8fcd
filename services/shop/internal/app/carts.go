package app

import (
	"context"
	"fmt"
	"strings"

	"bookshop/pkg/domain"
)

// ListCart returns the items owned by email.
func (a *App) ListCart(ctx context.Context, email string) ([]domain.CartItem, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	items, err := a.store.ListCartItems(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return items, nil
}

func (a *App) AddToCart(ctx context.Context, item domain.CartItem) (InsertOutcome, error) {
	item.Email = strings.TrimSpace(item.Email)
	if item.Email == "" {
		return InsertOutcome{}, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if !validPrice(item.Price) {
		return InsertOutcome{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	item.ID = ""
	id, err := a.store.InsertCartItem(ctx, item)
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("add to cart: %w", err)
	}
	return InsertOutcome{Acknowledged: true, InsertedID: id}, nil
}

func (a *App) RemoveFromCart(ctx context.Context, id string) (DeleteOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeleteOutcome{}, fmt.Errorf("%w: cart item id required", ErrInvalidInput)
	}
	n, err := a.store.DeleteCartItem(ctx, id)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("remove from cart: %w", err)
	}
	return DeleteOutcome{Acknowledged: true, DeletedCount: n}, nil
}
