package app

import (
	"context"
	"fmt"
	"strings"

	"bookshop/pkg/domain"
)

const msgUserExists = "user already exists"

// CreateUserResult is the outcome of an insert-if-absent. InsertedID is nil
// when the email was already registered.
type CreateUserResult struct {
	Acknowledged bool    `json:"acknowledged,omitempty"`
	Message      string  `json:"message,omitempty"`
	InsertedID   *string `json:"insertedId"`
}

func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateUser registers an email once. New users always start as regular;
// the role can only be raised through MakeAdmin.
func (a *App) CreateUser(ctx context.Context, u domain.User) (CreateUserResult, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return CreateUserResult{}, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	u.ID = ""
	u.Name = strings.TrimSpace(u.Name)
	u.Role = domain.RoleRegular
	id, created, err := a.store.InsertUserIfAbsent(ctx, u)
	if err != nil {
		return CreateUserResult{}, fmt.Errorf("create user: %w", err)
	}
	if !created {
		return CreateUserResult{Message: msgUserExists}, nil
	}
	return CreateUserResult{Acknowledged: true, InsertedID: &id}, nil
}

func (a *App) MakeAdmin(ctx context.Context, id string) (UpdateOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UpdateOutcome{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	res, err := a.store.SetUserRole(ctx, id, domain.RoleAdmin)
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("make admin: %w", err)
	}
	return UpdateOutcome{Acknowledged: true, UpdateResult: res}, nil
}

func (a *App) DeleteUser(ctx context.Context, id string) (DeleteOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeleteOutcome{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	n, err := a.store.DeleteUser(ctx, id)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("delete user: %w", err)
	}
	return DeleteOutcome{Acknowledged: true, DeletedCount: n}, nil
}
