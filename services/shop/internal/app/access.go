package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshop/internal/usertoken"
	"bookshop/pkg/domain"
)

type AccessKind int

const (
	AccessUnauthorized AccessKind = iota + 1
	AccessForbidden
)

func (k AccessKind) String() string {
	switch k {
	case AccessUnauthorized:
		return "unauthorized"
	case AccessForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// AccessError is a denied identity or role check. Reason is a short code
// meant for logs, never for clients.
type AccessError struct {
	Kind   AccessKind
	Reason string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
}

func (e *AccessError) Unwrap() error { return e.Err }

// Is lets callers match ErrUnauthorized and ErrForbidden.
func (e *AccessError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == AccessUnauthorized
	case ErrForbidden:
		return e.Kind == AccessForbidden
	}
	return false
}

func unauthorized(reason string, err error) *AccessError {
	return &AccessError{Kind: AccessUnauthorized, Reason: reason, Err: err}
}

func forbidden(reason string) *AccessError {
	return &AccessError{Kind: AccessForbidden, Reason: reason}
}

// IssueToken signs a one-hour credential for email.
func (a *App) IssueToken(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	return a.tokens.Issue(usertoken.Claims{Email: email})
}

// Authenticate verifies a bearer credential.
func (a *App) Authenticate(token string) (usertoken.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return usertoken.Claims{}, unauthorized("missing_token", nil)
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, usertoken.ErrExpired) {
			return usertoken.Claims{}, unauthorized("token_expired", err)
		}
		return usertoken.Claims{}, unauthorized("invalid_token", err)
	}
	return claims, nil
}

// RequireRole loads the caller's user record and checks it holds required.
// Store failures are returned as-is so they surface as server errors.
func (a *App) RequireRole(ctx context.Context, claims usertoken.Claims, required domain.Role) (domain.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return domain.User{}, unauthorized("missing_identity", nil)
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, forbidden("user_not_found")
	}
	if !user.Role.Allows(required) {
		return domain.User{}, forbidden("role_" + string(user.Role))
	}
	return user, nil
}

// AuthorizeSelf allows access only to the caller's own records.
func (a *App) AuthorizeSelf(claims usertoken.Claims, email string) error {
	if strings.TrimSpace(claims.Email) == "" {
		return unauthorized("missing_identity", nil)
	}
	if claims.Email != email {
		return forbidden("email_mismatch")
	}
	return nil
}

// IsAdmin reports whether email belongs to an admin. Unknown emails are not admins.
func (a *App) IsAdmin(ctx context.Context, email string) (bool, error) {
	user, ok, err := a.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, fmt.Errorf("fetch user: %w", err)
	}
	return ok && user.IsAdmin(), nil
}
