package app

import "errors"

var (
	// ErrInvalidInput wraps request validation failures. The wrapped detail is
	// safe to show to clients.
	ErrInvalidInput = errors.New("invalid input")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrNotFound is only used where a missing record blocks a mutation.
	// Plain lookups report absence with a nil result instead.
	ErrNotFound = errors.New("not found")

	ErrCoversDisabled = errors.New("cover uploads are not configured")
)
