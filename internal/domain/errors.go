package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Verification workflow failures.
	ErrInvalidCode = errors.New("invalid code")
	ErrExpired     = errors.New("expired")
	ErrDelivery    = errors.New("delivery failed")

	// Uniqueness violations reported by the user store. Both are ErrConflict.
	ErrEmailTaken    = fmt.Errorf("email taken: %w", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("username taken: %w", ErrConflict)
)

// Error carries a client-facing message alongside the sentinel that classifies it.
// errors.Is(err, ErrConflict) still works through Unwrap.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
