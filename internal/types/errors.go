package types

import "errors"

// Sentinel errors shared across the service layers. Handlers map these to
// HTTP status codes; repositories and services wrap them with context via
// fmt.Errorf("...: %w", err).
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrAccountLocked   = errors.New("account temporarily locked")
	ErrValidation      = errors.New("validation failed")
	ErrTokenExpired    = errors.New("token invalid or expired")
)

// ValidationError carries the full set of failed rules so that clients see
// every violation, not just the first.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError from the failing rules.
func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}
