package application

import (
	"errors"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication input cannot be verified.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when an otherwise valid login targets a disabled account.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session token has passed its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was explicitly revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrInvalidState is returned when a workflow transition is not allowed
	// from the record's current status.
	ErrInvalidState = errors.New("application: invalid state transition")
	// ErrInUse is returned when a delete is blocked by records that still
	// reference the target.
	ErrInUse = errors.New("application: resource in use")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// mapPersistenceError lifts storage sentinels into application sentinels so
// callers never depend on the persistence package.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrInUse
	default:
		return err
	}
}
