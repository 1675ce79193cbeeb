package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")

	// ErrDuplicate is returned when a unique constraint rejects the record.
	ErrDuplicate = errors.New("persistence: duplicate record")

	// ErrConstraintViolation is returned when a record violates a check
	// constraint or arrives structurally incomplete.
	ErrConstraintViolation = errors.New("persistence: constraint violation")

	// ErrForeignKeyViolation is returned when a record references or is
	// referenced by rows that block the operation.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
