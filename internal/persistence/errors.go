package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrInvariantViolation is returned when a commit-time assertion fails,
	// such as the participant counter drifting from the confirmed booking
	// count. The enclosing transaction is rolled back.
	ErrInvariantViolation = errors.New("persistence: invariant violation")
	// ErrUnavailable marks transient storage failures that callers may retry.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
