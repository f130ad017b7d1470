package event

import "errors"

// Sentinel errors for event persistence. The root herald package re-exports
// these under platform-level names.
var (
	// ErrNotFound is returned when an event cannot be found.
	ErrNotFound = errors.New("event: not found")

	// ErrDuplicateKey is returned when an event with the same idempotency
	// key already exists.
	ErrDuplicateKey = errors.New("event: duplicate idempotency key")
)
