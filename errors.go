package herald

import (
	"errors"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/tenant"
)

// Sentinel errors returned by Herald operations. Errors owned by subsystem
// packages are re-exported here so callers only need errors.Is against one
// package.
var (
	// ErrNoStore is returned when a Herald is created without a store.
	ErrNoStore = errors.New("herald: store is required")

	// ErrEventNotFound is returned when a webhook event cannot be found.
	ErrEventNotFound = event.ErrNotFound

	// ErrDuplicateIdempotencyKey is surfaced by stores when an event with
	// the same idempotency key already exists. Enqueue swallows it and
	// reports a no-op; it is not an error condition for callers.
	ErrDuplicateIdempotencyKey = event.ErrDuplicateKey

	// ErrTenantNotConfigured is returned when a tenant has no webhook
	// configuration on record.
	ErrTenantNotConfigured = tenant.ErrNotConfigured

	// ErrMissingIdempotencyKey is returned when Enqueue is called without an
	// idempotency key. Callers must derive one from the originating provider
	// event (e.g. "stripe_" + event id).
	ErrMissingIdempotencyKey = errors.New("herald: idempotency key is required")

	// ErrUnknownEventType is returned when enqueueing an event type that is
	// not registered in the catalog.
	ErrUnknownEventType = errors.New("herald: unknown event type")

	// ErrPayloadValidationFailed is returned when event data fails the
	// catalog's JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("herald: payload validation failed")

	// ErrAlreadyDelivered is returned when manually retrying an event that
	// has already been successfully delivered.
	ErrAlreadyDelivered = errors.New("herald: event already delivered")

	// ErrStoreClosed is returned when a store operation is attempted after the
	// store is closed.
	ErrStoreClosed = store.ErrClosed

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("herald: migration failed")
)
