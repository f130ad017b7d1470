package event

import (
	"context"

	"github.com/heraldhq/herald/id"
)

// Store defines the persistence contract for webhook events.
type Store interface {
	// CreateEvent persists a new event. Must be durable before returning.
	// Implementations must enforce idempotency-key uniqueness at the storage
	// layer (unique index, SETNX, ...) and return ErrDuplicateKey
	// on conflict. An existence pre-check alone is racy under concurrent
	// callers with the same key.
	CreateEvent(ctx context.Context, evt *WebhookEvent) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*WebhookEvent, error)

	// UpdateEvent persists delivery-state mutations (status, attempts,
	// response fields, timestamps). Type, payload, and idempotency key are
	// immutable after creation.
	UpdateEvent(ctx context.Context, evt *WebhookEvent) error

	// ListEvents returns a tenant's events, newest first, optionally
	// filtered by type and status.
	ListEvents(ctx context.Context, tenantID string, opts ListOpts) ([]*WebhookEvent, error)

	// CountEvents returns the number of events matching the filter, for
	// pagination metadata.
	CountEvents(ctx context.Context, tenantID string, opts ListOpts) (int64, error)

	// ListRetryable returns retry-sweep candidates: events with status
	// pending, sending, or failed and attempts below the cap, oldest first.
	// Failed rows are included leniently; the engine's cap check decides.
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*WebhookEvent, error)

	// EventStats aggregates delivery outcomes for a tenant. An empty
	// tenantID aggregates platform-wide.
	EventStats(ctx context.Context, tenantID string) (*Stats, error)
}
