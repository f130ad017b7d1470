package event

import (
	"time"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
)

// Status represents the delivery state of a webhook event.
type Status string

const (
	// StatusPending indicates the event is awaiting a delivery attempt
	// (either its first, or a retry after a failed attempt).
	StatusPending Status = "pending"

	// StatusSending indicates a delivery attempt is in flight. Events stuck
	// in this state after a crash are picked up by the retry sweep.
	StatusSending Status = "sending"

	// StatusSent indicates the event was successfully delivered (2xx).
	StatusSent Status = "sent"

	// StatusFailed indicates delivery is exhausted or impossible. Only a
	// manual retry can recover a failed event.
	StatusFailed Status = "failed"
)

// WebhookEvent is one logical business event to notify a tenant about.
//
// Type, Payload, and IdempotencyKey are immutable after creation; only
// delivery-state fields change, and only the delivery engine (plus the
// manual-retry operation) mutates them.
type WebhookEvent struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// TenantID identifies the tenant that owns and receives this event.
	TenantID string `json:"tenant_id"`

	// Type is the dot-separated event type name (e.g. "payment.succeeded").
	Type string `json:"event_type"`

	// Payload is the event data. Opaque to the delivery engine beyond
	// being serializable.
	Payload any `json:"payload"`

	// Status is the current delivery state.
	Status Status `json:"status"`

	// Attempts is the number of delivery attempts made so far. It only
	// increases, except for the manual-retry reset.
	Attempts int `json:"attempts"`

	// ResponseCode is the HTTP status of the last response observed.
	// Nil until an attempt receives a response.
	ResponseCode *int `json:"response_code,omitempty"`

	// ResponseBody is the last response body observed, truncated to the
	// configured cap.
	ResponseBody string `json:"response_body,omitempty"`

	// LastError describes the most recent delivery failure.
	LastError string `json:"last_error,omitempty"`

	// IdempotencyKey is globally unique; it enforces at-most-one event per
	// logical occurrence.
	IdempotencyKey string `json:"idempotency_key"`

	// SentAt is when the first delivery attempt started.
	SentAt *time.Time `json:"sent_at,omitempty"`

	// SucceededAt is set if and only if Status is sent.
	SucceededAt *time.Time `json:"succeeded_at,omitempty"`

	// LastAttemptAt is when the most recent attempt completed. The retry
	// sweep uses it to apply the backoff schedule.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Delivered reports whether the event has been successfully delivered.
func (e *WebhookEvent) Delivered() bool {
	return e.Status == StatusSent
}

// Retryable reports whether the event is a candidate for another automatic
// attempt under the given cap. The engine's own cap check is authoritative;
// this mirrors it for store queries and API display.
func (e *WebhookEvent) Retryable(maxAttempts int) bool {
	if e.Status == StatusSent {
		return false
	}
	return e.Attempts < maxAttempts
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   string
	Status Status
	From   *time.Time
	To     *time.Time
}

// Stats aggregates delivery outcomes for a tenant (or platform-wide when
// the tenant filter is empty).
type Stats struct {
	TotalEvents     int64            `json:"total_events"`
	ByStatus        map[Status]int64 `json:"by_status"`
	SuccessRate     float64          `json:"success_rate"`
	AverageAttempts float64          `json:"average_attempts"`
}
