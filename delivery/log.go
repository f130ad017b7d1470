package delivery

import (
	"time"

	"github.com/heraldhq/herald/id"
)

// AttemptLog is the audit record for one delivery attempt. Exactly one log
// exists per attempt number, numbered contiguously from 1; rows are
// append-only and never mutated. Logs are owned by their event and removed
// with it in cascade.
type AttemptLog struct {
	// ID is the unique TypeID for this log entry.
	ID id.ID `json:"id"`

	// EventID references the owning webhook event.
	EventID id.ID `json:"event_id"`

	// AttemptNumber is 1-based and matches the event's attempts counter at
	// the time of this attempt.
	AttemptNumber int `json:"attempt_number"`

	// RequestURL is the destination the attempt was sent to.
	RequestURL string `json:"request_url"`

	// RequestHeaders are the headers sent, including the signature.
	RequestHeaders map[string]string `json:"request_headers"`

	// RequestBody is the exact canonical payload sent on the wire.
	RequestBody string `json:"request_body"`

	// ResponseCode is the HTTP status received. Nil if the request never
	// got a response (timeout, connection error).
	ResponseCode *int `json:"response_code,omitempty"`

	// ResponseHeaders are the headers of the response, if any.
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`

	// ResponseBody is the response body, truncated to the configured cap.
	ResponseBody string `json:"response_body,omitempty"`

	// ErrorMessage describes a network-level or HTTP-level failure.
	ErrorMessage string `json:"error_message,omitempty"`

	// DurationMs is the wall-clock time of the attempt.
	DurationMs int `json:"duration_ms"`

	// CreatedAt is when the attempt completed.
	CreatedAt time.Time `json:"created_at"`
}
