package catalog

import "encoding/json"

// Definition is the canonical description of a webhook event type. Event
// types are code-defined by the platform: registered at boot, not persisted.
type Definition struct {
	// Name is the dot-separated event type name.
	// Convention: "<resource>.<action>", e.g. "payment.succeeded".
	Name string `json:"type"`

	// Description is a human-readable explanation of when this event fires.
	Description string `json:"description"`

	// Schema is an optional JSON Schema describing the payload shape.
	// When set, Enqueue validates the event payload against it.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Version is the API version of this event type.
	// Convention: date-based, e.g. "2025-01-01".
	Version string `json:"version,omitempty"`

	// Example is an optional example payload for documentation.
	Example json.RawMessage `json:"example,omitempty"`
}
