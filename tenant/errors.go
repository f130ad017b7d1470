package tenant

import "errors"

// ErrNotConfigured is returned when a tenant has no webhook configuration
// on record. The delivery engine treats it the same as an empty URL: the
// event fails immediately without an attempt.
var ErrNotConfigured = errors.New("tenant: webhook not configured")
