package herald

import "time"

// Config holds the configuration for a Herald instance.
type Config struct {
	// MaxAttempts is the maximum number of delivery attempts per event.
	// Once reached, the event is marked failed and only a manual retry
	// can recover it.
	MaxAttempts int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// RetrySchedule defines the minimum wait between retry attempts,
	// indexed by attempt count. The retry sweep skips events whose most
	// recent attempt is younger than the interval for their attempt count.
	RetrySchedule []time.Duration

	// SweepInterval is how often the retry sweep scans for retryable events.
	SweepInterval time.Duration

	// Concurrency is the number of delivery worker goroutines used by the
	// retry sweep (and by async enqueue delivery).
	Concurrency int

	// BatchSize is the maximum number of events picked up per sweep cycle.
	BatchSize int

	// ResponseBodyLimit caps the stored response body size in bytes.
	ResponseBodyLimit int

	// UserAgent identifies the platform on outbound requests.
	UserAgent string

	// SyncDelivery controls whether Enqueue performs the first delivery
	// attempt synchronously before returning (the reference behavior) or
	// hands it to the worker pool so inbound provider-webhook processing is
	// never blocked on an untrusted tenant endpoint.
	SyncDelivery bool

	// TenantRatePerSec caps delivery attempts per second per tenant.
	// 0 means unlimited.
	TenantRatePerSec int
}

// DefaultRetrySchedule defines the default backoff intervals between
// attempts: 5 minutes after the first failure, 30 minutes after the second,
// 2 hours thereafter.
var DefaultRetrySchedule = []time.Duration{
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		RequestTimeout:    30 * time.Second,
		RetrySchedule:     DefaultRetrySchedule,
		SweepInterval:     time.Minute,
		Concurrency:       10,
		BatchSize:         50,
		ResponseBodyLimit: 5000,
		UserAgent:         "Herald-Webhooks/1.0",
		SyncDelivery:      true,
		TenantRatePerSec:  0,
	}
}
