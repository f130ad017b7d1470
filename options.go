package herald

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/tenant"
)

// WithStore sets the persistence backend for the Herald instance.
func WithStore(s store.Store) Option {
	return func(h *Herald) error {
		h.store = s
		return nil
	}
}

// WithResolver overrides where delivery-time webhook configuration comes
// from. Use this when tenant records live in the host application instead of
// the Herald store.
func WithResolver(r tenant.Resolver) Option {
	return func(h *Herald) error {
		h.resolver = r
		return nil
	}
}

// WithLogger sets the structured logger for the Herald instance.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Herald) error {
		h.logger = logger
		return nil
	}
}

// WithCatalog replaces the built-in billing event type catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(h *Herald) error {
		h.catalog = c
		return nil
	}
}

// WithMetrics registers Prometheus metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(h *Herald) error {
		h.metrics = observability.NewMetrics(reg)
		return nil
	}
}

// WithTracing enables OpenTelemetry spans around delivery attempts.
func WithTracing() Option {
	return func(h *Herald) error {
		h.tracer = observability.NewTracer()
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt cap per event.
func WithMaxAttempts(n int) Option {
	return func(h *Herald) error {
		h.config.MaxAttempts = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithRetrySchedule sets the backoff intervals between attempts.
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(h *Herald) error {
		h.config.RetrySchedule = schedule
		return nil
	}
}

// WithSweepInterval sets how often the retry sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.SweepInterval = d
		return nil
	}
}

// WithConcurrency sets the number of delivery workers.
func WithConcurrency(n int) Option {
	return func(h *Herald) error {
		h.config.Concurrency = n
		return nil
	}
}

// WithBatchSize sets the maximum events picked up per sweep cycle.
func WithBatchSize(n int) Option {
	return func(h *Herald) error {
		h.config.BatchSize = n
		return nil
	}
}

// WithResponseBodyLimit caps the stored response body size in bytes.
func WithResponseBodyLimit(n int) Option {
	return func(h *Herald) error {
		h.config.ResponseBodyLimit = n
		return nil
	}
}

// WithUserAgent sets the User-Agent on outbound deliveries.
func WithUserAgent(ua string) Option {
	return func(h *Herald) error {
		h.config.UserAgent = ua
		return nil
	}
}

// WithSyncDelivery controls whether Enqueue delivers synchronously before
// returning or hands the first attempt to the worker pool.
func WithSyncDelivery(sync bool) Option {
	return func(h *Herald) error {
		h.config.SyncDelivery = sync
		return nil
	}
}

// WithTenantRateLimit caps delivery attempts per second per tenant.
// 0 means unlimited.
func WithTenantRateLimit(perSec int) Option {
	return func(h *Herald) error {
		h.config.TenantRatePerSec = perSec
		return nil
	}
}

// WithConfig replaces the whole configuration at once. Apply it before
// field-level options if you combine them.
func WithConfig(cfg Config) Option {
	return func(h *Herald) error {
		h.config = cfg
		return nil
	}
}
