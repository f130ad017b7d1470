// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for Herald delivery.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the metric instruments for Herald.
type Metrics struct {
	EventsEnqueuedTotal prometheus.Counter
	AttemptsTotal       *prometheus.CounterVec
	AttemptLatency      prometheus.Histogram
	PendingEvents       prometheus.Gauge
	ExhaustedEvents     prometheus.Gauge
}

// NewMetrics creates Herald metric instruments and registers them with reg.
// Pass prometheus.DefaultRegisterer for standalone usage.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsEnqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "herald_events_enqueued_total",
			Help: "Total webhook events accepted by the idempotency gate.",
		}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_delivery_attempts_total",
			Help: "Total delivery attempts by outcome (sent, retry, failed).",
		}, []string{"outcome"}),
		AttemptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "herald_delivery_latency_seconds",
			Help:    "Wall-clock duration of delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "herald_pending_events",
			Help: "Events awaiting delivery or retry.",
		}),
		ExhaustedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "herald_exhausted_events",
			Help: "Events that reached the attempt cap and require manual retry.",
		}),
	}

	reg.MustRegister(
		m.EventsEnqueuedTotal,
		m.AttemptsTotal,
		m.AttemptLatency,
		m.PendingEvents,
		m.ExhaustedEvents,
	)

	return m
}

// RecordAttempt records a delivery attempt with the given outcome and
// latency.
func (m *Metrics) RecordAttempt(outcome string, latencySeconds float64) {
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.AttemptLatency.Observe(latencySeconds)
}
