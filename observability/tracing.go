package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/heraldhq/herald"

// Tracer provides OpenTelemetry tracing for Herald.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Herald tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartAttemptSpan starts a new span for a delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, eventID, tenantID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.delivery",
		trace.WithAttributes(
			attribute.String("herald.event_id", eventID),
			attribute.String("herald.tenant_id", tenantID),
			attribute.Int("herald.attempt", attempt),
		),
	)
}

// EndAttemptSpan ends a delivery span with result attributes.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("herald.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("herald.error", err))
	}
	span.End()
}
