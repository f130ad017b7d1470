// Package delivery implements the webhook delivery engine: the signed HTTP
// send, outcome classification, attempt logging, and the backoff-gated retry
// sweep.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/lock"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/ratelimit"
	"github.com/heraldhq/herald/tenant"
)

// EngineStore is the narrow persistence interface the engine needs.
type EngineStore interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error)
	UpdateEvent(ctx context.Context, evt *event.WebhookEvent) error
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error)
	AppendLog(ctx context.Context, l *AttemptLog) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	MaxAttempts       int
	RequestTimeout    time.Duration
	RetrySchedule     []time.Duration
	SweepInterval     time.Duration
	Concurrency       int
	BatchSize         int
	ResponseBodyLimit int
	UserAgent         string
	TenantRatePerSec  int
	Metrics           *observability.Metrics
	Tracer            *observability.Tracer
}

// Engine performs delivery attempts and runs the periodic retry sweep.
//
// Deliver is a single synchronous attempt; it never schedules future work.
// The sweep (Start) re-invokes Deliver for events still in a retryable state
// once their backoff interval has elapsed.
type Engine struct {
	store   EngineStore
	tenants tenant.Resolver
	sender  *Sender
	retrier *Retrier
	limiter *ratelimit.Limiter
	config  EngineConfig
	logger  *slog.Logger

	// locks serializes Deliver per event id so a sweep pass and a manual
	// retry can never interleave attempts on the same event.
	locks *lock.KeyedMutex

	sem    chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, tenants tenant.Resolver, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Engine{
		store:   store,
		tenants: tenants,
		sender:  NewSender(cfg.RequestTimeout, cfg.ResponseBodyLimit, cfg.UserAgent),
		retrier: NewRetrier(cfg.RetrySchedule),
		limiter: ratelimit.New(),
		config:  cfg,
		logger:  logger,
		locks:   lock.New(),
		sem:     make(chan struct{}, cfg.Concurrency),
	}
}

// Retrier exposes the engine's backoff policy to the management API.
func (e *Engine) Retrier() *Retrier { return e.retrier }

// Start begins the retry sweep loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sweepLoop(ctx)
	}()
}

// Stop cancels the sweep loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Submit hands an event to the bounded worker pool for a best-effort
// delivery attempt without blocking the caller on the outbound HTTP call.
// The attempt is detached from the caller's cancellation so it outlives the
// originating request; context values (trace metadata) carry over.
func (e *Engine) Submit(ctx context.Context, evtID id.ID) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()

		if err := e.Deliver(ctx, evtID); err != nil {
			e.logger.ErrorContext(ctx, "delivery failed", "event_id", evtID, "error", err)
		}
	}()
}

// sweepLoop periodically scans for retryable events and dispatches those
// whose backoff has elapsed. Invoking it repeatedly is idempotent: Deliver
// enforces the attempts cap itself.
func (e *Engine) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	batch, err := e.store.ListRetryable(ctx, e.config.MaxAttempts, e.config.BatchSize)
	if err != nil {
		e.logger.ErrorContext(ctx, "retry sweep query failed", "error", err)
		return
	}

	now := time.Now().UTC()
	dispatched := 0
	for _, evt := range batch {
		if !e.retrier.Eligible(evt, now) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case e.sem <- struct{}{}:
		}

		e.wg.Add(1)
		dispatched++
		go func(evtID id.ID) {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			if err := e.Deliver(ctx, evtID); err != nil {
				e.logger.ErrorContext(ctx, "retry delivery failed", "event_id", evtID, "error", err)
			}
		}(evt.ID)
	}

	if dispatched > 0 {
		e.logger.DebugContext(ctx, "retry sweep dispatched", "candidates", len(batch), "dispatched", dispatched)
	}
}

// Deliver performs one delivery attempt for the event.
//
// Delivery failures (unreachable endpoint, non-2xx, timeout) are never
// returned as errors; they are captured entirely as persisted event state
// plus one attempt log. The returned error indicates the subsystem itself is
// unhealthy (store unavailable).
func (e *Engine) Deliver(ctx context.Context, evtID id.ID) error {
	key := evtID.String()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	evt, err := e.store.GetEvent(ctx, evtID)
	if errors.Is(err, event.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delivery: load event %s: %w", evtID, err)
	}
	if evt.Delivered() {
		return nil
	}
	prev := evt.Status

	cfg, cfgErr := e.tenants.WebhookConfig(ctx, evt.TenantID)
	if cfgErr != nil && !errors.Is(cfgErr, tenant.ErrNotConfigured) {
		return fmt.Errorf("delivery: resolve tenant %s: %w", evt.TenantID, cfgErr)
	}

	// Configuration error: terminal, no attempt made, no log entry. An
	// event that is already failed stays untouched, so repeated sweeps of
	// the same unconfigured tenant neither rewrite the row nor move the
	// gauges again.
	if cfgErr != nil || !cfg.Deliverable() {
		if prev == event.StatusFailed {
			return nil
		}
		evt.Status = event.StatusFailed
		evt.LastError = "no webhook URL configured"
		evt.Touch()
		if err := e.store.UpdateEvent(ctx, evt); err != nil {
			return fmt.Errorf("delivery: persist event %s: %w", evtID, err)
		}
		e.observeGauges(prev, event.StatusFailed)
		e.logger.WarnContext(ctx, "webhook dropped: tenant not configured",
			"event_id", evt.ID, "tenant_id", evt.TenantID)
		return nil
	}

	// Exhaustion: flip to failed without a new attempt or log row.
	if evt.Attempts >= e.config.MaxAttempts {
		if prev == event.StatusFailed {
			return nil
		}
		evt.Status = event.StatusFailed
		evt.Touch()
		if err := e.store.UpdateEvent(ctx, evt); err != nil {
			return fmt.Errorf("delivery: persist event %s: %w", evtID, err)
		}
		e.observeGauges(prev, event.StatusFailed)
		return nil
	}

	if e.config.TenantRatePerSec > 0 {
		if err := e.limiter.Wait(ctx, evt.TenantID, e.config.TenantRatePerSec); err != nil {
			return fmt.Errorf("delivery: rate limit wait: %w", err)
		}
	}

	// Persist the intermediate sending state before the network call so a
	// crash mid-delivery leaves a recoverable, non-silently-lost state.
	evt.Attempts++
	evt.Status = event.StatusSending
	if evt.Attempts == 1 {
		now := time.Now().UTC()
		evt.SentAt = &now
	}
	evt.Touch()
	if err := e.store.UpdateEvent(ctx, evt); err != nil {
		return fmt.Errorf("delivery: persist event %s: %w", evtID, err)
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartAttemptSpan(ctx, evt.ID.String(), evt.TenantID, evt.Attempts)
	}

	result := e.sender.Send(ctx, cfg, evt)

	now := time.Now().UTC()
	evt.LastAttemptAt = &now

	outcome := e.classify(evt, result, now)

	logEntry := &AttemptLog{
		ID:              id.NewLogID(),
		EventID:         evt.ID,
		AttemptNumber:   evt.Attempts,
		RequestURL:      result.RequestURL,
		RequestHeaders:  result.RequestHeaders,
		RequestBody:     result.RequestBody,
		ResponseHeaders: result.ResponseHeaders,
		ResponseBody:    result.ResponseBody,
		ErrorMessage:    evt.LastError,
		DurationMs:      result.DurationMs,
		CreatedAt:       now,
	}
	if result.StatusCode != 0 {
		code := result.StatusCode
		logEntry.ResponseCode = &code
	}

	evt.Touch()
	persistErr := e.store.UpdateEvent(ctx, evt)
	logErr := e.store.AppendLog(ctx, logEntry)

	if e.config.Metrics != nil {
		e.config.Metrics.RecordAttempt(outcome, float64(result.DurationMs)/1000.0)
	}
	e.observeGauges(prev, evt.Status)
	if span != nil {
		e.config.Tracer.EndAttemptSpan(span, result.StatusCode, result.DurationMs, evt.LastError)
	}

	switch evt.Status {
	case event.StatusSent:
		e.logger.DebugContext(ctx, "webhook delivered",
			"event_id", evt.ID, "tenant_id", evt.TenantID,
			"attempt", evt.Attempts, "status", result.StatusCode, "duration_ms", result.DurationMs)
	case event.StatusFailed:
		e.logger.WarnContext(ctx, "webhook delivery exhausted",
			"event_id", evt.ID, "tenant_id", evt.TenantID,
			"attempts", evt.Attempts, "error", evt.LastError)
	default:
		e.logger.DebugContext(ctx, "webhook delivery will retry",
			"event_id", evt.ID, "tenant_id", evt.TenantID,
			"attempt", evt.Attempts, "error", evt.LastError,
			"next_eligible_at", e.retrier.NextEligibleAt(evt))
	}

	if persistErr != nil || logErr != nil {
		return fmt.Errorf("delivery: persist attempt %d of %s: %w", evt.Attempts, evtID, errors.Join(persistErr, logErr))
	}
	return nil
}

// classify maps the attempt result onto the event's delivery state and
// returns the metrics outcome label.
func (e *Engine) classify(evt *event.WebhookEvent, result Result, now time.Time) string {
	switch {
	case result.StatusCode >= 200 && result.StatusCode < 300 && result.Error == "":
		evt.Status = event.StatusSent
		evt.SucceededAt = &now
		code := result.StatusCode
		evt.ResponseCode = &code
		evt.ResponseBody = result.ResponseBody
		evt.LastError = ""
		return "sent"

	case result.StatusCode != 0:
		// Application-level rejection (or a response we failed to read):
		// retryable.
		code := result.StatusCode
		evt.ResponseCode = &code
		evt.ResponseBody = result.ResponseBody
		if result.Error != "" {
			evt.LastError = result.Error
		} else {
			evt.LastError = fmt.Sprintf("HTTP %d: %s", result.StatusCode, result.ResponseBody)
		}

	default:
		// Transport error: timeout, connection failure, or anything else
		// unexpected. Always retryable, never raised.
		evt.LastError = result.Error
	}

	if evt.Attempts >= e.config.MaxAttempts {
		evt.Status = event.StatusFailed
		return "failed"
	}
	evt.Status = event.StatusPending
	return "retry"
}

// observeGauges reconciles the pending/exhausted gauges with a persisted
// status transition. Enqueue and manual retry adjust the pending gauge on
// intake; the engine moves gauges only when the status actually changes, so
// re-sweeping a terminal event is gauge-neutral.
func (e *Engine) observeGauges(prev, next event.Status) {
	if e.config.Metrics == nil || prev == next {
		return
	}
	if prev == event.StatusFailed {
		e.config.Metrics.ExhaustedEvents.Dec()
	}
	if next == event.StatusFailed {
		e.config.Metrics.ExhaustedEvents.Inc()
	}
	if inFlight(prev) && !inFlight(next) {
		e.config.Metrics.PendingEvents.Dec()
	}
	if !inFlight(prev) && inFlight(next) {
		e.config.Metrics.PendingEvents.Inc()
	}
}

// inFlight reports whether a status counts toward the pending gauge.
func inFlight(s event.Status) bool {
	return s == event.StatusPending || s == event.StatusSending
}
