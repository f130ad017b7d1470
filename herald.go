package herald

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/tenant"
)

// Herald is the root webhook notification engine.
type Herald struct {
	config    Config
	store     store.Store
	resolver  tenant.Resolver
	catalog   *catalog.Catalog
	tenantSvc *tenant.Service
	engine    *delivery.Engine
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Option configures a Herald instance.
type Option func(*Herald) error

// New creates a new Herald with the given options.
func New(opts ...Option) (*Herald, error) {
	h := &Herald{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	h.wireServices()
	return h, nil
}

// storeResolver adapts the tenant store to the delivery-time Resolver.
type storeResolver struct {
	store tenant.Store
}

func (r storeResolver) WebhookConfig(ctx context.Context, tenantID string) (*tenant.Webhook, error) {
	return r.store.GetWebhook(ctx, tenantID)
}

// wireServices initializes the internal services after options have been applied.
func (h *Herald) wireServices() {
	if h.catalog == nil {
		h.catalog = catalog.Default()
	}
	if h.resolver == nil {
		h.resolver = storeResolver{store: h.store}
	}

	h.tenantSvc = tenant.NewService(h.store, h.logger)

	h.engine = delivery.NewEngine(h.store, h.resolver, delivery.EngineConfig{
		MaxAttempts:       h.config.MaxAttempts,
		RequestTimeout:    h.config.RequestTimeout,
		RetrySchedule:     h.config.RetrySchedule,
		SweepInterval:     h.config.SweepInterval,
		Concurrency:       h.config.Concurrency,
		BatchSize:         h.config.BatchSize,
		ResponseBodyLimit: h.config.ResponseBodyLimit,
		UserAgent:         h.config.UserAgent,
		TenantRatePerSec:  h.config.TenantRatePerSec,
		Metrics:           h.metrics,
		Tracer:            h.tracer,
	}, h.logger)
}

// Migrate prepares the backing store (tables, indexes, collections).
// Idempotent; call once at startup before Start.
func (h *Herald) Migrate(ctx context.Context) error {
	if err := h.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

// Start begins the retry sweep.
func (h *Herald) Start(ctx context.Context) {
	h.engine.Start(ctx)
}

// Stop shuts down the retry sweep and waits for in-flight deliveries.
func (h *Herald) Stop(ctx context.Context) {
	h.engine.Stop(ctx)
}

// Enqueue validates and persists a webhook event for the tenant, then
// performs the first delivery attempt.
//
// The idempotency key is the dedup gate: a key that was seen before makes
// Enqueue return (nil, nil) without creating anything, so callers can safely
// re-run intake for retried provider webhooks. Delivery failures are not
// errors; the event's persisted state carries the outcome.
func (h *Herald) Enqueue(ctx context.Context, tenantID, eventType string, payload any, idempotencyKey string) (*event.WebhookEvent, error) {
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}

	def, err := h.catalog.Get(eventType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	if len(def.Schema) > 0 {
		if err := h.catalog.ValidatePayload(eventType, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadValidationFailed, err)
		}
	}

	evt := &event.WebhookEvent{
		Entity:         entity.New(),
		ID:             id.NewEventID(),
		TenantID:       tenantID,
		Type:           eventType,
		Payload:        payload,
		Status:         event.StatusPending,
		IdempotencyKey: idempotencyKey,
	}

	if err := h.store.CreateEvent(ctx, evt); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			h.logger.DebugContext(ctx, "duplicate webhook event skipped",
				"tenant_id", tenantID, "event_type", eventType, "idempotency_key", idempotencyKey)
			return nil, nil
		}
		return nil, fmt.Errorf("herald: persist event: %w", err)
	}

	if h.metrics != nil {
		h.metrics.EventsEnqueuedTotal.Inc()
		h.metrics.PendingEvents.Inc()
	}
	h.logger.DebugContext(ctx, "webhook event enqueued",
		"event_id", evt.ID, "tenant_id", tenantID, "event_type", eventType)

	if h.config.SyncDelivery {
		if err := h.engine.Deliver(ctx, evt.ID); err != nil {
			return nil, err
		}
		return h.store.GetEvent(ctx, evt.ID)
	}

	h.engine.Submit(ctx, evt.ID)
	return evt, nil
}

// Retry manually replays a failed or stuck event: it resets the delivery
// state so the attempt cap starts over, then attempts delivery immediately.
func (h *Herald) Retry(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	evt, err := h.store.GetEvent(ctx, evtID)
	if err != nil {
		return nil, err
	}
	if evt.Delivered() {
		return nil, ErrAlreadyDelivered
	}

	wasExhausted := evt.Status == event.StatusFailed

	evt.Status = event.StatusPending
	evt.Attempts = 0
	evt.LastError = ""
	evt.ResponseCode = nil
	evt.ResponseBody = ""
	evt.LastAttemptAt = nil
	evt.Touch()
	if err := h.store.UpdateEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("herald: reset event %s: %w", evtID, err)
	}

	if h.metrics != nil {
		h.metrics.PendingEvents.Inc()
		if wasExhausted {
			h.metrics.ExhaustedEvents.Dec()
		}
	}
	h.logger.InfoContext(ctx, "manual webhook retry",
		"event_id", evt.ID, "tenant_id", evt.TenantID, "event_type", evt.Type)

	if err := h.engine.Deliver(ctx, evt.ID); err != nil {
		return nil, err
	}
	return h.store.GetEvent(ctx, evt.ID)
}

// Event returns a single webhook event.
func (h *Herald) Event(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	return h.store.GetEvent(ctx, evtID)
}

// Events lists a tenant's webhook events, newest first.
func (h *Herald) Events(ctx context.Context, tenantID string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	return h.store.ListEvents(ctx, tenantID, opts)
}

// CountEvents returns the number of events matching the filter.
func (h *Herald) CountEvents(ctx context.Context, tenantID string, opts event.ListOpts) (int64, error) {
	return h.store.CountEvents(ctx, tenantID, opts)
}

// Logs returns the delivery attempt logs for an event, ordered by attempt.
func (h *Herald) Logs(ctx context.Context, evtID id.ID) ([]*delivery.AttemptLog, error) {
	return h.store.ListLogs(ctx, evtID)
}

// Stats aggregates delivery outcomes for a tenant. An empty tenantID
// aggregates platform-wide.
func (h *Herald) Stats(ctx context.Context, tenantID string) (*event.Stats, error) {
	return h.store.EventStats(ctx, tenantID)
}

// Tenants returns the tenant webhook configuration service.
func (h *Herald) Tenants() *tenant.Service {
	return h.tenantSvc
}

// Catalog returns the event type catalog.
func (h *Herald) Catalog() *catalog.Catalog {
	return h.catalog
}

// Store returns the underlying store.
func (h *Herald) Store() store.Store {
	return h.store
}

// Retrier exposes the backoff policy, for surfacing next-attempt times.
func (h *Herald) Retrier() *delivery.Retrier {
	return h.engine.Retrier()
}

// Config returns the effective configuration.
func (h *Herald) Config() Config {
	return h.config
}
