// Package memory provides an in-memory store for tests and embedded
// single-process deployments. All state is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	heraldstore "github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/tenant"
)

var _ heraldstore.Store = (*Store)(nil)

// Store is a thread-safe in-memory implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	webhooks map[string]*tenant.Webhook        // tenant id -> config
	events   map[string]*event.WebhookEvent    // event id -> event
	idemKeys map[string]string                 // idempotency key -> event id
	logs     map[string][]*delivery.AttemptLog // event id -> logs
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		webhooks: make(map[string]*tenant.Webhook),
		events:   make(map[string]*event.WebhookEvent),
		idemKeys: make(map[string]string),
		logs:     make(map[string][]*delivery.AttemptLog),
	}
}

// SaveWebhook implements tenant.Store.
func (s *Store) SaveWebhook(_ context.Context, w *tenant.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.webhooks[w.TenantID] = &cp
	return nil
}

// GetWebhook implements tenant.Store.
func (s *Store) GetWebhook(_ context.Context, tenantID string) (*tenant.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.webhooks[tenantID]
	if !ok {
		return nil, tenant.ErrNotConfigured
	}
	cp := *w
	return &cp, nil
}

// DeleteWebhook implements tenant.Store.
func (s *Store) DeleteWebhook(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.webhooks, tenantID)
	return nil
}

// WebhookConfig makes the store usable directly as a tenant.Resolver.
func (s *Store) WebhookConfig(ctx context.Context, tenantID string) (*tenant.Webhook, error) {
	return s.GetWebhook(ctx, tenantID)
}

// CreateEvent implements event.Store. The idempotency-key check and insert
// happen under one lock, which is this backend's storage-level uniqueness
// guarantee.
func (s *Store) CreateEvent(_ context.Context, evt *event.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idemKeys[evt.IdempotencyKey]; exists {
		return event.ErrDuplicateKey
	}

	cp := *evt
	s.events[evt.ID.String()] = &cp
	s.idemKeys[evt.IdempotencyKey] = evt.ID.String()
	return nil
}

// GetEvent implements event.Store.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrNotFound
	}
	cp := *evt
	return &cp, nil
}

// UpdateEvent implements event.Store.
func (s *Store) UpdateEvent(_ context.Context, evt *event.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[evt.ID.String()]; !ok {
		return event.ErrNotFound
	}
	cp := *evt
	s.events[evt.ID.String()] = &cp
	return nil
}

// ListEvents implements event.Store.
func (s *Store) ListEvents(_ context.Context, tenantID string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	s.mu.RLock()
	matched := s.filter(tenantID, opts)
	s.mu.RUnlock()

	// Newest first.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]*event.WebhookEvent, 0, end-start)
	for _, evt := range matched[start:end] {
		cp := *evt
		out = append(out, &cp)
	}
	return out, nil
}

// CountEvents implements event.Store.
func (s *Store) CountEvents(_ context.Context, tenantID string, opts event.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filter(tenantID, opts))), nil
}

// filter returns events matching tenant and ListOpts filters. Caller holds
// the lock.
func (s *Store) filter(tenantID string, opts event.ListOpts) []*event.WebhookEvent {
	var matched []*event.WebhookEvent
	for _, evt := range s.events {
		if tenantID != "" && evt.TenantID != tenantID {
			continue
		}
		if opts.Type != "" && evt.Type != opts.Type {
			continue
		}
		if opts.Status != "" && evt.Status != opts.Status {
			continue
		}
		if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.CreatedAt.After(*opts.To) {
			continue
		}
		matched = append(matched, evt)
	}
	return matched
}

// ListRetryable implements event.Store.
func (s *Store) ListRetryable(_ context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	s.mu.RLock()
	var matched []*event.WebhookEvent
	for _, evt := range s.events {
		if evt.Retryable(maxAttempts) {
			matched = append(matched, evt)
		}
	}
	s.mu.RUnlock()

	// Oldest first, so starved events are swept before fresh ones.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*event.WebhookEvent, 0, len(matched))
	for _, evt := range matched {
		cp := *evt
		out = append(out, &cp)
	}
	return out, nil
}

// EventStats implements event.Store.
func (s *Store) EventStats(_ context.Context, tenantID string) (*event.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &event.Stats{ByStatus: make(map[event.Status]int64)}
	var attempts int64
	for _, evt := range s.events {
		if tenantID != "" && evt.TenantID != tenantID {
			continue
		}
		stats.TotalEvents++
		stats.ByStatus[evt.Status]++
		attempts += int64(evt.Attempts)
	}
	if stats.TotalEvents > 0 {
		stats.SuccessRate = float64(stats.ByStatus[event.StatusSent]) / float64(stats.TotalEvents)
		stats.AverageAttempts = float64(attempts) / float64(stats.TotalEvents)
	}
	return stats, nil
}

// AppendLog implements delivery.Store.
func (s *Store) AppendLog(_ context.Context, l *delivery.AttemptLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	key := l.EventID.String()
	s.logs[key] = append(s.logs[key], &cp)
	return nil
}

// ListLogs implements delivery.Store.
func (s *Store) ListLogs(_ context.Context, evtID id.ID) ([]*delivery.AttemptLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.logs[evtID.String()]
	out := make([]*delivery.AttemptLog, 0, len(logs))
	for _, l := range logs {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AttemptNumber < out[j].AttemptNumber
	})
	return out, nil
}

// Migrate is a no-op for the in-memory backend.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return heraldstore.ErrClosed
	}
	return nil
}

// Close marks the store closed. State is retained for post-shutdown reads
// in tests.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
