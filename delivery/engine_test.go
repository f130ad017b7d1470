package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/tenant"
)

// fakeStore is a minimal in-memory EngineStore for engine tests.
type fakeStore struct {
	mu      sync.Mutex
	events  map[string]*event.WebhookEvent
	logs    map[string][]*AttemptLog
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[string]*event.WebhookEvent),
		logs:   make(map[string][]*AttemptLog),
	}
}

func (s *fakeStore) put(evt *event.WebhookEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *evt
	s.events[evt.ID.String()] = &cp
}

func (s *fakeStore) GetEvent(_ context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrNotFound
	}
	cp := *evt
	return &cp, nil
}

func (s *fakeStore) UpdateEvent(_ context.Context, evt *event.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *evt
	s.events[evt.ID.String()] = &cp
	s.updates++
	return nil
}

func (s *fakeStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *fakeStore) ListRetryable(_ context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*event.WebhookEvent
	for _, evt := range s.events {
		if evt.Retryable(maxAttempts) && len(out) < limit {
			cp := *evt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) AppendLog(_ context.Context, l *AttemptLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[l.EventID.String()] = append(s.logs[l.EventID.String()], l)
	return nil
}

func (s *fakeStore) logCount(evtID id.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[evtID.String()])
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		MaxAttempts:       3,
		RequestTimeout:    5 * time.Second,
		RetrySchedule:     []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour},
		SweepInterval:     time.Minute,
		Concurrency:       4,
		BatchSize:         50,
		ResponseBodyLimit: 5000,
		UserAgent:         "Herald-Webhooks/1.0",
	}
}

func newTestEngine(store EngineStore, url string) *Engine {
	resolver := tenant.StaticResolver{}
	if url != "" {
		resolver["tn_1"] = &tenant.Webhook{TenantID: "tn_1", URL: url, Secret: "whsec_test", Enabled: true}
	}
	return NewEngine(store, resolver, testEngineConfig(), nil)
}

func pendingEvent() *event.WebhookEvent {
	return &event.WebhookEvent{
		Entity:         entity.New(),
		ID:             id.NewEventID(),
		TenantID:       "tn_1",
		Type:           "payment.succeeded",
		Payload:        map[string]any{"invoice": "inv_1"},
		Status:         event.StatusPending,
		IdempotencyKey: "inv_1-paid",
	}
}

func TestDeliverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)

	eng := newTestEngine(store, srv.URL)
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.SentAt == nil || got.SucceededAt == nil || got.LastAttemptAt == nil {
		t.Error("timestamps not set on successful delivery")
	}
	if got.ResponseCode == nil || *got.ResponseCode != 200 {
		t.Errorf("response code = %v, want 200", got.ResponseCode)
	}
	if got.LastError != "" {
		t.Errorf("last error = %q, want empty", got.LastError)
	}
	if n := store.logCount(evt.ID); n != 1 {
		t.Errorf("log rows = %d, want 1", n)
	}
}

func TestDeliverRetryAfterServerError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			http.Error(w, "database busy", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)
	eng := newTestEngine(store, srv.URL)

	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusPending {
		t.Fatalf("status after 500 = %s, want pending", got.Status)
	}
	if !strings.Contains(got.LastError, "HTTP 500") {
		t.Errorf("last error = %q, want HTTP 500 message", got.LastError)
	}

	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("second Deliver: %v", err)
	}
	got, _ = store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusSent {
		t.Errorf("status after retry = %s, want sent", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.LastError != "" {
		t.Errorf("last error should be cleared on success, got %q", got.LastError)
	}
	if n := store.logCount(evt.ID); n != 2 {
		t.Errorf("log rows = %d, want 2", n)
	}
}

func TestDeliverExhaustsAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)
	eng := newTestEngine(store, srv.URL)

	for i := 0; i < 3; i++ {
		if err := eng.Deliver(t.Context(), evt.ID); err != nil {
			t.Fatalf("Deliver %d: %v", i+1, err)
		}
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusFailed {
		t.Errorf("status = %s, want failed after 3 attempts", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	if n := store.logCount(evt.ID); n != 3 {
		t.Errorf("log rows = %d, want 3", n)
	}

	// A further call must not issue another HTTP request or write a log.
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver past cap: %v", err)
	}
	got, _ = store.GetEvent(t.Context(), evt.ID)
	if got.Attempts != 3 {
		t.Errorf("attempts after cap = %d, want 3", got.Attempts)
	}
	if n := store.logCount(evt.ID); n != 3 {
		t.Errorf("log rows after cap = %d, want 3", n)
	}
}

func TestDeliverNoConfigFailsWithoutAttempt(t *testing.T) {
	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)

	eng := newTestEngine(store, "") // no webhook configured
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 (no request made)", got.Attempts)
	}
	if got.LastError != "no webhook URL configured" {
		t.Errorf("last error = %q", got.LastError)
	}
	if n := store.logCount(evt.ID); n != 0 {
		t.Errorf("log rows = %d, want 0 for configuration failure", n)
	}
}

func TestDeliverUnconfiguredRepeatSweepsAreIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)

	resolver := tenant.StaticResolver{}
	cfg := testEngineConfig()
	cfg.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	eng := NewEngine(store, resolver, cfg, nil)

	// Mirror the intake increment Enqueue performs.
	cfg.Metrics.PendingEvents.Inc()

	// The event stays sweep-eligible at attempts=0, so the config-error
	// path runs on every pass. Only the first one is a transition.
	for range 3 {
		if err := eng.Deliver(t.Context(), evt.ID); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	if got := testutil.ToFloat64(cfg.Metrics.ExhaustedEvents); got != 1 {
		t.Errorf("exhausted gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cfg.Metrics.PendingEvents); got != 0 {
		t.Errorf("pending gauge = %v, want 0", got)
	}
	if n := store.updateCount(); n != 1 {
		t.Errorf("event written %d times, want 1 for repeated config failures", n)
	}

	// Once the tenant configures a URL the event delivers and the failed
	// state unwinds from the gauges.
	resolver["tn_1"] = &tenant.Webhook{TenantID: "tn_1", URL: srv.URL, Secret: "whsec_test", Enabled: true}
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver after configure: %v", err)
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusSent {
		t.Errorf("status = %s, want sent after tenant configured", got.Status)
	}
	if got := testutil.ToFloat64(cfg.Metrics.ExhaustedEvents); got != 0 {
		t.Errorf("exhausted gauge = %v, want 0 after recovery", got)
	}
	if got := testutil.ToFloat64(cfg.Metrics.PendingEvents); got != 0 {
		t.Errorf("pending gauge = %v, want 0 after recovery", got)
	}
}

func TestDeliverDisabledWebhookFails(t *testing.T) {
	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)

	resolver := tenant.StaticResolver{
		"tn_1": {TenantID: "tn_1", URL: "https://example.com/hook", Secret: "whsec_x", Enabled: false},
	}
	eng := NewEngine(store, resolver, testEngineConfig(), nil)
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusFailed {
		t.Errorf("status = %s, want failed for disabled webhook", got.Status)
	}
}

func TestDeliverUnknownEventIsNoOp(t *testing.T) {
	eng := newTestEngine(newFakeStore(), "https://example.com/hook")
	if err := eng.Deliver(t.Context(), id.NewEventID()); err != nil {
		t.Errorf("Deliver on missing event = %v, want nil", err)
	}
}

func TestDeliverAlreadySentIsNoOp(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	evt.Status = event.StatusSent
	store.put(evt)

	eng := newTestEngine(store, srv.URL)
	if err := eng.Deliver(t.Context(), evt.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("delivered an already-sent event %d times", calls)
	}
}

func TestDeliverConcurrentAttemptsSerialize(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)
	eng := newTestEngine(store, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.Deliver(context.Background(), evt.ID); err != nil {
				t.Errorf("concurrent Deliver: %v", err)
			}
		}()
	}
	wg.Wait()

	// The per-event lock serializes the attempts; the first one succeeds and
	// the rest observe the sent state and do nothing.
	mu.Lock()
	gotCalls := calls
	mu.Unlock()
	if gotCalls != 1 {
		t.Errorf("HTTP calls = %d, want 1", gotCalls)
	}

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if n := store.logCount(evt.ID); n != 1 {
		t.Errorf("log rows = %d, want 1", n)
	}
}

func TestSweepRespectsBackoff(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()

	// Attempted one minute ago: inside the 5m backoff window.
	recent := time.Now().UTC().Add(-time.Minute)
	blocked := pendingEvent()
	blocked.Attempts = 1
	blocked.LastAttemptAt = &recent
	store.put(blocked)

	// Attempted an hour ago: due.
	old := time.Now().UTC().Add(-time.Hour)
	due := pendingEvent()
	due.IdempotencyKey = "inv_2-paid"
	due.Attempts = 1
	due.LastAttemptAt = &old
	store.put(due)

	eng := newTestEngine(store, srv.URL)
	eng.sweep(t.Context())
	eng.wg.Wait()

	gotBlocked, _ := store.GetEvent(t.Context(), blocked.ID)
	if gotBlocked.Attempts != 1 {
		t.Errorf("event inside backoff window was reattempted (attempts=%d)", gotBlocked.Attempts)
	}
	gotDue, _ := store.GetEvent(t.Context(), due.ID)
	if gotDue.Status != event.StatusSent {
		t.Errorf("due event status = %s, want sent", gotDue.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("HTTP calls = %d, want 1", calls)
	}
}

func TestStartStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	evt := pendingEvent()
	store.put(evt)

	cfg := testEngineConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	resolver := tenant.StaticResolver{
		"tn_1": {TenantID: "tn_1", URL: srv.URL, Secret: "whsec_test", Enabled: true},
	}
	eng := NewEngine(store, resolver, cfg, nil)

	eng.Start(t.Context())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.GetEvent(t.Context(), evt.ID)
		if got.Status == event.StatusSent {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	eng.Stop(t.Context())

	got, _ := store.GetEvent(t.Context(), evt.ID)
	if got.Status != event.StatusSent {
		t.Errorf("status = %s, want sent after sweep", got.Status)
	}
}
