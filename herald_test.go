package herald

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/store/memory"
	"github.com/heraldhq/herald/tenant"
)

func newTestHerald(t *testing.T, url string, opts ...Option) *Herald {
	t.Helper()
	s := memory.New()
	if url != "" {
		if err := s.SaveWebhook(t.Context(), &tenant.Webhook{
			TenantID: "tn_1", URL: url, Secret: "whsec_test", Enabled: true,
		}); err != nil {
			t.Fatalf("SaveWebhook: %v", err)
		}
	}
	h, err := New(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoStore) {
		t.Errorf("New() error = %v, want ErrNoStore", err)
	}
}

func TestEnqueueDeliversSynchronously(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL)

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if evt == nil {
		t.Fatal("Enqueue returned nil event")
	}
	if evt.Status != event.StatusSent {
		t.Errorf("status = %s, want sent", evt.Status)
	}
	if evt.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", evt.Attempts)
	}

	logs, err := h.Logs(t.Context(), evt.ID)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("log rows = %d, want 1", len(logs))
	}
}

func TestEnqueueIdempotency(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL)

	first, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil || first == nil {
		t.Fatalf("first Enqueue: %v, %v", first, err)
	}

	dup, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("duplicate Enqueue returned error: %v", err)
	}
	if dup != nil {
		t.Errorf("duplicate Enqueue created event %s, want nil no-op", dup.ID)
	}

	count, _ := h.CountEvents(t.Context(), "tn_1", event.ListOpts{})
	if count != 1 {
		t.Errorf("events = %d, want 1", count)
	}
}

func TestEnqueueMissingIdempotencyKey(t *testing.T) {
	h := newTestHerald(t, "")
	if _, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded", nil, ""); !errors.Is(err, ErrMissingIdempotencyKey) {
		t.Errorf("error = %v, want ErrMissingIdempotencyKey", err)
	}
}

func TestEnqueueUnknownEventType(t *testing.T) {
	h := newTestHerald(t, "")
	if _, err := h.Enqueue(t.Context(), "tn_1", "order.shipped", nil, "k1"); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("error = %v, want ErrUnknownEventType", err)
	}
}

func TestEnqueueUnconfiguredTenantFailsEvent(t *testing.T) {
	h := newTestHerald(t, "") // no webhook configured

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if evt.Status != event.StatusFailed {
		t.Errorf("status = %s, want failed for unconfigured tenant", evt.Status)
	}
	if evt.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", evt.Attempts)
	}
}

func TestEnqueueAsyncReturnsPending(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL, WithSyncDelivery(false))

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if evt.Status != event.StatusPending {
		t.Errorf("returned status = %s, want pending before async attempt", evt.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := h.Event(t.Context(), evt.ID)
		if err != nil {
			t.Fatalf("Event: %v", err)
		}
		if got.Status == event.StatusSent {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("async delivery never completed")
}

func TestEnqueueAsyncOutlivesCallerContext(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL, WithSyncDelivery(false))

	// A provider webhook handler whose request context dies as soon as it
	// hands the event off. The queued first attempt must still run.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evt, err := h.Enqueue(ctx, "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := h.Event(t.Context(), evt.ID)
		if err != nil {
			t.Fatalf("Event: %v", err)
		}
		if got.Status == event.StatusSent {
			if got.Attempts != 1 {
				t.Errorf("attempts = %d, want 1", got.Attempts)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("delivery never ran after caller context was cancelled")
}

func TestManualRetryResetsAttempts(t *testing.T) {
	var fail = true
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		f := fail
		mu.Unlock()
		if f {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newTestHerald(t, srv.URL)

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.failed",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Exhaust the cap.
	for i := 0; i < 2; i++ {
		if _, err := h.Retry(t.Context(), evt.ID); err != nil {
			t.Fatalf("Retry %d: %v", i, err)
		}
	}
	got, _ := h.Event(t.Context(), evt.ID)
	if got.Attempts != 1 {
		t.Fatalf("attempts after reset+redeliver = %d, want 1", got.Attempts)
	}

	mu.Lock()
	fail = false
	mu.Unlock()

	final, err := h.Retry(t.Context(), evt.ID)
	if err != nil {
		t.Fatalf("final Retry: %v", err)
	}
	if final.Status != event.StatusSent {
		t.Errorf("status = %s, want sent after manual retry", final.Status)
	}
	if final.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 after reset", final.Attempts)
	}
	if final.LastError != "" {
		t.Errorf("last error = %q, want cleared", final.LastError)
	}
}

func TestManualRetryAlreadyDelivered(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL)

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if evt.Status != event.StatusSent {
		t.Fatalf("precondition: status = %s", evt.Status)
	}

	if _, err := h.Retry(t.Context(), evt.ID); !errors.Is(err, ErrAlreadyDelivered) {
		t.Errorf("Retry on delivered event = %v, want ErrAlreadyDelivered", err)
	}
}

func TestEnqueuePayloadValidation(t *testing.T) {
	srv := okServer(t)
	h := newTestHerald(t, srv.URL)

	h.Catalog().Register(catalog.Definition{
		Name:        "invoice.paid",
		Description: "An invoice was paid",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["invoice_id"],
			"properties": {"invoice_id": {"type": "string"}}
		}`),
	})

	_, err := h.Enqueue(t.Context(), "tn_1", "invoice.paid",
		map[string]any{"amount": 42}, "k1")
	if !errors.Is(err, ErrPayloadValidationFailed) {
		t.Errorf("error = %v, want ErrPayloadValidationFailed", err)
	}

	evt, err := h.Enqueue(t.Context(), "tn_1", "invoice.paid",
		map[string]any{"invoice_id": "inv_1"}, "k2")
	if err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if evt.Status != event.StatusSent {
		t.Errorf("status = %s, want sent", evt.Status)
	}
}
