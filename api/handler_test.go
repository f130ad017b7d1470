package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/api"
	"github.com/heraldhq/herald/store/memory"
	"github.com/heraldhq/herald/tenant"
)

// testServer creates a Handler backed by a memory-store Herald, plus a stub
// tenant endpoint that accepts deliveries.
func testServer(t *testing.T) (*httptest.Server, *herald.Herald) {
	t.Helper()

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hook.Close)

	h, err := herald.New(herald.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("herald.New: %v", err)
	}
	if _, err := h.Tenants().Configure(t.Context(), tenant.Input{TenantID: "tn_1", URL: hook.URL}); err != nil {
		t.Fatalf("configure tenant: %v", err)
	}

	srv := httptest.NewServer(api.NewHandler(h, nil))
	t.Cleanup(srv.Close)
	return srv, h
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// --- Events ---

func TestEvents_ListAndDetail(t *testing.T) {
	srv, h := testServer(t)

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := h.Enqueue(t.Context(), "tn_1", "customer.created",
		map[string]any{"customer_id": "cust_1"}, "cust_1-created"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp := doJSON(t, "GET", srv.URL+"/events?tenant_id=tn_1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list struct {
		Events []map[string]any `json:"events"`
		Total  int64            `json:"total"`
	}
	decodeBody(t, resp, &list)
	if list.Total != 2 || len(list.Events) != 2 {
		t.Errorf("list returned %d/%d events, want 2", len(list.Events), list.Total)
	}

	// Type filter
	resp = doJSON(t, "GET", srv.URL+"/events?tenant_id=tn_1&event_type=customer.created", nil)
	decodeBody(t, resp, &list)
	if list.Total != 1 {
		t.Errorf("type filter total = %d, want 1", list.Total)
	}

	// Detail with logs
	resp = doJSON(t, "GET", srv.URL+"/events/"+evt.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", resp.StatusCode)
	}
	var detail struct {
		Status string           `json:"status"`
		Logs   []map[string]any `json:"delivery_logs"`
	}
	decodeBody(t, resp, &detail)
	if detail.Status != "sent" {
		t.Errorf("status = %q, want sent", detail.Status)
	}
	if len(detail.Logs) != 1 {
		t.Errorf("delivery logs = %d, want 1", len(detail.Logs))
	}
}

func TestEvents_ListRequiresTenant(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, "GET", srv.URL+"/events", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_ListPaginationBounds(t *testing.T) {
	srv, h := testServer(t)

	if _, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded", map[string]any{"n": "1"}, "key-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Out-of-range and negative offsets fall back to the default instead
	// of panicking the handler.
	for _, q := range []string{
		"offset=99999999999999999999",
		"offset=-5",
		"limit=99999999999999999999",
		"offset=abc",
	} {
		resp := doJSON(t, "GET", srv.URL+"/events?tenant_id=tn_1&"+q, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", q, resp.StatusCode)
		}
		var body struct {
			Events []map[string]any `json:"events"`
		}
		decodeBody(t, resp, &body)
		if len(body.Events) != 1 {
			t.Errorf("%s: expected 1 event, got %d", q, len(body.Events))
		}
	}
}

func TestEvents_GetUnknown(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/events/not-an-id", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/events/evt_00000000000000000000000000", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing event: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_Retry(t *testing.T) {
	srv, h := testServer(t)

	// Break the tenant endpoint so the event fails.
	if _, err := h.Tenants().Configure(t.Context(), tenant.Input{TenantID: "tn_2", URL: "http://127.0.0.1:1/hook"}); err != nil {
		t.Fatalf("configure tenant: %v", err)
	}
	evt, err := h.Enqueue(t.Context(), "tn_2", "payment.failed",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_9")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp := doJSON(t, "POST", srv.URL+"/events/"+evt.ID.String()+"/retry", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", resp.StatusCode)
	}
	var retried struct {
		Attempts int    `json:"attempts"`
		Status   string `json:"status"`
	}
	decodeBody(t, resp, &retried)
	if retried.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 after reset", retried.Attempts)
	}
}

func TestEvents_RetryDelivered(t *testing.T) {
	srv, h := testServer(t)

	evt, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp := doJSON(t, "POST", srv.URL+"/events/"+evt.ID.String()+"/retry", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Event types ---

func TestEventTypes_List(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/event-types", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var types []struct {
		Type string `json:"type"`
	}
	decodeBody(t, resp, &types)
	if len(types) == 0 {
		t.Fatal("no event types returned")
	}
	found := false
	for _, et := range types {
		if et.Type == "payment.succeeded" {
			found = true
		}
	}
	if !found {
		t.Error("payment.succeeded missing from event types")
	}
}

// --- Tenant webhook configuration ---

func TestTenants_WebhookLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	// Configure
	resp := doJSON(t, "PUT", srv.URL+"/tenants/tn_9/webhook", map[string]any{
		"url": "https://example.com/hooks",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: expected 200, got %d", resp.StatusCode)
	}
	var cfg struct {
		TenantID string `json:"tenant_id"`
		URL      string `json:"url"`
		Enabled  bool   `json:"enabled"`
		Secret   string `json:"secret"`
	}
	decodeBody(t, resp, &cfg)
	if cfg.URL != "https://example.com/hooks" || !cfg.Enabled {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Secret != "" {
		t.Error("secret leaked in configuration response")
	}

	// Get
	resp = doJSON(t, "GET", srv.URL+"/tenants/tn_9/webhook", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Disable / enable
	resp = doJSON(t, "PATCH", srv.URL+"/tenants/tn_9/webhook/disable", nil)
	decodeBody(t, resp, &cfg)
	if cfg.Enabled {
		t.Error("webhook still enabled after disable")
	}
	resp = doJSON(t, "PATCH", srv.URL+"/tenants/tn_9/webhook/enable", nil)
	decodeBody(t, resp, &cfg)
	if !cfg.Enabled {
		t.Error("webhook still disabled after enable")
	}

	// Rotate secret: new secret returned once.
	resp = doJSON(t, "POST", srv.URL+"/tenants/tn_9/webhook/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var rotated struct {
		Secret string `json:"secret"`
	}
	decodeBody(t, resp, &rotated)
	if rotated.Secret == "" {
		t.Error("rotate-secret returned no secret")
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/tenants/tn_9/webhook", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doJSON(t, "GET", srv.URL+"/tenants/tn_9/webhook", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTenants_InvalidURL(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, "PUT", srv.URL+"/tenants/tn_9/webhook", map[string]any{
		"url": "not a url",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats(t *testing.T) {
	srv, h := testServer(t)

	if _, err := h.Enqueue(t.Context(), "tn_1", "payment.succeeded",
		map[string]any{"payment_id": "pay_1"}, "stripe_evt_1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp := doJSON(t, "GET", srv.URL+"/stats?tenant_id=tn_1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats struct {
		TotalEvents int64            `json:"total_events"`
		ByStatus    map[string]int64 `json:"by_status"`
		SuccessRate float64          `json:"success_rate"`
	}
	decodeBody(t, resp, &stats)
	if stats.TotalEvents != 1 {
		t.Errorf("total = %d, want 1", stats.TotalEvents)
	}
	if stats.ByStatus["sent"] != 1 {
		t.Errorf("by_status = %v", stats.ByStatus)
	}
	if stats.SuccessRate != 1 {
		t.Errorf("success rate = %v, want 1", stats.SuccessRate)
	}
}
