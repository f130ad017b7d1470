// Package api provides the management HTTP API for Herald: event browsing,
// manual retry, delivery stats, and tenant webhook configuration.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/heraldhq/herald"
)

// Handler is the root HTTP handler for the Herald management API.
//
// Mount it under an authenticated admin prefix; Herald performs no
// authentication of its own.
type Handler struct {
	herald *herald.Herald
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a management API handler.
func NewHandler(h *herald.Herald, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	handler := &Handler{
		herald: h,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	handler.registerRoutes()
	return handler
}

func (h *Handler) registerRoutes() {
	// Events
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)
	h.mux.HandleFunc("POST /events/{id}/retry", h.retryEvent)

	// Event types
	h.mux.HandleFunc("GET /event-types", h.listEventTypes)

	// Tenant webhook configuration
	h.mux.HandleFunc("GET /tenants/{id}/webhook", h.getWebhook)
	h.mux.HandleFunc("PUT /tenants/{id}/webhook", h.putWebhook)
	h.mux.HandleFunc("DELETE /tenants/{id}/webhook", h.deleteWebhook)
	h.mux.HandleFunc("PATCH /tenants/{id}/webhook/enable", h.enableWebhook)
	h.mux.HandleFunc("PATCH /tenants/{id}/webhook/disable", h.disableWebhook)
	h.mux.HandleFunc("POST /tenants/{id}/webhook/rotate-secret", h.rotateSecret)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value. Malformed,
// negative, and out-of-range values fall back to the default.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
