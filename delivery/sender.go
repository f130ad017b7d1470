package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/signature"
	"github.com/heraldhq/herald/tenant"
)

// Result holds the outcome of a single delivery attempt, including the exact
// request sent so the engine can write a faithful audit log.
type Result struct {
	// StatusCode is 0 when no response was received.
	StatusCode      int
	ResponseHeaders map[string]string
	ResponseBody    string

	// Error is empty on a clean HTTP exchange (any status). Network-level
	// failures set it and leave StatusCode at 0.
	Error string

	// TimedOut distinguishes a timeout from other transport failures.
	TimedOut bool

	RequestURL     string
	RequestHeaders map[string]string
	RequestBody    string

	DurationMs int
}

// Sender performs the signed HTTP POST for one delivery attempt.
type Sender struct {
	client    *http.Client
	timeout   time.Duration
	bodyLimit int
	userAgent string
}

// NewSender creates a sender with the given HTTP timeout, response body
// storage cap, and User-Agent.
func NewSender(timeout time.Duration, bodyLimit int, userAgent string) *Sender {
	return &Sender{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		bodyLimit: bodyLimit,
		userAgent: userAgent,
	}
}

// Envelope is the outbound wire format. The signature covers the whole
// envelope, not just the inner payload, so tampering with event metadata is
// also detectable.
type Envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// Send delivers an event to the tenant's configured URL and returns the
// result. It never returns an error: every failure mode is captured in the
// Result for the engine to classify and persist.
func (s *Sender) Send(ctx context.Context, cfg *tenant.Webhook, evt *event.WebhookEvent) Result {
	// Canonical serialization: the signed bytes are exactly the body bytes,
	// so the receiver can recompute the digest from the raw request.
	body, err := signature.Canonical(map[string]any{
		"id":         evt.ID.String(),
		"event":      evt.Type,
		"created_at": evt.CreatedAt.UTC().Format(time.RFC3339),
		"data":       evt.Payload,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	headers := map[string]string{
		"Content-Type":         "application/json",
		"User-Agent":           s.userAgent,
		"X-Webhook-Signature":  signature.Sign(body, cfg.Secret),
		"X-Webhook-Event-Type": evt.Type,
		"X-Webhook-Event-Id":   evt.ID.String(),
	}

	res := Result{
		RequestURL:     cfg.URL,
		RequestHeaders: headers,
		RequestBody:    string(body),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		res.Error = fmt.Sprintf("create request: %v", err)
		return res
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a tenant-configured webhook destination; SSRF is by design.
	res.DurationMs = int(time.Since(start).Milliseconds())

	if err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			res.TimedOut = true
			res.Error = fmt.Sprintf("request timed out after %s", s.timeout)
		default:
			var oe *net.OpError
			if errors.As(err, &oe) {
				res.Error = fmt.Sprintf("connection error: %v", err)
			} else {
				res.Error = fmt.Sprintf("unexpected error: %v", err)
			}
		}
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ResponseHeaders = flattenHeaders(resp.Header)

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, int64(s.bodyLimit)))
	if readErr != nil {
		res.Error = fmt.Sprintf("read response: %v", readErr)
		return res
	}
	res.ResponseBody = string(respBody)

	return res
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
