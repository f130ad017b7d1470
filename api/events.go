package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
)

type listEventsResponse struct {
	Events []*event.WebhookEvent `json:"events"`
	Total  int64                 `json:"total"`
	Offset int                   `json:"offset"`
	Limit  int                   `json:"limit"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	opts := event.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Type:   queryParam(r, "event_type"),
		Status: event.Status(queryParam(r, "status")),
	}
	if v := queryParam(r, "from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		opts.From = &t
	}
	if v := queryParam(r, "to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		opts.To = &t
	}

	events, err := h.herald.Events(r.Context(), tenantID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := h.herald.CountEvents(r.Context(), tenantID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{
		Events: events,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	})
}

type eventDetailResponse struct {
	*event.WebhookEvent
	Logs           []*delivery.AttemptLog `json:"delivery_logs"`
	NextEligibleAt *time.Time             `json:"next_eligible_at,omitempty"`
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, getErr := h.herald.Event(r.Context(), evtID)
	if getErr != nil {
		if errors.Is(getErr, herald.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	logs, logsErr := h.herald.Logs(r.Context(), evtID)
	if logsErr != nil {
		writeError(w, http.StatusInternalServerError, logsErr.Error())
		return
	}

	resp := eventDetailResponse{WebhookEvent: evt, Logs: logs}
	if evt.Retryable(h.herald.Config().MaxAttempts) && evt.LastAttemptAt != nil {
		next := h.herald.Retrier().NextEligibleAt(evt)
		resp.NextEligibleAt = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) retryEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, retryErr := h.herald.Retry(r.Context(), evtID)
	if retryErr != nil {
		switch {
		case errors.Is(retryErr, herald.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(retryErr, herald.ErrAlreadyDelivered):
			writeError(w, http.StatusConflict, "event already delivered")
		default:
			writeError(w, http.StatusInternalServerError, retryErr.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, evt)
}
