package api

import (
	"errors"
	"net/http"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/tenant"
)

type putWebhookRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

func (h *Handler) putWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	var req putWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.herald.Tenants().Configure(r.Context(), tenant.Input{
		TenantID: tenantID,
		URL:      req.URL,
		Secret:   req.Secret,
	})
	if err != nil {
		var ve *tenant.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.herald.Tenants().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, herald.ErrTenantNotConfigured) {
			writeError(w, http.StatusNotFound, "webhook not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.herald.Tenants().Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *Handler) disableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	cfg, err := h.herald.Tenants().SetEnabled(r.Context(), r.PathValue("id"), enabled)
	if err != nil {
		if errors.Is(err, herald.ErrTenantNotConfigured) {
			writeError(w, http.StatusNotFound, "webhook not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type rotateSecretResponse struct {
	Secret string `json:"secret"`
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.herald.Tenants().RotateSecret(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, herald.ErrTenantNotConfigured) {
			writeError(w, http.StatusNotFound, "webhook not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The new secret is returned exactly once, at rotation time.
	writeJSON(w, http.StatusOK, rotateSecretResponse{Secret: secret})
}
