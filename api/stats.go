package api

import "net/http"

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	// tenant_id is optional: empty aggregates platform-wide.
	stats, err := h.herald.Stats(r.Context(), queryParam(r, "tenant_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
