package api

import "net/http"

func (h *Handler) listEventTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.herald.Catalog().List())
}
