package handlers

import (
	"net/http"

	"condor-raat/core/workers"
)

type WorkersHandler struct {
	svc *workers.Service
}

func NewWorkersHandler(svc *workers.Service) *WorkersHandler {
	return &WorkersHandler{svc: svc}
}

func (h *WorkersHandler) List(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	activeOnly := r.URL.Query().Get("active") == "true"
	items, err := h.svc.List(r.Context(), session.TenantID, activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *WorkersHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid worker id")
		return
	}
	worker, err := h.svc.Get(r.Context(), session.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, "workers.not_found", "worker not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": worker})
}
