package handlers

import (
	"net/http"

	"condor-raat/core/store"
)

type AuditHandler struct {
	audits store.AuditStore
}

func NewAuditHandler(audits store.AuditStore) *AuditHandler {
	return &AuditHandler{audits: audits}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	items, err := h.audits.List(r.Context(), session.TenantID, parseIntDefault(r.URL.Query().Get("limit"), 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
