package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"condor-raat/core/raat"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeDomainError maps the registry's typed errors onto HTTP statuses.
// Caller mistakes land in 4xx; the exhausted sequence retry is the one 5xx
// that asks the client to simply try again.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *raat.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "raat.validation", ve.Error())
		return
	}
	if errors.Is(err, raat.ErrSubjectNotFound) {
		writeError(w, http.StatusUnprocessableEntity, "raat.subject_not_found", err.Error())
		return
	}
	if errors.Is(err, raat.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "raat.not_found", err.Error())
		return
	}
	var le *raat.LockedError
	if errors.As(err, &le) {
		writeError(w, http.StatusConflict, "raat.record_locked", le.Error())
		return
	}
	var te *raat.TransitionError
	if errors.As(err, &te) {
		writeError(w, http.StatusConflict, "raat.invalid_transition", te.Error())
		return
	}
	var ae *raat.AlreadySentError
	if errors.As(err, &ae) {
		writeError(w, http.StatusConflict, "raat.already_sent", ae.Error())
		return
	}
	if errors.Is(err, raat.ErrSequenceConflict) {
		writeError(w, http.StatusServiceUnavailable, "raat.sequence_conflict", "accident number allocation contention, retry the request")
		return
	}
	writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
}
