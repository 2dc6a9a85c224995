package handlers

import (
	"net/http"

	"condor-raat/core/auth"
	"condor-raat/core/store"
)

func currentSession(r *http.Request) *store.SessionRecord {
	if sr := auth.SessionFrom(r.Context()); sr != nil {
		return sr
	}
	return &store.SessionRecord{}
}
