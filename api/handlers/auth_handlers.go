package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"condor-raat/config"
	"condor-raat/core/auth"
	"condor-raat/core/store"
	"condor-raat/core/utils"
)

const SessionCookie = "condor_session"

type AuthHandler struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	sessions *auth.SessionManager
	audits   store.AuditStore
	logger   *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sessions *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessions: sessions, audits: audits, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "common.invalid_json", "invalid request body")
		return
	}
	username := strings.TrimSpace(payload.Username)
	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
		return
	}
	if user == nil || !user.Active || !auth.VerifyPassword(payload.Password, h.cfg.Pepper, user.PasswordHash, user.Salt) {
		h.logger.Warnf("auth: failed login for %q", username)
		writeError(w, http.StatusUnauthorized, "auth.invalid_credentials", "invalid username or password")
		return
	}
	rec, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "common.internal", "internal server error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    rec.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  rec.ExpiresAt,
	})
	h.audits.Log(r.Context(), user.TenantID, user.Username, "auth.login", "")
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  user.Username,
		"tenant_id": user.TenantID,
		"roles":     user.Roles,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	if session.ID != "" {
		_ = h.sessions.Destroy(r.Context(), session.ID)
		h.audits.Log(r.Context(), session.TenantID, session.Username, "auth.logout", "")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  session.Username,
		"tenant_id": session.TenantID,
		"roles":     session.Roles,
	})
}
