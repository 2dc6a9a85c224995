package auth

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"condor-raat/config"
	"condor-raat/core/store"
	"condor-raat/core/utils"
)

type contextKey string

// SessionContextKey holds the authenticated *store.SessionRecord on the
// request context. The RAAT core never reads it directly; handlers extract
// the actor and tenant and pass them as explicit parameters.
const SessionContextKey contextKey = "condor.session"

type SessionManager struct {
	store  store.SessionStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewSessionManager(store store.SessionStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{store: store, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User) (*store.SessionRecord, error) {
	now := utils.NowUTC()
	rec := &store.SessionRecord{
		ID:         uuid.Must(uuid.NewV4()).String(),
		UserID:     user.ID,
		TenantID:   user.TenantID,
		Username:   user.Username,
		Roles:      user.Roles,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resolve returns the live session for an id, or nil when missing or expired.
func (m *SessionManager) Resolve(ctx context.Context, id string) (*store.SessionRecord, error) {
	if id == "" {
		return nil, nil
	}
	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	now := utils.NowUTC()
	if !rec.ExpiresAt.After(now) {
		_ = m.store.DeleteSession(ctx, rec.ID)
		return nil, nil
	}
	if now.Sub(rec.LastSeenAt) >= 30*time.Second {
		_ = m.store.UpdateActivity(ctx, rec.ID, now, m.cfg.EffectiveSessionTTL())
	}
	return rec, nil
}

func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	return m.store.DeleteSession(ctx, id)
}

func WithSession(ctx context.Context, rec *store.SessionRecord) context.Context {
	return context.WithValue(ctx, SessionContextKey, rec)
}

func SessionFrom(ctx context.Context) *store.SessionRecord {
	rec, _ := ctx.Value(SessionContextKey).(*store.SessionRecord)
	return rec
}
