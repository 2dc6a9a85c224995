package store

import (
	"context"
	"database/sql"
	"time"
)

type AuditEntry struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditStore interface {
	Log(ctx context.Context, tenantID int64, username, action, details string)
	List(ctx context.Context, tenantID int64, limit int) ([]AuditEntry, error)
}

type auditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db}
}

// Log is best-effort: an audit write never fails the operation it records.
func (s *auditStore) Log(ctx context.Context, tenantID int64, username, action, details string) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO audit_log(tenant_id, username, action, details, created_at) VALUES(?,?,?,?,?)`,
		tenantID, username, action, details, time.Now().UTC())
}

func (s *auditStore) List(ctx context.Context, tenantID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, username, action, COALESCE(details, ''), created_at
		FROM audit_log WHERE tenant_id=? ORDER BY id DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Username, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
