package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConflict signals a conditional write that matched no row: the record is
// gone, locked, or the guarded status changed under us. Callers re-read to
// find out which.
var ErrConflict = errors.New("conflict")

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident) error
	UpdateIncident(ctx context.Context, incident *Incident) error
	CloseIncident(ctx context.Context, tenantID, incidentID int64, target, closedBy string) (*Incident, error)
	MarkNotificationSent(ctx context.Context, tenantID, incidentID int64, reference string, sentAt time.Time) error
	GetIncident(ctx context.Context, tenantID, incidentID int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	SweepOverdue(ctx context.Context, cutoff time.Time) (int64, error)

	CountsByKind(ctx context.Context, tenantID int64, from, to *time.Time) (map[string]int64, error)
	CountsByStatus(ctx context.Context, tenantID int64, from, to *time.Time) (map[string]int64, error)
	CountsByNotification(ctx context.Context, tenantID int64, from, to *time.Time, cutoff time.Time) (map[string]int64, error)
	RecurrentSubjects(ctx context.Context, tenantID int64) (int64, error)

	AddAttachment(ctx context.Context, att *Attachment) error
	ListAttachments(ctx context.Context, incidentID int64) ([]Attachment, error)
	GetAttachment(ctx context.Context, attachmentID int64) (*Attachment, error)
	SoftDeleteAttachment(ctx context.Context, attachmentID int64) error
}

type incidentsStore struct {
	db *sql.DB
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const incidentColumns = `id, tenant_id, accident_number, event_date, event_time, event_at, location, kind,
	worker_id, worker_rut, worker_name, worker_position, seniority_days, cost_center_code, contract_type, insurer,
	work_performed, description, hazards, body_part, injury_type, witnesses, possible_sequelae, corrective_actions,
	medical_transfer, medical_transfer_location,
	status, notification_status, notification_ref, notification_sent_at, medical_leave_id,
	created_by, created_at, updated_at, closed_at, closed_by`

// CreateIncident allocates the per-tenant accident number and inserts the
// record in one transaction. The counter row is incremented with an upsert
// (single-writer serialization point); UNIQUE(tenant_id, accident_number)
// backs it up at the storage layer, so a conflicting insert fails rather
// than reusing a number.
func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	seq, err := s.nextAccidentNumberTx(ctx, tx, incident.TenantID)
	if err != nil {
		tx.Rollback()
		return err
	}
	incident.AccidentNumber = seq
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = IncidentOpen
	}
	if strings.TrimSpace(incident.NotificationStatus) == "" {
		incident.NotificationStatus = NotificationPending
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO incidents(tenant_id, accident_number, event_date, event_time, event_at, location, kind,
			worker_id, worker_rut, worker_name, worker_position, seniority_days, cost_center_code, contract_type, insurer,
			work_performed, description, hazards, body_part, injury_type, witnesses, possible_sequelae, corrective_actions,
			medical_transfer, medical_transfer_location,
			status, notification_status, notification_ref, notification_sent_at, medical_leave_id,
			created_by, created_at, updated_at, closed_at, closed_by)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		incident.TenantID, incident.AccidentNumber, incident.EventDate, incident.EventTime, incident.EventAt,
		strings.TrimSpace(incident.Location), incident.Kind,
		incident.Subject.WorkerID, incident.Subject.WorkerRUT, incident.Subject.WorkerName, incident.Subject.WorkerPosition,
		incident.Subject.SeniorityDays, incident.Subject.CostCenterCode, incident.Subject.ContractType, incident.Subject.Insurer,
		incident.WorkPerformed, incident.Description, incident.Hazards, incident.BodyPart, incident.InjuryType,
		incident.Witnesses, incident.PossibleSequelae, incident.CorrectiveActions,
		boolToInt(incident.MedicalTransfer), incident.MedicalTransferLocation,
		incident.Status, incident.NotificationStatus, incident.NotificationRef, nullableTime(incident.NotificationSentAt),
		nullableID(incident.MedicalLeaveID),
		incident.CreatedBy, now, now, nil, "")
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return err
	}
	incident.ID = id
	incident.CreatedAt = now
	incident.UpdatedAt = now
	return nil
}

// UpdateIncident rewrites the narrative and system fields only. Snapshot
// columns, accident number and notification state are not touched here. The
// WHERE clause pins status='open' so a terminal record is never modified; a
// zero-row update comes back as ErrConflict.
func (s *incidentsStore) UpdateIncident(ctx context.Context, incident *Incident) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET event_date=?, event_time=?, event_at=?, location=?, kind=?,
			work_performed=?, description=?, hazards=?, body_part=?, injury_type=?, witnesses=?,
			possible_sequelae=?, corrective_actions=?, medical_transfer=?, medical_transfer_location=?,
			medical_leave_id=?, updated_at=?
		WHERE id=? AND tenant_id=? AND status=?`,
		incident.EventDate, incident.EventTime, incident.EventAt, strings.TrimSpace(incident.Location), incident.Kind,
		incident.WorkPerformed, incident.Description, incident.Hazards, incident.BodyPart, incident.InjuryType,
		incident.Witnesses, incident.PossibleSequelae, incident.CorrectiveActions,
		boolToInt(incident.MedicalTransfer), incident.MedicalTransferLocation,
		nullableID(incident.MedicalLeaveID), now,
		incident.ID, incident.TenantID, IncidentOpen)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	incident.UpdatedAt = now
	return nil
}

// CloseIncident moves an open incident to a terminal status. The transition
// is a compare-and-set on status='open'; concurrent closers lose with
// ErrConflict instead of double-stamping.
func (s *incidentsStore) CloseIncident(ctx context.Context, tenantID, incidentID int64, target, closedBy string) (*Incident, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET status=?, closed_at=?, closed_by=?, updated_at=?
		WHERE id=? AND tenant_id=? AND status=?`,
		target, now, closedBy, now, incidentID, tenantID, IncidentOpen)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}
	return s.GetIncident(ctx, tenantID, incidentID)
}

// MarkNotificationSent records the DIAT filing. Guarded on not-yet-sent so a
// concurrent second sender hits ErrConflict and the service can resolve
// idempotency against the stored reference.
func (s *incidentsStore) MarkNotificationSent(ctx context.Context, tenantID, incidentID int64, reference string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET notification_status=?, notification_ref=?, notification_sent_at=?, updated_at=?
		WHERE id=? AND tenant_id=? AND notification_status!=?`,
		NotificationSent, reference, sentAt.UTC(), time.Now().UTC(), incidentID, tenantID, NotificationSent)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, tenantID, incidentID int64) (*Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id=? AND tenant_id=?`, incidentID, tenantID)
	return scanIncident(row)
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	clauses := []string{"tenant_id=?"}
	args := []any{filter.TenantID}
	if filter.From != nil {
		clauses = append(clauses, "event_date>=?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "event_date<=?")
		args = append(args, filter.To.UTC())
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.NotificationStatus != "" {
		// Filter on the effective status so a pending row past the deadline
		// matches 'overdue' even before the sweep persists it.
		clauses = append(clauses, effectiveNotificationExpr+"=?")
		args = append(args, filter.NotifyCutoff.UTC(), filter.NotificationStatus)
	}
	if filter.WorkerID > 0 {
		clauses = append(clauses, "worker_id=?")
		args = append(args, filter.WorkerID)
	}
	if filter.CostCenterCode != "" {
		clauses = append(clauses, "cost_center_code=?")
		args = append(args, filter.CostCenterCode)
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY event_date DESC, accident_number DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		inc, err := scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

// SweepOverdue persists the overdue escalation for every pending incident
// past the cutoff, across all tenants. The conditional set-based update is
// idempotent; concurrent sweeps from multiple instances converge on the
// same rows without locking.
func (s *incidentsStore) SweepOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET notification_status=?, updated_at=?
		WHERE notification_status=? AND event_at<=?`,
		NotificationOverdue, time.Now().UTC(), NotificationPending, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// effectiveNotificationExpr maps a pending row past the deadline cutoff to
// 'overdue' in SQL; an already sent row is never remapped. Takes one arg:
// the cutoff timestamp.
const effectiveNotificationExpr = `(CASE WHEN notification_status='pending' AND event_at<=? THEN 'overdue' ELSE notification_status END)`

func (s *incidentsStore) CountsByKind(ctx context.Context, tenantID int64, from, to *time.Time) (map[string]int64, error) {
	return s.groupCounts(ctx, "kind", tenantID, from, to, nil)
}

func (s *incidentsStore) CountsByStatus(ctx context.Context, tenantID int64, from, to *time.Time) (map[string]int64, error) {
	return s.groupCounts(ctx, "status", tenantID, from, to, nil)
}

func (s *incidentsStore) CountsByNotification(ctx context.Context, tenantID int64, from, to *time.Time, cutoff time.Time) (map[string]int64, error) {
	c := cutoff.UTC()
	return s.groupCounts(ctx, effectiveNotificationExpr, tenantID, from, to, &c)
}

func (s *incidentsStore) groupCounts(ctx context.Context, expr string, tenantID int64, from, to *time.Time, cutoff *time.Time) (map[string]int64, error) {
	var args []any
	if cutoff != nil {
		args = append(args, *cutoff)
	}
	clauses := []string{"tenant_id=?"}
	args = append(args, tenantID)
	if from != nil {
		clauses = append(clauses, "event_date>=?")
		args = append(args, from.UTC())
	}
	if to != nil {
		clauses = append(clauses, "event_date<=?")
		args = append(args, to.UTC())
	}
	query := `SELECT ` + expr + ` AS bucket, COUNT(*) FROM incidents WHERE ` +
		strings.Join(clauses, " AND ") + ` GROUP BY bucket`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int64{}
	for rows.Next() {
		var bucket string
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, err
		}
		counts[bucket] = n
	}
	return counts, rows.Err()
}

// RecurrentSubjects counts workers appearing in more than one incident over
// the whole tenant history, never bounded by a date range.
func (s *incidentsStore) RecurrentSubjects(ctx context.Context, tenantID int64) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT worker_id FROM incidents WHERE tenant_id=? GROUP BY worker_id HAVING COUNT(*)>1
		) recurrent`, tenantID)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *incidentsStore) AddAttachment(ctx context.Context, att *Attachment) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_attachments(incident_id, file_ref, filename, content_type, size_bytes, description, uploaded_by, uploaded_at, deleted_at)
		VALUES(?,?,?,?,?,?,?,?,NULL)`,
		att.IncidentID, att.FileRef, att.Filename, att.ContentType, att.SizeBytes,
		strings.TrimSpace(att.Description), att.UploadedBy, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	att.ID = id
	att.UploadedAt = now
	return nil
}

func (s *incidentsStore) ListAttachments(ctx context.Context, incidentID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.incident_id, i.tenant_id, a.file_ref, a.filename, a.content_type, a.size_bytes, a.description, a.uploaded_by, a.uploaded_at, a.deleted_at
		FROM incident_attachments a JOIN incidents i ON i.id=a.incident_id
		WHERE a.incident_id=? AND a.deleted_at IS NULL
		ORDER BY a.uploaded_at DESC, a.id DESC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Attachment
	for rows.Next() {
		var a Attachment
		var deleted sql.NullTime
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.IncidentTenantID, &a.FileRef, &a.Filename, &a.ContentType, &a.SizeBytes, &a.Description, &a.UploadedBy, &a.UploadedAt, &deleted); err != nil {
			return nil, err
		}
		if deleted.Valid {
			a.DeletedAt = &deleted.Time
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *incidentsStore) GetAttachment(ctx context.Context, attachmentID int64) (*Attachment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.incident_id, i.tenant_id, a.file_ref, a.filename, a.content_type, a.size_bytes, a.description, a.uploaded_by, a.uploaded_at, a.deleted_at
		FROM incident_attachments a JOIN incidents i ON i.id=a.incident_id
		WHERE a.id=?`, attachmentID)
	var a Attachment
	var deleted sql.NullTime
	if err := row.Scan(&a.ID, &a.IncidentID, &a.IncidentTenantID, &a.FileRef, &a.Filename, &a.ContentType, &a.SizeBytes, &a.Description, &a.UploadedBy, &a.UploadedAt, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deleted.Valid {
		a.DeletedAt = &deleted.Time
	}
	return &a, nil
}

func (s *incidentsStore) SoftDeleteAttachment(ctx context.Context, attachmentID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incident_attachments SET deleted_at=? WHERE id=? AND deleted_at IS NULL`,
		time.Now().UTC(), attachmentID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) nextAccidentNumberTx(ctx context.Context, tx *sql.Tx, tenantID int64) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO incident_counters(tenant_id, seq)
		VALUES(?,1)
		ON CONFLICT (tenant_id)
		DO UPDATE SET seq = incident_counters.seq + 1
		RETURNING seq
	`, tenantID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func scanIncident(row *sql.Row) (*Incident, error) {
	inc, err := scanIncidentFrom(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inc, nil
}

func scanIncidentRow(rows *sql.Rows) (Incident, error) {
	return scanIncidentFrom(rows.Scan)
}

func scanIncidentFrom(scan func(...any) error) (Incident, error) {
	var inc Incident
	var medTransfer int
	var sentAt sql.NullTime
	var leaveID sql.NullInt64
	var closedAt sql.NullTime
	if err := scan(&inc.ID, &inc.TenantID, &inc.AccidentNumber, &inc.EventDate, &inc.EventTime, &inc.EventAt,
		&inc.Location, &inc.Kind,
		&inc.Subject.WorkerID, &inc.Subject.WorkerRUT, &inc.Subject.WorkerName, &inc.Subject.WorkerPosition,
		&inc.Subject.SeniorityDays, &inc.Subject.CostCenterCode, &inc.Subject.ContractType, &inc.Subject.Insurer,
		&inc.WorkPerformed, &inc.Description, &inc.Hazards, &inc.BodyPart, &inc.InjuryType, &inc.Witnesses,
		&inc.PossibleSequelae, &inc.CorrectiveActions, &medTransfer, &inc.MedicalTransferLocation,
		&inc.Status, &inc.NotificationStatus, &inc.NotificationRef, &sentAt, &leaveID,
		&inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt, &closedAt, &inc.ClosedBy); err != nil {
		return inc, err
	}
	inc.MedicalTransfer = medTransfer == 1
	if sentAt.Valid {
		inc.NotificationSentAt = &sentAt.Time
	}
	if leaveID.Valid {
		inc.MedicalLeaveID = &leaveID.Int64
	}
	if closedAt.Valid {
		inc.ClosedAt = &closedAt.Time
	}
	return inc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "SQLSTATE 23505") // postgres
}
