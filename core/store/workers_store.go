package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// WorkersStore is the read-mostly view over the HR master data the incident
// registry consumes. Worker lifecycle (hiring, contracts, payroll) is owned
// by the HR application; this service only looks workers up and seeds test
// data.
type WorkersStore interface {
	Get(ctx context.Context, tenantID, workerID int64) (*Worker, error)
	List(ctx context.Context, tenantID int64, activeOnly bool) ([]Worker, error)
	ActiveHeadcount(ctx context.Context, tenantID int64) (int64, error)
	Create(ctx context.Context, w *Worker) error
	Update(ctx context.Context, w *Worker) error
	CreateCostCenter(ctx context.Context, tenantID int64, code, name string) (int64, error)
}

type workersStore struct {
	db *sql.DB
}

func NewWorkersStore(db *sql.DB) WorkersStore {
	return &workersStore{db: db}
}

const workerColumns = `w.id, w.tenant_id, w.rut, w.full_name, w.position, w.hire_date, w.cost_center_id,
	COALESCE(c.code, ''), w.contract_type, w.insurer, w.active, w.created_at, w.updated_at`

const workerFrom = ` FROM workers w LEFT JOIN cost_centers c ON c.id=w.cost_center_id`

func (s *workersStore) Get(ctx context.Context, tenantID, workerID int64) (*Worker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+workerFrom+` WHERE w.id=? AND w.tenant_id=?`, workerID, tenantID)
	w, err := scanWorkerFrom(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (s *workersStore) List(ctx context.Context, tenantID int64, activeOnly bool) ([]Worker, error) {
	query := `SELECT ` + workerColumns + workerFrom + ` WHERE w.tenant_id=?`
	if activeOnly {
		query += ` AND w.active=1`
	}
	query += ` ORDER BY w.full_name ASC, w.id ASC`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Worker
	for rows.Next() {
		w, err := scanWorkerFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (s *workersStore) ActiveHeadcount(ctx context.Context, tenantID int64) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers WHERE tenant_id=? AND active=1`, tenantID)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *workersStore) Create(ctx context.Context, w *Worker) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workers(tenant_id, rut, full_name, position, hire_date, cost_center_id, contract_type, insurer, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		w.TenantID, strings.TrimSpace(w.RUT), strings.TrimSpace(w.FullName), w.Position, w.HireDate.UTC(),
		nullableID(w.CostCenterID), w.ContractType, w.Insurer, boolToInt(w.Active), now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	w.ID = id
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

func (s *workersStore) Update(ctx context.Context, w *Worker) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE workers SET rut=?, full_name=?, position=?, hire_date=?, cost_center_id=?, contract_type=?, insurer=?, active=?, updated_at=?
		WHERE id=? AND tenant_id=?`,
		strings.TrimSpace(w.RUT), strings.TrimSpace(w.FullName), w.Position, w.HireDate.UTC(),
		nullableID(w.CostCenterID), w.ContractType, w.Insurer, boolToInt(w.Active), now, w.ID, w.TenantID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	w.UpdatedAt = now
	return nil
}

func (s *workersStore) CreateCostCenter(ctx context.Context, tenantID int64, code, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO cost_centers(tenant_id, code, name) VALUES(?,?,?)`,
		tenantID, strings.TrimSpace(code), strings.TrimSpace(name))
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func scanWorkerFrom(scan func(...any) error) (Worker, error) {
	var w Worker
	var ccID sql.NullInt64
	var active int
	if err := scan(&w.ID, &w.TenantID, &w.RUT, &w.FullName, &w.Position, &w.HireDate, &ccID,
		&w.CostCenterCode, &w.ContractType, &w.Insurer, &active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return w, err
	}
	if ccID.Valid {
		w.CostCenterID = &ccID.Int64
	}
	w.Active = active == 1
	return w, nil
}
