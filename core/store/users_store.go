package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	Roles        []string  `json:"roles"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UsersStore interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

func (s *usersStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(tenant_id, username, password_hash, salt, roles, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		u.TenantID, strings.ToLower(strings.TrimSpace(u.Username)), u.PasswordHash, u.Salt,
		string(roles), boolToInt(u.Active), now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *usersStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, salt, roles, active, created_at, updated_at
		FROM users WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, salt, roles, active, created_at, updated_at
		FROM users WHERE id=?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var rolesRaw string
	var active int
	if err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.PasswordHash, &u.Salt, &rolesRaw, &active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(rolesRaw), &u.Roles)
	u.Active = active == 1
	return &u, nil
}
