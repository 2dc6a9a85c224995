package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"condor-raat/config"
	"condor-raat/core/utils"
)

// NewDB opens the configured database. SQLite (pure Go driver) is the default
// for single-node installs; Postgres via pgx is the clustered option.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("db_path is required for the sqlite driver")
		}
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		dsn := cfg.DBPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// The sqlite file is a single writer; serializing through one
		// connection avoids SQLITE_BUSY under concurrent creates.
		db.SetMaxOpenConns(1)
		logger.Infof("store: sqlite database at %s", cfg.DBPath)
		return db, nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		logger.Infof("store: postgres database")
		return db, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}
