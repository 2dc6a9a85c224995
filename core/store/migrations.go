package store

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	"condor-raat/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations runs the embedded goose migrations up to the latest version.
func ApplyMigrations(ctx context.Context, db *sql.DB, driver string, logger *utils.Logger) error {
	dialect := "sqlite3"
	if driver == "postgres" {
		dialect = "postgres"
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Infof("store: schema at version %d", version)
	}
	return nil
}
