package appbootstrap

import (
	"context"
	"database/sql"

	"condor-raat/api"
	"condor-raat/config"
	"condor-raat/core/auth"
	"condor-raat/core/raat"
	"condor-raat/core/raat/filestore"
	"condor-raat/core/rbac"
	"condor-raat/core/store"
	"condor-raat/core/utils"
	"condor-raat/core/workers"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionStore
	sweeper    *raat.Sweeper
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	incidentsStore := store.NewIncidentsStore(db)
	workersStore := store.NewWorkersStore(db)

	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	files, err := filestore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	workersSvc := workers.NewService(workersStore)
	raatSvc := raat.NewService(cfg.RAAT, incidentsStore, workersSvc, files, audits, logger)
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	sweeper := raat.NewSweeper(cfg.Scheduler, raatSvc, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Cfg:      cfg,
			DB:       db,
			Users:    users,
			Sessions: sessionManager,
			Policy:   policy,
			Audits:   audits,
			RAAT:     raatSvc,
			Workers:  workersSvc,
			Logger:   logger,
		},
		sessions: sessions,
		sweeper:  sweeper,
	}, nil
}
