package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"condor-raat/api"
	"condor-raat/config"
	"condor-raat/core/store"
	"condor-raat/core/utils"
)

// Run wires the whole application and blocks until SIGINT/SIGTERM.
func Run(configPath string) error {
	logger := utils.NewLogger()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, cfg.DBDriver, logger); err != nil {
		return err
	}

	comp, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	if _, err := comp.sessions.DeleteExpired(ctx, utils.NowUTC()); err != nil {
		logger.Warnf("bootstrap: expired session cleanup failed: %v", err)
	}
	if err := comp.sweeper.Start(ctx); err != nil {
		return err
	}

	server := api.NewServer(comp.serverDeps)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := comp.sweeper.Stop(shutdownCtx); err != nil {
		logger.Warnf("bootstrap: sweeper shutdown: %v", err)
	}
	return httpServer.Shutdown(shutdownCtx)
}
