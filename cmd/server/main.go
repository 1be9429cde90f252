// Package main implements the entry point for the task tracking server,
// which records task lifecycle state, per-record progress and cancellation
// requests for processing topologies, backed by PostgreSQL.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskledger/taskledger/internal/api"
	"github.com/taskledger/taskledger/internal/config"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/platform/postgres"
	"github.com/taskledger/taskledger/internal/service/harvest"
	"github.com/taskledger/taskledger/internal/service/progress"
	"github.com/taskledger/taskledger/internal/service/taskstatus"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Duration("sync_interval", cfg.Tracking.SyncInterval),
		slog.Int("topics", len(cfg.Tracking.Topics)))

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return err
	}

	tasks := postgres.NewPostgresTaskStore(db, appLogger)
	index := postgres.NewPostgresTaskStateIndexStore(db, appLogger)
	notifications := postgres.NewPostgresNotificationStore(db, appLogger)
	processed := postgres.NewPostgresProcessedRecordStore(db, appLogger)
	procState := postgres.NewPostgresRecordProcessingStateStore(db, appLogger)
	statistics := postgres.NewPostgresStatisticsStore(db, appLogger)
	errorStore := postgres.NewPostgresErrorStore(db, appLogger)
	harvested := postgres.NewPostgresHarvestedRecordStore(db, appLogger)

	updater := taskstatus.NewUpdater(tasks, index, appLogger)
	purger := taskstatus.NewPurger(tasks, index, notifications, processed,
		procState, statistics, errorStore, appLogger)
	checker := taskstatus.NewCancellationChecker(tasks, cfg.Tracking.CancellationRefresh, appLogger)
	recorder := progress.NewRecorder(notifications, processed, procState, errorStore, appLogger)
	synchronizer := taskstatus.NewSynchronizer(index, tasks, procState, notifications,
		cfg.Tracking.Topics, cfg.Tracking.SyncInterval, appLogger)
	catalog := harvest.NewCatalog(harvested, appLogger)

	handler := api.NewTaskHandler(tasks, index, updater, purger, checker, recorder)
	datasetHandler := api.NewDatasetHandler(catalog)
	router := api.NewRouter(handler, datasetHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	synchronizer.Start(ctx)
	defer synchronizer.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("shutdown signal received")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	appLogger.Info("server stopped")
	return nil
}
