package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/taskledger/taskledger/migrations"
)

// slogGooseLogger routes goose's log output through slog.
type slogGooseLogger struct{}

func (*slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)),
		slog.String("component", "migrations"))
	os.Exit(1)
}

func (*slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)),
		slog.String("component", "migrations"))
}

// runMigrations applies any pending schema migrations embedded in the
// binary. All log lines of one run share a correlation ID.
func runMigrations(db *sql.DB) error {
	migrationLogger := slog.Default().With(
		slog.String("correlation_id", uuid.New().String()),
		slog.String("component", "migrations"))

	goose.SetLogger(&slogGooseLogger{})
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	start := time.Now()
	migrationLogger.Info("applying schema migrations")
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	migrationLogger.Info("schema migrations applied",
		slog.Duration("duration", time.Since(start)))
	return nil
}
