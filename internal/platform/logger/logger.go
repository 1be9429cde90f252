// Package logger provides structured logging for the application.
//
// It uses the standard library log/slog package for structured JSON
// logging with configurable levels, and carries request- or task-scoped
// loggers through the context so components can log with inherited
// attributes without threading a logger through every call.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/taskledger/taskledger/internal/config"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

// loggerKey is the context key under which the scoped logger is stored.
const loggerKey contextKey = iota

// Setup initializes the application's logging based on the provided
// configuration: a JSON handler on stdout at the configured level. The
// returned logger is also installed as slog's default.
func Setup(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithLogger returns a copy of ctx carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or nil if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(loggerKey).(*slog.Logger)
	return logger
}

// FromContextOrDefault returns the logger carried by ctx, falling back to
// fallback, then to slog.Default. Components call this at the top of each
// operation so request-scoped attributes win over the component logger.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
