// Package config handles configuration loading, parsing, and validation
// from environment variables and optional config files. It provides
// type-safe access to application settings while keeping configuration
// details separate from business logic.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Tracking TrackingConfig `mapstructure:"tracking" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// TrackingConfig tunes the bookkeeping loops. Bucket sizes are fixed
// constants of the data layout and deliberately not configurable; changing
// them would strand existing rows.
type TrackingConfig struct {
	// SyncInterval is how often the synchronizer reconciles the
	// tasks-by-state index.
	SyncInterval time.Duration `mapstructure:"sync_interval" validate:"required"`

	// CancellationRefresh bounds how stale a cached cancellation decision
	// may be on the per-record path.
	CancellationRefresh time.Duration `mapstructure:"cancellation_refresh" validate:"required"`

	// Topics restricts the synchronizer to entries whose topic this
	// deployment owns. Empty means reconcile everything.
	Topics []string `mapstructure:"topics"`
}
