package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// PostgresErrorStore implements store.ErrorStore over the error_counters
// and error_notifications tables. The counter row owns the error type's
// human-readable message; notifications hold the individual occurrences.
type PostgresErrorStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresErrorStore creates a new PostgreSQL implementation of the
// ErrorStore interface.
func NewPostgresErrorStore(db store.DBTX, logger *slog.Logger) *PostgresErrorStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresErrorStore{
		db:     db,
		logger: logger.With(slog.String("component", "error_store")),
	}
}

// Ensure PostgresErrorStore implements store.ErrorStore
var _ store.ErrorStore = (*PostgresErrorStore)(nil)

// IncrementCounter implements store.ErrorStore.IncrementCounter. The
// message is written once when the counter row is created; later
// increments keep the original message.
func (s *PostgresErrorStore) IncrementCounter(ctx context.Context, taskID int64, errorType uuid.UUID, message string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO error_counters (task_id, error_type, error_message, error_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (task_id, error_type)
		DO UPDATE SET error_count = error_counters.error_count + 1
	`

	if _, err := s.db.ExecContext(ctx, query, taskID, errorType, message); err != nil {
		log.Error("failed to increment error counter",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("error_type", errorType.String()))
		return MapError(err)
	}

	return nil
}

// InsertNotification implements store.ErrorStore.InsertNotification.
func (s *PostgresErrorStore) InsertNotification(ctx context.Context, notification *domain.ErrorNotification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO error_notifications (task_id, error_type, error_message, resource, additional_info)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		notification.TaskID,
		notification.ErrorType,
		notification.ErrorMessage,
		notification.Resource,
		notification.AdditionalInfo,
	)
	if err != nil {
		log.Error("failed to insert error notification",
			slog.String("error", err.Error()),
			slog.Int64("task_id", notification.TaskID),
			slog.String("error_type", notification.ErrorType.String()))
		return MapError(err)
	}

	return nil
}

// ErrorCount implements store.ErrorStore.ErrorCount.
func (s *PostgresErrorStore) ErrorCount(ctx context.Context, taskID int64) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(SUM(error_count), 0)
		FROM error_counters
		WHERE task_id = $1
	`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, taskID).Scan(&count); err != nil {
		log.Error("failed to count task errors",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return 0, MapError(err)
	}

	return count, nil
}

// CountForType implements store.ErrorStore.CountForType. An unknown error
// type reads as zero.
func (s *PostgresErrorStore) CountForType(ctx context.Context, taskID int64, errorType uuid.UUID) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT error_count
		FROM error_counters
		WHERE task_id = $1 AND error_type = $2
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, taskID, errorType).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		log.Error("failed to count errors for type",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("error_type", errorType.String()))
		return 0, MapError(err)
	}

	return count, nil
}

// MessageForType implements store.ErrorStore.MessageForType.
func (s *PostgresErrorStore) MessageForType(ctx context.Context, taskID int64, errorType uuid.UUID) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT error_message
		FROM error_counters
		WHERE task_id = $1 AND error_type = $2
	`

	var message string
	err := s.db.QueryRowContext(ctx, query, taskID, errorType).Scan(&message)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		log.Error("failed to read error type message",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("error_type", errorType.String()))
		return "", MapError(err)
	}

	return message, nil
}

// ListCounters implements store.ErrorStore.ListCounters.
func (s *PostgresErrorStore) ListCounters(ctx context.Context, taskID int64) ([]domain.ErrorCounter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_id, error_type, error_message, error_count
		FROM error_counters
		WHERE task_id = $1
		ORDER BY error_count DESC, error_type
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list error counters",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	counters := []domain.ErrorCounter{}
	for rows.Next() {
		var c domain.ErrorCounter
		if err := rows.Scan(&c.TaskID, &c.ErrorType, &c.Message, &c.Count); err != nil {
			log.Error("failed to scan error counter row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		counters = append(counters, c)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return counters, nil
}

// RemoveForTask implements store.ErrorStore.RemoveForTask.
func (s *PostgresErrorStore) RemoveForTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	queries := []string{
		`DELETE FROM error_notifications WHERE task_id = $1`,
		`DELETE FROM error_counters WHERE task_id = $1`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query, taskID); err != nil {
			log.Error("failed to remove task errors",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID))
			return MapError(err)
		}
	}

	return nil
}
