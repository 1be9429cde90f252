package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// PostgresRecordProcessingStateStore implements
// store.RecordProcessingStateStore. Every write stamps an expires_at; reads
// ignore expired rows and PurgeExpired reclaims them, which stands in for
// the row-level TTL a wide-column backend would provide.
type PostgresRecordProcessingStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRecordProcessingStateStore creates a new PostgreSQL
// implementation of the RecordProcessingStateStore interface.
func NewPostgresRecordProcessingStateStore(db store.DBTX, logger *slog.Logger) *PostgresRecordProcessingStateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRecordProcessingStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "record_processing_state_store")),
	}
}

// Ensure the store interface is implemented
var _ store.RecordProcessingStateStore = (*PostgresRecordProcessingStateStore)(nil)

// SelectAttempt implements store.RecordProcessingStateStore.SelectAttempt.
// An absent or expired marker reads as attempt 0.
func (s *PostgresRecordProcessingStateStore) SelectAttempt(ctx context.Context, taskID int64, recordID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT attempt_number
		FROM record_processing_state
		WHERE task_id = $1 AND record_id = $2 AND expires_at > now()
	`

	var attempt int
	err := s.db.QueryRowContext(ctx, query, taskID, recordID).Scan(&attempt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		log.Error("failed to select record attempt",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("record_id", recordID))
		return 0, MapError(err)
	}

	return attempt, nil
}

// InsertAttempt implements store.RecordProcessingStateStore.InsertAttempt.
func (s *PostgresRecordProcessingStateStore) InsertAttempt(ctx context.Context, state *domain.RecordProcessingState, retention time.Duration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO record_processing_state (task_id, record_id, attempt_number, start_time, stage, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, record_id)
		DO UPDATE SET attempt_number = EXCLUDED.attempt_number,
		              start_time = EXCLUDED.start_time,
		              stage = EXCLUDED.stage,
		              expires_at = EXCLUDED.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		state.TaskID,
		state.RecordID,
		state.AttemptNumber,
		state.StartTime,
		state.Stage,
		time.Now().UTC().Add(retention),
	)
	if err != nil {
		log.Error("failed to insert record processing state",
			slog.String("error", err.Error()),
			slog.Int64("task_id", state.TaskID),
			slog.String("record_id", state.RecordID))
		return MapError(err)
	}

	return nil
}

// UpdateStage implements store.RecordProcessingStateStore.UpdateStage.
// Returns store.ErrRecordNotFound if no live marker exists.
func (s *PostgresRecordProcessingStateStore) UpdateStage(ctx context.Context, taskID int64, recordID string, stage domain.ProcessingStage, retention time.Duration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE record_processing_state
		SET stage = $1, expires_at = $2
		WHERE task_id = $3 AND record_id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		stage,
		time.Now().UTC().Add(retention),
		taskID,
		recordID,
	)
	if err != nil {
		log.Error("failed to update record processing stage",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("record_id", recordID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrRecordNotFound)
}

// PurgeExpired implements store.RecordProcessingStateStore.PurgeExpired.
func (s *PostgresRecordProcessingStateStore) PurgeExpired(ctx context.Context) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM record_processing_state WHERE expires_at <= now()`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		log.Error("failed to purge expired processing state",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	if purged > 0 {
		log.Debug("purged expired processing state rows", slog.Int64("rows", purged))
	}
	return purged, nil
}

// RemoveForTask implements store.RecordProcessingStateStore.RemoveForTask.
func (s *PostgresRecordProcessingStateStore) RemoveForTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM record_processing_state WHERE task_id = $1`

	if _, err := s.db.ExecContext(ctx, query, taskID); err != nil {
		log.Error("failed to remove record processing state",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return MapError(err)
	}

	return nil
}
