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

// PostgresTaskStore implements the store.TaskStore interface (the task
// registry) using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. The connection (or transaction) is managed by the
// caller. If logger is nil, the default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Insert implements store.TaskStore.Insert.
// Returns validation errors from the domain Task if data is invalid and
// store.ErrDuplicate if the task ID is already registered.
func (s *PostgresTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during insert",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return err
	}

	query := `
		INSERT INTO task_registry (
			task_id, topology_name, state, state_description,
			sent_time, start_time, finish_time,
			expected_records, processed_records, ignored_records, deleted_records,
			processed_errors, post_processed_expected, post_processed_count, definition
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.TopologyName,
		task.State,
		task.StateDescription,
		task.SentTime,
		task.StartTime,
		task.FinishTime,
		task.ExpectedRecords,
		task.ProcessedRecords,
		task.IgnoredRecords,
		task.DeletedRecords,
		task.ProcessedErrors,
		task.PostProcessedExpected,
		task.PostProcessedCount,
		task.Definition,
	)

	if err != nil {
		log.Error("failed to insert task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID),
			slog.String("topology", task.TopologyName))
		return MapError(err)
	}

	log.Info("task inserted",
		slog.Int64("task_id", task.ID),
		slog.String("topology", task.TopologyName),
		slog.String("state", string(task.State)))
	return nil
}

// FindByID implements store.TaskStore.FindByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) FindByID(ctx context.Context, taskID int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_id, topology_name, state, state_description,
		       sent_time, start_time, finish_time,
		       expected_records, processed_records, ignored_records, deleted_records,
		       processed_errors, post_processed_expected, post_processed_count, definition
		FROM task_registry
		WHERE task_id = $1
	`

	var task domain.Task
	var state string

	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&task.ID,
		&task.TopologyName,
		&state,
		&task.StateDescription,
		&task.SentTime,
		&task.StartTime,
		&task.FinishTime,
		&task.ExpectedRecords,
		&task.ProcessedRecords,
		&task.IgnoredRecords,
		&task.DeletedRecords,
		&task.ProcessedErrors,
		&task.PostProcessedExpected,
		&task.PostProcessedCount,
		&task.Definition,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", taskID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}

	task.State = domain.TaskState(state)
	return &task, nil
}

// UpdateState implements store.TaskStore.UpdateState.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) UpdateState(ctx context.Context, taskID int64, state domain.TaskState, description string, startTime *time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var result sql.Result
	var err error

	if startTime != nil {
		query := `
			UPDATE task_registry
			SET state = $1, state_description = $2, start_time = $3
			WHERE task_id = $4
		`
		result, err = s.db.ExecContext(ctx, query, state, description, startTime, taskID)
	} else {
		query := `
			UPDATE task_registry
			SET state = $1, state_description = $2
			WHERE task_id = $3
		`
		result, err = s.db.ExecContext(ctx, query, state, description, taskID)
	}

	if err != nil {
		log.Error("failed to update task state",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("state", string(state)))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Finish implements store.TaskStore.Finish.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Finish(ctx context.Context, taskID int64, state domain.TaskState, description string, finishTime time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE task_registry
		SET state = $1, state_description = $2, finish_time = $3
		WHERE task_id = $4
	`

	result, err := s.db.ExecContext(ctx, query, state, description, finishTime, taskID)
	if err != nil {
		log.Error("failed to finish task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("state", string(state)))
		return MapError(err)
	}

	log.Info("task finished",
		slog.Int64("task_id", taskID),
		slog.String("state", string(state)))
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// SetExpectedSize implements store.TaskStore.SetExpectedSize.
func (s *PostgresTaskStore) SetExpectedSize(ctx context.Context, taskID int64, expectedSize int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE task_registry
		SET expected_records = $1
		WHERE task_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, expectedSize, taskID)
	if err != nil {
		log.Error("failed to update expected size",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.Int("expected_size", expectedSize))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// UpdateCounters implements store.TaskStore.UpdateCounters.
func (s *PostgresTaskStore) UpdateCounters(ctx context.Context, taskID int64, counters domain.TaskCounters) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE task_registry
		SET processed_records = $1, ignored_records = $2, deleted_records = $3, processed_errors = $4
		WHERE task_id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		counters.ProcessedRecords,
		counters.IgnoredRecords,
		counters.DeletedRecords,
		counters.ProcessedErrors,
		taskID,
	)
	if err != nil {
		log.Error("failed to update task counters",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// EndTask implements store.TaskStore.EndTask.
func (s *PostgresTaskStore) EndTask(ctx context.Context, taskID int64, counters domain.TaskCounters, state domain.TaskState, description string, finishTime time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE task_registry
		SET processed_records = $1, ignored_records = $2, deleted_records = $3, processed_errors = $4,
		    state = $5, state_description = $6, finish_time = $7
		WHERE task_id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		counters.ProcessedRecords,
		counters.IgnoredRecords,
		counters.DeletedRecords,
		counters.ProcessedErrors,
		state,
		description,
		finishTime,
		taskID,
	)
	if err != nil {
		log.Error("failed to end task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("state", string(state)))
		return MapError(err)
	}

	log.Info("task ended",
		slog.Int64("task_id", taskID),
		slog.String("state", string(state)),
		slog.Int("processed", counters.ProcessedRecords),
		slog.Int("errors", counters.ProcessedErrors))
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// UpdatePostProcessedCounts implements store.TaskStore.UpdatePostProcessedCounts.
func (s *PostgresTaskStore) UpdatePostProcessedCounts(ctx context.Context, taskID int64, expected, processed int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE task_registry
		SET post_processed_expected = $1, post_processed_count = $2
		WHERE task_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, expected, processed, taskID)
	if err != nil {
		log.Error("failed to update post-processed counts",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.Delete.
// Deleting a task that does not exist is a no-op, not an error: purge must
// be idempotent.
func (s *PostgresTaskStore) Delete(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM task_registry WHERE task_id = $1`

	_, err := s.db.ExecContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return MapError(err)
	}

	log.Info("task deleted", slog.Int64("task_id", taskID))
	return nil
}
