package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// PostgresTaskStateIndexStore implements store.TaskStateIndexStore, the
// denormalized tasks-by-state view. State is part of the primary key, so a
// state transition is always a delete of the old entry plus an insert of
// the new one; this store never updates a row in place.
type PostgresTaskStateIndexStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStateIndexStore creates a new PostgreSQL implementation
// of the TaskStateIndexStore interface.
func NewPostgresTaskStateIndexStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStateIndexStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStateIndexStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_state_index_store")),
	}
}

// Ensure PostgresTaskStateIndexStore implements store.TaskStateIndexStore
var _ store.TaskStateIndexStore = (*PostgresTaskStateIndexStore)(nil)

// Insert implements store.TaskStateIndexStore.Insert. An existing entry
// for the same (state, topology, task) key is overwritten: the index is
// strictly derived data, so the newest write wins.
func (s *PostgresTaskStateIndexStore) Insert(ctx context.Context, entry *domain.TaskStateIndexEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO task_state_index (state, topology_name, task_id, app_id, topic_name, start_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (state, topology_name, task_id)
		DO UPDATE SET app_id = EXCLUDED.app_id, topic_name = EXCLUDED.topic_name, start_time = EXCLUDED.start_time
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.State,
		entry.TopologyName,
		entry.TaskID,
		entry.AppID,
		entry.TopicName,
		entry.StartTime,
	)
	if err != nil {
		log.Error("failed to insert task state index entry",
			slog.String("error", err.Error()),
			slog.Int64("task_id", entry.TaskID),
			slog.String("state", string(entry.State)))
		return MapError(err)
	}

	return nil
}

// Delete implements store.TaskStateIndexStore.Delete. Deleting an absent
// entry is a no-op: transitions race the synchronizer by design.
func (s *PostgresTaskStateIndexStore) Delete(ctx context.Context, state domain.TaskState, topologyName string, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM task_state_index
		WHERE state = $1 AND topology_name = $2 AND task_id = $3
	`

	_, err := s.db.ExecContext(ctx, query, state, topologyName, taskID)
	if err != nil {
		log.Error("failed to delete task state index entry",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("state", string(state)))
		return MapError(err)
	}

	return nil
}

// FindEntry implements store.TaskStateIndexStore.FindEntry.
// Returns store.ErrTaskNotFound if no entry exists for the key.
func (s *PostgresTaskStateIndexStore) FindEntry(ctx context.Context, state domain.TaskState, topologyName string, taskID int64) (*domain.TaskStateIndexEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT state, topology_name, task_id, app_id, topic_name, start_time
		FROM task_state_index
		WHERE state = $1 AND topology_name = $2 AND task_id = $3
	`

	entry, err := scanIndexEntry(s.db.QueryRowContext(ctx, query, state, topologyName, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to find task state index entry",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("state", string(state)))
		return nil, MapError(err)
	}

	return entry, nil
}

// FindTasksByStateAndTopology implements
// store.TaskStateIndexStore.FindTasksByStateAndTopology.
// Returns an empty slice when nothing matches.
func (s *PostgresTaskStateIndexStore) FindTasksByStateAndTopology(ctx context.Context, states []domain.TaskState, topologyName string) ([]domain.TaskStateIndexEntry, error) {
	query := `
		SELECT state, topology_name, task_id, app_id, topic_name, start_time
		FROM task_state_index
		WHERE state = ANY($1) AND topology_name = $2
		ORDER BY task_id
	`

	return s.queryEntries(ctx, query, stateStrings(states), topologyName)
}

// FindTasksByState implements store.TaskStateIndexStore.FindTasksByState.
func (s *PostgresTaskStateIndexStore) FindTasksByState(ctx context.Context, states []domain.TaskState) ([]domain.TaskStateIndexEntry, error) {
	query := `
		SELECT state, topology_name, task_id, app_id, topic_name, start_time
		FROM task_state_index
		WHERE state = ANY($1)
		ORDER BY task_id
	`

	return s.queryEntries(ctx, query, stateStrings(states))
}

func (s *PostgresTaskStateIndexStore) queryEntries(ctx context.Context, query string, args ...any) ([]domain.TaskStateIndexEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query task state index",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []domain.TaskStateIndexEntry{}
	for rows.Next() {
		var entry domain.TaskStateIndexEntry

		err := rows.Scan(
			&entry.State,
			&entry.TopologyName,
			&entry.TaskID,
			&entry.AppID,
			&entry.TopicName,
			&entry.StartTime,
		)
		if err != nil {
			log.Error("failed to scan index entry row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return entries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexEntry(row rowScanner) (*domain.TaskStateIndexEntry, error) {
	var entry domain.TaskStateIndexEntry

	err := row.Scan(
		&entry.State,
		&entry.TopologyName,
		&entry.TaskID,
		&entry.AppID,
		&entry.TopicName,
		&entry.StartTime,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func stateStrings(states []domain.TaskState) []string {
	out := make([]string, len(states))
	for i, state := range states {
		out[i] = string(state)
	}
	return out
}
