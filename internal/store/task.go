package store

import (
	"context"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
)

// TaskStore is the canonical per-task metadata table (the task registry),
// keyed by task ID. It is written only through the status updater.
type TaskStore interface {
	// Insert creates the registry row for a newly submitted task.
	Insert(ctx context.Context, task *domain.Task) error

	// FindByID returns the task, or ErrTaskNotFound.
	FindByID(ctx context.Context, taskID int64) (*domain.Task, error)

	// UpdateState sets state, state description and, when non-nil, the
	// start time.
	UpdateState(ctx context.Context, taskID int64, state domain.TaskState, description string, startTime *time.Time) error

	// Finish sets a terminal state together with the finish time.
	Finish(ctx context.Context, taskID int64, state domain.TaskState, description string, finishTime time.Time) error

	// SetExpectedSize revises the expected record count upward while the
	// task is still discovering its input size.
	SetExpectedSize(ctx context.Context, taskID int64, expectedSize int) error

	// UpdateCounters overwrites the progress counters.
	UpdateCounters(ctx context.Context, taskID int64, counters domain.TaskCounters) error

	// EndTask writes final counters, terminal-or-final state, description
	// and finish time in one statement.
	EndTask(ctx context.Context, taskID int64, counters domain.TaskCounters, state domain.TaskState, description string, finishTime time.Time) error

	// UpdatePostProcessedCounts sets the post-processing progress counters.
	UpdatePostProcessedCounts(ctx context.Context, taskID int64, expected, processed int) error

	// Delete removes the registry row. Used only by purge.
	Delete(ctx context.Context, taskID int64) error
}

// TaskStateIndexStore is the denormalized tasks-by-state view. Because the
// state is part of the key, transitions are modeled as delete + insert.
type TaskStateIndexStore interface {
	// Insert adds an index entry for the given state.
	Insert(ctx context.Context, entry *domain.TaskStateIndexEntry) error

	// Delete removes the entry for (state, topology, task), if present.
	Delete(ctx context.Context, state domain.TaskState, topologyName string, taskID int64) error

	// FindEntry returns the entry for (state, topology, task), or
	// ErrTaskNotFound.
	FindEntry(ctx context.Context, state domain.TaskState, topologyName string, taskID int64) (*domain.TaskStateIndexEntry, error)

	// FindTasksByStateAndTopology lists entries in any of the given states
	// for one topology.
	FindTasksByStateAndTopology(ctx context.Context, states []domain.TaskState, topologyName string) ([]domain.TaskStateIndexEntry, error)

	// FindTasksByState lists entries in any of the given states across all
	// topologies.
	FindTasksByState(ctx context.Context, states []domain.TaskState) ([]domain.TaskStateIndexEntry, error)
}
