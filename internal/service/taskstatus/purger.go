package taskstatus

import (
	"context"
	"log/slog"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

// Purger removes every trace of a task: registry row, index entries,
// notifications, processed records, in-flight markers, statistics and error
// counters. Purge is idempotent; re-purging a gone task is a no-op.
type Purger struct {
	tasks         store.TaskStore
	index         store.TaskStateIndexStore
	notifications store.NotificationStore
	processed     store.ProcessedRecordStore
	procState     store.RecordProcessingStateStore
	statistics    store.StatisticsStore
	errors        store.ErrorStore
	logger        *slog.Logger
}

// NewPurger creates a Purger over all per-task stores.
func NewPurger(
	tasks store.TaskStore,
	index store.TaskStateIndexStore,
	notifications store.NotificationStore,
	processed store.ProcessedRecordStore,
	procState store.RecordProcessingStateStore,
	statistics store.StatisticsStore,
	errors store.ErrorStore,
	log *slog.Logger,
) *Purger {
	if log == nil {
		log = slog.Default()
	}

	return &Purger{
		tasks:         tasks,
		index:         index,
		notifications: notifications,
		processed:     processed,
		procState:     procState,
		statistics:    statistics,
		errors:        errors,
		logger:        log.With(slog.String("component", "task_purger")),
	}
}

// PurgeTask removes the task and all its child data. Child data goes
// first so a crash mid-purge leaves the registry row as a handle to retry
// from; the registry row and index entries go last.
func (p *Purger) PurgeTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	task, err := retry.StoreValue(ctx, func() (*domain.Task, error) {
		return p.tasks.FindByID(ctx, taskID)
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("purge of unknown task is a no-op", slog.Int64("task_id", taskID))
			return nil
		}
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"notifications", func() error { return p.notifications.RemoveForTask(ctx, taskID) }},
		{"processed records", func() error { return p.processed.RemoveForTask(ctx, taskID) }},
		{"processing state", func() error { return p.procState.RemoveForTask(ctx, taskID) }},
		{"statistics", func() error { return p.statistics.RemoveForTask(ctx, taskID) }},
		{"errors", func() error { return p.errors.RemoveForTask(ctx, taskID) }},
	}
	for _, step := range steps {
		if err := retry.DoStore(ctx, step.run); err != nil {
			log.Error("purge step failed",
				slog.String("error", err.Error()),
				slog.String("step", step.name),
				slog.Int64("task_id", taskID))
			return err
		}
	}

	if err := retry.DoStore(ctx, func() error {
		return p.index.Delete(ctx, task.State, task.TopologyName, taskID)
	}); err != nil {
		return err
	}

	if err := retry.DoStore(ctx, func() error {
		return p.tasks.Delete(ctx, taskID)
	}); err != nil {
		return err
	}

	log.Info("task purged", slog.Int64("task_id", taskID))
	return nil
}
