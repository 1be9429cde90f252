package taskstatus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

// Updater is the single writer of the task registry and the tasks-by-state
// index. Every state transition goes through here so the two views are
// always reconciled the same way: read the current state, move the index
// entry, then update the registry. The two writes are not atomic; the
// registry is the source of truth and the synchronizer repairs the index
// when a crash lands between them.
type Updater struct {
	tasks  store.TaskStore
	index  store.TaskStateIndexStore
	logger *slog.Logger
	now    func() time.Time
}

// NewUpdater creates an Updater over the given stores.
func NewUpdater(tasks store.TaskStore, index store.TaskStateIndexStore, log *slog.Logger) *Updater {
	if tasks == nil {
		panic("tasks store cannot be nil")
	}
	if index == nil {
		panic("index store cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Updater{
		tasks:  tasks,
		index:  index,
		logger: log.With(slog.String("component", "task_status_updater")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// InsertTask registers a newly submitted task in both views. The task is
// forced into the QUEUED state regardless of what the submitter set.
func (u *Updater) InsertTask(ctx context.Context, task *domain.Task, appID, topicName string) error {
	log := logger.FromContextOrDefault(ctx, u.logger)

	task.State = domain.TaskStateQueued
	if task.SentTime == nil {
		sent := u.now()
		task.SentTime = &sent
	}

	if err := task.Validate(); err != nil {
		return err
	}

	entry := &domain.TaskStateIndexEntry{
		State:        task.State,
		TopologyName: task.TopologyName,
		TaskID:       task.ID,
		AppID:        appID,
		TopicName:    topicName,
		StartTime:    task.StartTime,
	}

	if err := retry.DoStore(ctx, func() error {
		return u.index.Insert(ctx, entry)
	}); err != nil {
		return err
	}

	if err := retry.DoStore(ctx, func() error {
		return u.tasks.Insert(ctx, task)
	}); err != nil {
		return err
	}

	log.Info("task registered",
		slog.Int64("task_id", task.ID),
		slog.String("topology", task.TopologyName))
	return nil
}

// UpdateState moves the task to a new non-terminal state. Entering
// CURRENTLY_PROCESSING stamps the start time. Returns
// store.ErrTerminalState if the task already finished; terminal states
// never change again.
func (u *Updater) UpdateState(ctx context.Context, taskID int64, state domain.TaskState, description string) error {
	log := logger.FromContextOrDefault(ctx, u.logger)

	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		if cur.State == state {
			return nil
		}
		return store.ErrTerminalState
	}
	if cur.State == state {
		// Only the description changes; the index entry stays put.
		return retry.DoStore(ctx, func() error {
			return u.tasks.UpdateState(ctx, taskID, state, description, nil)
		})
	}

	var startTime *time.Time
	if state == domain.TaskStateCurrentlyProcessing && cur.StartTime == nil {
		start := u.now()
		startTime = &start
	}

	if err := u.moveIndexEntry(ctx, cur, state, startTime); err != nil {
		return err
	}

	if err := retry.DoStore(ctx, func() error {
		return u.tasks.UpdateState(ctx, taskID, state, description, startTime)
	}); err != nil {
		return err
	}

	log.Info("task state updated",
		slog.Int64("task_id", taskID),
		slog.String("from", string(cur.State)),
		slog.String("to", string(state)))
	return nil
}

// SetCompletelyProcessed marks the task PROCESSED with a finish time.
func (u *Updater) SetCompletelyProcessed(ctx context.Context, taskID int64, description string) error {
	return u.finish(ctx, taskID, domain.TaskStateProcessed, description)
}

// SetDropped marks the task DROPPED with a finish time. Dropping an
// already-dropped task is a no-op so kill requests stay idempotent;
// dropping a PROCESSED task returns store.ErrTerminalState.
func (u *Updater) SetDropped(ctx context.Context, taskID int64, description string) error {
	return u.finish(ctx, taskID, domain.TaskStateDropped, description)
}

func (u *Updater) finish(ctx context.Context, taskID int64, state domain.TaskState, description string) error {
	log := logger.FromContextOrDefault(ctx, u.logger)

	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		if cur.State == state {
			return nil
		}
		return store.ErrTerminalState
	}

	if err := u.moveIndexEntry(ctx, cur, state, nil); err != nil {
		return err
	}

	finishTime := u.now()
	if err := retry.DoStore(ctx, func() error {
		return u.tasks.Finish(ctx, taskID, state, description, finishTime)
	}); err != nil {
		return err
	}

	log.Info("task finished",
		slog.Int64("task_id", taskID),
		slog.String("state", string(state)))
	return nil
}

// EndTask writes the final counters and terminal state in one registry
// statement, after moving the index entry.
func (u *Updater) EndTask(ctx context.Context, taskID int64, counters domain.TaskCounters, state domain.TaskState, description string) error {
	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		if cur.State == state {
			return nil
		}
		return store.ErrTerminalState
	}

	if err := u.moveIndexEntry(ctx, cur, state, nil); err != nil {
		return err
	}

	finishTime := u.now()
	return retry.DoStore(ctx, func() error {
		return u.tasks.EndTask(ctx, taskID, counters, state, description, finishTime)
	})
}

// SetExpectedSize revises the expected record count. Allowed in any
// non-terminal state.
func (u *Updater) SetExpectedSize(ctx context.Context, taskID int64, expectedSize int) error {
	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		return store.ErrTerminalState
	}

	return retry.DoStore(ctx, func() error {
		return u.tasks.SetExpectedSize(ctx, taskID, expectedSize)
	})
}

// UpdateProcessedCounts overwrites the progress counters. Counter writes
// do not touch the state machine, so no index work is needed, but a
// finished task's counters are frozen: a worker racing a kill gets
// store.ErrTerminalState instead of mutating the dropped task.
func (u *Updater) UpdateProcessedCounts(ctx context.Context, taskID int64, counters domain.TaskCounters) error {
	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		return store.ErrTerminalState
	}

	return retry.DoStore(ctx, func() error {
		return u.tasks.UpdateCounters(ctx, taskID, counters)
	})
}

// UpdatePostProcessedCounts sets the post-processing progress counters.
// Like UpdateProcessedCounts, rejected once the task is terminal.
func (u *Updater) UpdatePostProcessedCounts(ctx context.Context, taskID int64, expected, processed int) error {
	cur, err := u.currentTask(ctx, taskID)
	if err != nil {
		return err
	}
	if cur.IsTerminal() {
		return store.ErrTerminalState
	}

	return retry.DoStore(ctx, func() error {
		return u.tasks.UpdatePostProcessedCounts(ctx, taskID, expected, processed)
	})
}

func (u *Updater) currentTask(ctx context.Context, taskID int64) (*domain.Task, error) {
	return retry.StoreValue(ctx, func() (*domain.Task, error) {
		return u.tasks.FindByID(ctx, taskID)
	})
}

// moveIndexEntry relocates the tasks-by-state entry from the task's current
// state to newState, carrying over the submission metadata stored on the
// old entry. A missing old entry is tolerated: the index is derived data
// and an earlier crash may have already removed it.
func (u *Updater) moveIndexEntry(ctx context.Context, cur *domain.Task, newState domain.TaskState, startTime *time.Time) error {
	log := logger.FromContextOrDefault(ctx, u.logger)

	newEntry := &domain.TaskStateIndexEntry{
		State:        newState,
		TopologyName: cur.TopologyName,
		TaskID:       cur.ID,
		StartTime:    cur.StartTime,
	}
	if startTime != nil {
		newEntry.StartTime = startTime
	}

	oldEntry, err := retry.StoreValue(ctx, func() (*domain.TaskStateIndexEntry, error) {
		return u.index.FindEntry(ctx, cur.State, cur.TopologyName, cur.ID)
	})
	switch {
	case err == nil:
		newEntry.AppID = oldEntry.AppID
		newEntry.TopicName = oldEntry.TopicName
		if newEntry.StartTime == nil {
			newEntry.StartTime = oldEntry.StartTime
		}

		if err := retry.DoStore(ctx, func() error {
			return u.index.Delete(ctx, cur.State, cur.TopologyName, cur.ID)
		}); err != nil {
			return err
		}
	case errors.Is(err, store.ErrNotFound):
		log.Debug("no index entry for current state, inserting fresh one",
			slog.Int64("task_id", cur.ID),
			slog.String("state", string(cur.State)))
	default:
		return err
	}

	return retry.DoStore(ctx, func() error {
		return u.index.Insert(ctx, newEntry)
	})
}
