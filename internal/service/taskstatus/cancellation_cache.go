package taskstatus

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

const (
	// DefaultCancellationRefresh bounds how stale a cached drop decision
	// may be. A kill request becomes visible to record processors within
	// this window at the latest.
	DefaultCancellationRefresh = 5 * time.Second

	// cancellationCacheSize bounds the number of concurrently tracked
	// tasks. Eviction only costs a registry re-read.
	cancellationCacheSize = 1024
)

// CancellationChecker answers "was this task dropped" on the hot
// per-record path without hitting the registry for every record. Results
// are cached per task and expire after the refresh interval. A cached
// affirmative never needs refreshing since DROPPED is terminal.
type CancellationChecker struct {
	tasks  store.TaskStore
	cache  *expirable.LRU[int64, bool]
	logger *slog.Logger
}

// NewCancellationChecker creates a checker over the task registry. A
// non-positive refresh falls back to DefaultCancellationRefresh.
func NewCancellationChecker(tasks store.TaskStore, refresh time.Duration, log *slog.Logger) *CancellationChecker {
	if tasks == nil {
		panic("tasks store cannot be nil")
	}

	if refresh <= 0 {
		refresh = DefaultCancellationRefresh
	}

	if log == nil {
		log = slog.Default()
	}

	return &CancellationChecker{
		tasks:  tasks,
		cache:  expirable.NewLRU[int64, bool](cancellationCacheSize, nil, refresh),
		logger: log.With(slog.String("component", "cancellation_checker")),
	}
}

// IsDropped reports whether the task has been dropped. Returns
// store.ErrTaskNotFound for a task the registry has never seen; callers
// treat that as a reason to stop processing, same as a drop.
func (c *CancellationChecker) IsDropped(ctx context.Context, taskID int64) (bool, error) {
	if dropped, ok := c.cache.Get(taskID); ok {
		return dropped, nil
	}

	log := logger.FromContextOrDefault(ctx, c.logger)

	task, err := retry.StoreValue(ctx, func() (*domain.Task, error) {
		return c.tasks.FindByID(ctx, taskID)
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("cancellation check for unknown task", slog.Int64("task_id", taskID))
			return false, store.ErrTaskNotFound
		}
		return false, err
	}

	dropped := task.State == domain.TaskStateDropped
	c.cache.Add(taskID, dropped)

	if dropped {
		log.Info("task observed as dropped", slog.Int64("task_id", taskID))
	}
	return dropped, nil
}

// Forget removes a task's cached decision, forcing the next check to read
// the registry. Used by tests and by the kill path to make a drop visible
// immediately within this process.
func (c *CancellationChecker) Forget(taskID int64) {
	c.cache.Remove(taskID)
}
