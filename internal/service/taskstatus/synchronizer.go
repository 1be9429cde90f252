package taskstatus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

// DefaultSyncInterval is how often the synchronizer reconciles the
// tasks-by-state index against the registry.
const DefaultSyncInterval = 1 * time.Minute

// Synchronizer repairs the tasks-by-state index in the background. The
// registry and the index are written without a transaction, so a crash
// between the two writes can leave an entry claiming a task is still
// waiting when the registry already moved on. The synchronizer walks the
// active-state entries, compares each against the registry, and fixes what
// it finds. It also reclaims expired in-flight record markers while it is
// at it.
type Synchronizer struct {
	index         store.TaskStateIndexStore
	tasks         store.TaskStore
	procState     store.RecordProcessingStateStore
	notifications store.NotificationStore
	interval      time.Duration
	logger        *slog.Logger

	// topics this deployment serves; empty means serve everything.
	topics map[string]struct{}

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSynchronizer creates a Synchronizer. availableTopics restricts
// reconciliation to entries whose topic this deployment owns; pass nil to
// reconcile all entries. procState and notifications may be nil to skip
// the respective expiry purge.
func NewSynchronizer(index store.TaskStateIndexStore, tasks store.TaskStore, procState store.RecordProcessingStateStore, notifications store.NotificationStore, availableTopics []string, interval time.Duration, log *slog.Logger) *Synchronizer {
	if index == nil {
		panic("index store cannot be nil")
	}
	if tasks == nil {
		panic("tasks store cannot be nil")
	}

	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if log == nil {
		log = slog.Default()
	}

	var topics map[string]struct{}
	if len(availableTopics) > 0 {
		topics = make(map[string]struct{}, len(availableTopics))
		for _, t := range availableTopics {
			topics[t] = struct{}{}
		}
	}

	return &Synchronizer{
		index:         index,
		tasks:         tasks,
		procState:     procState,
		notifications: notifications,
		interval:      interval,
		logger:        log.With(slog.String("component", "task_synchronizer")),
		topics:        topics,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs one immediate reconciliation and then keeps reconciling on
// the configured interval until Stop is called or ctx is cancelled.
func (s *Synchronizer) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.logger.Info("task synchronizer started",
			slog.Duration("interval", s.interval))

		if err := s.SyncOnce(ctx); err != nil {
			s.logger.Error("reconciliation failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SyncOnce(ctx); err != nil {
					s.logger.Error("reconciliation failed", slog.String("error", err.Error()))
				}
			case <-s.stop:
				s.logger.Info("task synchronizer stopped")
				return
			case <-ctx.Done():
				s.logger.Info("task synchronizer stopped", slog.String("reason", ctx.Err().Error()))
				return
			}
		}
	}()
}

// Stop halts the background loop and waits for it to exit.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// SyncOnce performs one reconciliation pass, one topology at a time.
// Per-entry and per-topology failures are logged and skipped so one bad row
// cannot stall the rest of the pass.
func (s *Synchronizer) SyncOnce(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entries, err := retry.StoreValue(ctx, func() ([]domain.TaskStateIndexEntry, error) {
		return s.index.FindTasksByState(ctx, domain.ActiveTaskStates)
	})
	if err != nil {
		return err
	}

	repaired := 0
	for _, topology := range activeTopologies(entries) {
		topoEntries, err := retry.StoreValue(ctx, func() ([]domain.TaskStateIndexEntry, error) {
			return s.index.FindTasksByStateAndTopology(ctx, domain.ActiveTaskStates, topology)
		})
		if err != nil {
			log.Error("failed to list active entries of topology",
				slog.String("error", err.Error()),
				slog.String("topology", topology))
			continue
		}

		for _, entry := range topoEntries {
			if s.topics != nil && entry.TopicName != "" {
				if _, ok := s.topics[entry.TopicName]; !ok {
					continue
				}
			}

			fixed, err := s.reconcileEntry(ctx, entry)
			if err != nil {
				log.Error("failed to reconcile index entry",
					slog.String("error", err.Error()),
					slog.Int64("task_id", entry.TaskID),
					slog.String("state", string(entry.State)))
				continue
			}
			if fixed {
				repaired++
			}
		}
	}

	if repaired > 0 {
		log.Info("index entries repaired", slog.Int("count", repaired))
	}

	if s.procState != nil {
		if _, err := s.procState.PurgeExpired(ctx); err != nil {
			log.Error("failed to purge expired record markers",
				slog.String("error", err.Error()))
		}
	}
	if s.notifications != nil {
		if _, err := s.notifications.PurgeExpired(ctx); err != nil {
			log.Error("failed to purge expired notifications",
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// activeTopologies returns the distinct topology names of the entries in a
// stable order.
func activeTopologies(entries []domain.TaskStateIndexEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	topologies := []string{}
	for _, entry := range entries {
		if _, ok := seen[entry.TopologyName]; ok {
			continue
		}
		seen[entry.TopologyName] = struct{}{}
		topologies = append(topologies, entry.TopologyName)
	}
	sort.Strings(topologies)
	return topologies
}

// reconcileEntry checks one active-state entry against the registry.
// An entry whose task is gone, or whose registry state moved on, is stale
// and gets removed; a task whose own state has no entry gets one inserted.
func (s *Synchronizer) reconcileEntry(ctx context.Context, entry domain.TaskStateIndexEntry) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := retry.StoreValue(ctx, func() (*domain.Task, error) {
		return s.tasks.FindByID(ctx, entry.TaskID)
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("index entry for unknown task, removing",
				slog.Int64("task_id", entry.TaskID),
				slog.String("state", string(entry.State)))
			return true, retry.DoStore(ctx, func() error {
				return s.index.Delete(ctx, entry.State, entry.TopologyName, entry.TaskID)
			})
		}
		return false, err
	}

	if task.State == entry.State {
		return false, nil
	}

	log.Info("repairing stale index entry",
		slog.Int64("task_id", entry.TaskID),
		slog.String("index_state", string(entry.State)),
		slog.String("registry_state", string(task.State)))

	current := &domain.TaskStateIndexEntry{
		State:        task.State,
		TopologyName: entry.TopologyName,
		TaskID:       entry.TaskID,
		AppID:        entry.AppID,
		TopicName:    entry.TopicName,
		StartTime:    task.StartTime,
	}
	if err := retry.DoStore(ctx, func() error {
		return s.index.Insert(ctx, current)
	}); err != nil {
		return false, err
	}

	return true, retry.DoStore(ctx, func() error {
		return s.index.Delete(ctx, entry.State, entry.TopologyName, entry.TaskID)
	})
}
