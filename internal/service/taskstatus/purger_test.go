package taskstatus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/mocks"
	"github.com/taskledger/taskledger/internal/store"
)

// removalTracker records RemoveForTask calls; the embedded nil interfaces
// make any other call panic, which is what a purge test wants.
type removalTracker struct {
	mu      sync.Mutex
	removed []int64
}

func (r *removalTracker) remove(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, taskID)
}

func (r *removalTracker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removed)
}

type trackingNotificationStore struct {
	store.NotificationStore
	tracker *removalTracker
}

func (s *trackingNotificationStore) RemoveForTask(_ context.Context, taskID int64) error {
	s.tracker.remove(taskID)
	return nil
}

type trackingProcessedRecordStore struct {
	store.ProcessedRecordStore
	tracker *removalTracker
}

func (s *trackingProcessedRecordStore) RemoveForTask(_ context.Context, taskID int64) error {
	s.tracker.remove(taskID)
	return nil
}

type trackingProcessingStateStore struct {
	store.RecordProcessingStateStore
	tracker *removalTracker
}

func (s *trackingProcessingStateStore) RemoveForTask(_ context.Context, taskID int64) error {
	s.tracker.remove(taskID)
	return nil
}

type trackingStatisticsStore struct {
	store.StatisticsStore
	tracker *removalTracker
}

func (s *trackingStatisticsStore) RemoveForTask(_ context.Context, taskID int64) error {
	s.tracker.remove(taskID)
	return nil
}

type trackingErrorStore struct {
	store.ErrorStore
	tracker *removalTracker
}

func (s *trackingErrorStore) RemoveForTask(_ context.Context, taskID int64) error {
	s.tracker.remove(taskID)
	return nil
}

func (s *trackingErrorStore) IncrementCounter(context.Context, int64, uuid.UUID, string) error {
	return nil
}

func newTestPurger(tasks *mocks.MemTaskStore, index *mocks.MemIndexStore) (*Purger, *removalTracker) {
	tracker := &removalTracker{}
	return NewPurger(
		tasks,
		index,
		&trackingNotificationStore{tracker: tracker},
		&trackingProcessedRecordStore{tracker: tracker},
		&trackingProcessingStateStore{tracker: tracker},
		&trackingStatisticsStore{tracker: tracker},
		&trackingErrorStore{tracker: tracker},
		nil,
	), tracker
}

func TestPurgerRemovesEverything(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, tasks.Insert(ctx, &domain.Task{
		ID: 42, TopologyName: "oai_topology", State: domain.TaskStateProcessed, FinishTime: &now,
	}))
	require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
		State: domain.TaskStateProcessed, TopologyName: "oai_topology", TaskID: 42,
	}))

	purger, tracker := newTestPurger(tasks, index)
	require.NoError(t, purger.PurgeTask(ctx, 42))

	_, err := tasks.FindByID(ctx, 42)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.Empty(t, index.States(42))
	assert.Equal(t, 5, tracker.count(), "all five child stores must be purged")
}

func TestPurgerUnknownTaskIsNoOp(t *testing.T) {
	t.Parallel()
	purger, tracker := newTestPurger(mocks.NewMemTaskStore(), mocks.NewMemIndexStore())

	require.NoError(t, purger.PurgeTask(context.Background(), 404))
	assert.Zero(t, tracker.count())
}
