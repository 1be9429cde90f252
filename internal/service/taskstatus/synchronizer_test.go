package taskstatus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/mocks"
	"github.com/taskledger/taskledger/internal/store"
)

type purgeCountingStore struct {
	store.RecordProcessingStateStore
	purges atomic.Int64
}

func (p *purgeCountingStore) PurgeExpired(context.Context) (int64, error) {
	p.purges.Add(1)
	return 0, nil
}

func TestSynchronizerRepairsStaleActiveEntry(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	// Registry says dropped, index still claims the task is queued.
	require.NoError(t, tasks.Insert(ctx, &domain.Task{
		ID: 1, TopologyName: "oai_topology", State: domain.TaskStateDropped,
	}))
	require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
		State: domain.TaskStateQueued, TopologyName: "oai_topology", TaskID: 1,
		AppID: "app-1", TopicName: "oai_topic_1",
	}))

	s := NewSynchronizer(index, tasks, nil, nil, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	states := index.States(1)
	require.Len(t, states, 1)
	assert.Equal(t, domain.TaskStateDropped, states[0])

	entry, err := index.FindEntry(ctx, domain.TaskStateDropped, "oai_topology", 1)
	require.NoError(t, err)
	assert.Equal(t, "app-1", entry.AppID, "submission metadata must survive the repair")
}

func TestSynchronizerRemovesEntryForUnknownTask(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
		State: domain.TaskStateQueued, TopologyName: "oai_topology", TaskID: 7,
	}))

	s := NewSynchronizer(index, tasks, nil, nil, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	assert.Empty(t, index.States(7))
}

func TestSynchronizerLeavesConsistentEntriesAlone(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	require.NoError(t, tasks.Insert(ctx, &domain.Task{
		ID: 1, TopologyName: "oai_topology", State: domain.TaskStateQueued,
	}))
	require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
		State: domain.TaskStateQueued, TopologyName: "oai_topology", TaskID: 1,
	}))

	s := NewSynchronizer(index, tasks, nil, nil, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	states := index.States(1)
	require.Len(t, states, 1)
	assert.Equal(t, domain.TaskStateQueued, states[0])
}

func TestSynchronizerSkipsForeignTopics(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	require.NoError(t, tasks.Insert(ctx, &domain.Task{
		ID: 1, TopologyName: "oai_topology", State: domain.TaskStateDropped,
	}))
	require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
		State: domain.TaskStateQueued, TopologyName: "oai_topology", TaskID: 1,
		TopicName: "foreign_topic",
	}))

	s := NewSynchronizer(index, tasks, nil, nil, []string{"oai_topic_1"}, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	// The stale entry belongs to another deployment and must be left alone.
	states := index.States(1)
	require.Len(t, states, 1)
	assert.Equal(t, domain.TaskStateQueued, states[0])
}

func TestSynchronizerPurgesExpiredMarkers(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	purger := &purgeCountingStore{}

	s := NewSynchronizer(index, tasks, purger, nil, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(context.Background()))

	assert.Equal(t, int64(1), purger.purges.Load())
}

func TestSynchronizerStartStop(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()

	s := NewSynchronizer(index, tasks, nil, nil, nil, time.Hour, nil)
	s.Start(context.Background())
	s.Stop()
}

func TestSynchronizerPurgesExpiredNotifications(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	notifications := mocks.NewMemNotificationStore()
	ctx := context.Background()

	// One already-expired notification and one live.
	notifications.Retention = -time.Minute
	require.NoError(t, notifications.Insert(ctx, &domain.RecordNotification{
		TaskID: 1, SequenceNumber: 0, Outcome: domain.RecordOutcomeSuccess,
	}))
	notifications.Retention = time.Hour
	require.NoError(t, notifications.Insert(ctx, &domain.RecordNotification{
		TaskID: 1, SequenceNumber: 1, Outcome: domain.RecordOutcomeSuccess,
	}))

	s := NewSynchronizer(index, tasks, nil, notifications, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	bucket, err := notifications.FetchBucket(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, bucket, 1)
	assert.Equal(t, int64(1), bucket[0].SequenceNumber)
}

func TestSynchronizerReconcilesEachTopology(t *testing.T) {
	t.Parallel()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	ctx := context.Background()

	for i, topology := range []string{"oai_topology", "xslt_topology"} {
		id := int64(i + 1)
		require.NoError(t, tasks.Insert(ctx, &domain.Task{
			ID: id, TopologyName: topology, State: domain.TaskStateDropped,
		}))
		require.NoError(t, index.Insert(ctx, &domain.TaskStateIndexEntry{
			State: domain.TaskStateQueued, TopologyName: topology, TaskID: id,
		}))
	}

	s := NewSynchronizer(index, tasks, nil, nil, nil, time.Minute, nil)
	require.NoError(t, s.SyncOnce(ctx))

	for id := int64(1); id <= 2; id++ {
		states := index.States(id)
		require.Len(t, states, 1)
		assert.Equal(t, domain.TaskStateDropped, states[0])
	}
}
