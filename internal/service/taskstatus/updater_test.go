package taskstatus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/mocks"
	"github.com/taskledger/taskledger/internal/store"
)

func newTestUpdater(t *testing.T) (*Updater, *mocks.MemTaskStore, *mocks.MemIndexStore) {
	t.Helper()
	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	return NewUpdater(tasks, index, nil), tasks, index
}

func submitTask(t *testing.T, u *Updater, id int64) {
	t.Helper()
	task := &domain.Task{ID: id, TopologyName: "oai_topology"}
	require.NoError(t, u.InsertTask(context.Background(), task, "app-1", "oai_topic_1"))
}

func TestUpdaterInsertTask(t *testing.T) {
	t.Parallel()
	u, tasks, index := newTestUpdater(t)
	ctx := context.Background()

	task := &domain.Task{ID: 42, TopologyName: "oai_topology", State: domain.TaskStateProcessed}
	require.NoError(t, u.InsertTask(ctx, task, "app-1", "oai_topic_1"))

	stored, err := tasks.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateQueued, stored.State, "submitted state must be overridden")
	assert.NotNil(t, stored.SentTime)

	entry, err := index.FindEntry(ctx, domain.TaskStateQueued, "oai_topology", 42)
	require.NoError(t, err)
	assert.Equal(t, "app-1", entry.AppID)
	assert.Equal(t, "oai_topic_1", entry.TopicName)
}

func TestUpdaterStateTransitionMovesIndexEntry(t *testing.T) {
	t.Parallel()
	u, tasks, index := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.UpdateState(ctx, 1, domain.TaskStateProcessingByRestApp, "picked up"))

	stored, err := tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateProcessingByRestApp, stored.State)

	states := index.States(1)
	require.Len(t, states, 1, "exactly one index entry must remain")
	assert.Equal(t, domain.TaskStateProcessingByRestApp, states[0])

	// Submission metadata follows the entry across the transition.
	entry, err := index.FindEntry(ctx, domain.TaskStateProcessingByRestApp, "oai_topology", 1)
	require.NoError(t, err)
	assert.Equal(t, "app-1", entry.AppID)
	assert.Equal(t, "oai_topic_1", entry.TopicName)
}

func TestUpdaterEnteringProcessingStampsStartTime(t *testing.T) {
	t.Parallel()
	u, tasks, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.UpdateState(ctx, 1, domain.TaskStateCurrentlyProcessing, "running"))

	stored, err := tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.StartTime)

	first := *stored.StartTime

	// A second pass through the same state must not reset the stamp.
	require.NoError(t, u.UpdateState(ctx, 1, domain.TaskStateCurrentlyProcessing, "still running"))
	stored, err = tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, *stored.StartTime)
	assert.Equal(t, "still running", stored.StateDescription)
}

func TestUpdaterTerminalStatesAreImmutable(t *testing.T) {
	t.Parallel()
	u, tasks, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.SetDropped(ctx, 1, "killed by user"))

	err := u.UpdateState(ctx, 1, domain.TaskStateCurrentlyProcessing, "late worker")
	assert.ErrorIs(t, err, store.ErrTerminalState)

	err = u.SetCompletelyProcessed(ctx, 1, "done")
	assert.ErrorIs(t, err, store.ErrTerminalState)

	stored, findErr := tasks.FindByID(ctx, 1)
	require.NoError(t, findErr)
	assert.Equal(t, domain.TaskStateDropped, stored.State)
	assert.Equal(t, "killed by user", stored.StateDescription)
}

func TestUpdaterDroppingTwiceIsIdempotent(t *testing.T) {
	t.Parallel()
	u, _, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.SetDropped(ctx, 1, "killed"))
	assert.NoError(t, u.SetDropped(ctx, 1, "killed again"))
}

func TestUpdaterFinishSetsFinishTime(t *testing.T) {
	t.Parallel()
	u, tasks, index := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.SetCompletelyProcessed(ctx, 1, "all records done"))

	stored, err := tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateProcessed, stored.State)
	assert.NotNil(t, stored.FinishTime)

	states := index.States(1)
	require.Len(t, states, 1)
	assert.Equal(t, domain.TaskStateProcessed, states[0])
}

func TestUpdaterEndTaskWritesCountersAndState(t *testing.T) {
	t.Parallel()
	u, tasks, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	counters := domain.TaskCounters{ProcessedRecords: 90, IgnoredRecords: 5, DeletedRecords: 2, ProcessedErrors: 3}
	require.NoError(t, u.EndTask(ctx, 1, counters, domain.TaskStateProcessed, "finished"))

	stored, err := tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 90, stored.ProcessedRecords)
	assert.Equal(t, 5, stored.IgnoredRecords)
	assert.Equal(t, 2, stored.DeletedRecords)
	assert.Equal(t, 3, stored.ProcessedErrors)
	assert.Equal(t, domain.TaskStateProcessed, stored.State)
	assert.NotNil(t, stored.FinishTime)
}

func TestUpdaterSetExpectedSizeRejectsTerminalTask(t *testing.T) {
	t.Parallel()
	u, tasks, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	require.NoError(t, u.SetExpectedSize(ctx, 1, 1000))
	stored, err := tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000, stored.ExpectedRecords)

	require.NoError(t, u.SetDropped(ctx, 1, "killed"))
	assert.ErrorIs(t, u.SetExpectedSize(ctx, 1, 2000), store.ErrTerminalState)
}

func TestUpdaterUnknownTask(t *testing.T) {
	t.Parallel()
	u, _, _ := newTestUpdater(t)
	ctx := context.Background()

	err := u.UpdateState(ctx, 999, domain.TaskStateCurrentlyProcessing, "ghost")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestUpdaterSurvivesMissingIndexEntry(t *testing.T) {
	t.Parallel()
	u, _, index := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 1)

	// Simulate an earlier crash that already removed the entry.
	require.NoError(t, index.Delete(ctx, domain.TaskStateQueued, "oai_topology", 1))

	require.NoError(t, u.UpdateState(ctx, 1, domain.TaskStateProcessingByRestApp, "picked up"))

	states := index.States(1)
	require.Len(t, states, 1)
	assert.Equal(t, domain.TaskStateProcessingByRestApp, states[0])
}

func TestUpdaterCounterWritesRejectTerminalTask(t *testing.T) {
	t.Parallel()
	u, tasks, _ := newTestUpdater(t)
	ctx := context.Background()
	submitTask(t, u, 42)

	require.NoError(t, u.SetDropped(ctx, 42, "killed"))

	err := u.UpdateProcessedCounts(ctx, 42, domain.TaskCounters{ProcessedRecords: 999})
	assert.ErrorIs(t, err, store.ErrTerminalState)

	err = u.UpdatePostProcessedCounts(ctx, 42, 10, 5)
	assert.ErrorIs(t, err, store.ErrTerminalState)

	stored, err := tasks.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ProcessedRecords, "dropped task counters must stay frozen")
	assert.Equal(t, 0, stored.PostProcessedExpected)
}
