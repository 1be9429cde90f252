package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/mocks"
	"github.com/taskledger/taskledger/internal/service/taskstatus"
)

// Full lifecycle: submit, report progress, end, verify the registry and the
// active-task listing agree.
func TestTaskLifecycleEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tasks := mocks.NewMemTaskStore()
	index := mocks.NewMemIndexStore()
	updater := taskstatus.NewUpdater(tasks, index, nil)
	recorder, _, _, _ := newTestRecorder()

	task := &domain.Task{ID: 42, TopologyName: "oai_topology"}
	require.NoError(t, updater.InsertTask(ctx, task, "app-1", "oai_topic_1"))
	require.NoError(t, updater.SetExpectedSize(ctx, 42, 3))

	active, err := index.FindTasksByStateAndTopology(ctx, domain.ActiveTaskStates, "oai_topology")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(42), active[0].TaskID)

	require.NoError(t, updater.UpdateState(ctx, 42, domain.TaskStateCurrentlyProcessing, "running"))

	require.NoError(t, recorder.ReportSuccess(ctx, 42, 0, "rec-a", "dst-a", "oai_topology"))
	require.NoError(t, recorder.ReportSuccess(ctx, 42, 1, "rec-b", "dst-b", "oai_topology"))
	require.NoError(t, recorder.ReportFailure(ctx, 42, 2, "rec-c", "parse error", "oai_topology"))

	processedCount, err := recorder.ProcessedCount(ctx, 42)
	require.NoError(t, err)
	errorCount, err := recorder.ErrorCount(ctx, 42)
	require.NoError(t, err)

	counters := domain.TaskCounters{
		ProcessedRecords: int(processedCount),
		ProcessedErrors:  int(errorCount),
	}
	require.NoError(t, updater.EndTask(ctx, 42, counters, domain.TaskStateProcessed, "finished"))

	final, err := tasks.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateProcessed, final.State)
	assert.Equal(t, 3, final.ProcessedRecords)
	assert.Equal(t, 1, final.ProcessedErrors)
	assert.Equal(t, 3, final.ExpectedRecords)
	assert.NotNil(t, final.FinishTime)

	active, err = index.FindTasksByStateAndTopology(ctx, domain.ActiveTaskStates, "oai_topology")
	require.NoError(t, err)
	assert.Empty(t, active, "a finished task must leave the active listing")
}
