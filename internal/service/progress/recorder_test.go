package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/mocks"
)

func newTestRecorder() (*Recorder, *mocks.MemNotificationStore, *mocks.MemProcessedRecordStore, *mocks.MemErrorStore) {
	notifications := mocks.NewMemNotificationStore()
	processed := mocks.NewMemProcessedRecordStore()
	errs := mocks.NewMemErrorStore()
	procState := mocks.NewMemProcessingStateStore()
	return NewRecorder(notifications, processed, procState, errs, nil), notifications, processed, errs
}

func TestRecorderReportSuccess(t *testing.T) {
	t.Parallel()
	r, notifications, processed, _ := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, r.ReportSuccess(ctx, 42, 0, "rec-a", "dst-a", "oai_topology"))
	require.NoError(t, r.ReportSuccess(ctx, 42, 1, "rec-b", "dst-b", "oai_topology"))

	count, err := notifications.ProcessedCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	record, err := processed.SelectByPrimaryKey(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordOutcomeSuccess, record.Outcome)
	assert.Equal(t, "dst-a", record.DstIdentifier)
}

func TestRecorderReportFailure(t *testing.T) {
	t.Parallel()
	r, _, processed, errs := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, r.ReportFailure(ctx, 42, 0, "rec-a", "parse error", "oai_topology"))

	record, err := processed.SelectByPrimaryKey(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordOutcomeError, record.Outcome)
	assert.Equal(t, "parse error", record.InfoText)

	count, err := errs.ErrorCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRecorderGroupsFailuresByMessage(t *testing.T) {
	t.Parallel()
	r, _, _, errs := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, r.ReportFailure(ctx, 42, 0, "rec-a", "parse error", "oai_topology"))
	require.NoError(t, r.ReportFailure(ctx, 42, 1, "rec-b", "parse error", "oai_topology"))
	require.NoError(t, r.ReportFailure(ctx, 42, 2, "rec-c", "timeout", "oai_topology"))

	counters, err := errs.ListCounters(ctx, 42)
	require.NoError(t, err)
	require.Len(t, counters, 2)

	byMessage := map[string]int64{}
	for _, c := range counters {
		byMessage[c.Message] = c.Count
	}
	assert.Equal(t, int64(2), byMessage["parse error"])
	assert.Equal(t, int64(1), byMessage["timeout"])

	total, err := r.ErrorCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestRecorderErrorTypesAreScopedPerTask(t *testing.T) {
	t.Parallel()
	r, _, _, errs := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, r.ReportFailure(ctx, 1, 0, "rec-a", "parse error", "oai_topology"))
	require.NoError(t, r.ReportFailure(ctx, 2, 0, "rec-b", "parse error", "oai_topology"))

	first, err := errs.ListCounters(ctx, 1)
	require.NoError(t, err)
	second, err := errs.ListCounters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ErrorType, second[0].ErrorType)
}

func TestRecorderReleaseTaskMintsFreshTypes(t *testing.T) {
	t.Parallel()
	r, _, _, errs := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, r.ReportFailure(ctx, 42, 0, "rec-a", "parse error", "oai_topology"))
	r.ReleaseTask(42)
	require.NoError(t, r.ReportFailure(ctx, 42, 1, "rec-b", "parse error", "oai_topology"))

	counters, err := errs.ListCounters(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, counters, 2, "a released task assigns new type ids")
}

func TestRecorderBeginRecordCountsAttempts(t *testing.T) {
	t.Parallel()
	notifications := mocks.NewMemNotificationStore()
	processed := mocks.NewMemProcessedRecordStore()
	procState := mocks.NewMemProcessingStateStore()
	r := NewRecorder(notifications, processed, procState, mocks.NewMemErrorStore(), nil)
	ctx := context.Background()

	attempt, err := r.BeginRecord(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, 1, attempt)

	// A redelivery within the retention window gets the next attempt.
	attempt, err = r.BeginRecord(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)

	// Other records and tasks count independently.
	attempt, err = r.BeginRecord(ctx, 42, "rec-b")
	require.NoError(t, err)
	assert.Equal(t, 1, attempt)
	attempt, err = r.BeginRecord(ctx, 7, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, 1, attempt)
}

func TestRecorderReportWithoutBeginRecord(t *testing.T) {
	t.Parallel()
	r, _, processed, _ := newTestRecorder()
	ctx := context.Background()

	// Reports with no in-flight marker still land.
	require.NoError(t, r.ReportSuccess(ctx, 42, 0, "rec-a", "dst-a", "oai_topology"))

	record, err := processed.SelectByPrimaryKey(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordOutcomeSuccess, record.Outcome)
}

func TestRecorderPersistsAttemptNumber(t *testing.T) {
	t.Parallel()
	r, _, processed, _ := newTestRecorder()
	ctx := context.Background()

	attempt, err := r.BeginRecord(ctx, 42, "rec-a")
	require.NoError(t, err)
	require.Equal(t, 1, attempt)
	attempt, err = r.BeginRecord(ctx, 42, "rec-a")
	require.NoError(t, err)
	require.Equal(t, 2, attempt)

	require.NoError(t, r.ReportSuccess(ctx, 42, 0, "rec-a", "dst-a", "oai_topology"))

	record, err := processed.SelectByPrimaryKey(ctx, 42, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, 2, record.AttemptNumber, "durable row carries the marker's attempt")
}
