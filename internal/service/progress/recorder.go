// Package progress is the reporting facade workers call for every record
// they finish. One call fans out to the notification log, the durable
// processed-record row and, on failure, the error counters, each write
// wrapped in the store retry budget.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

// processingStateRetention is how long the in-flight marker of one record
// delivery survives. Matches the notification retention window.
const processingStateRetention = 14 * 24 * time.Hour

// Recorder records per-record success and failure. Error messages are
// grouped into error types: the first sighting of a distinct message within
// a task mints a type UUID, later sightings increment that type's counter.
type Recorder struct {
	notifications store.NotificationStore
	processed     store.ProcessedRecordStore
	procState     store.RecordProcessingStateStore
	errors        store.ErrorStore
	logger        *slog.Logger

	mu         sync.Mutex
	errorTypes map[int64]map[string]uuid.UUID
}

// NewRecorder creates a Recorder over the progress stores.
func NewRecorder(notifications store.NotificationStore, processed store.ProcessedRecordStore, procState store.RecordProcessingStateStore, errors store.ErrorStore, log *slog.Logger) *Recorder {
	if notifications == nil {
		panic("notifications store cannot be nil")
	}
	if processed == nil {
		panic("processed record store cannot be nil")
	}
	if procState == nil {
		panic("record processing state store cannot be nil")
	}
	if errors == nil {
		panic("error store cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Recorder{
		notifications: notifications,
		processed:     processed,
		procState:     procState,
		errors:        errors,
		logger:        log.With(slog.String("component", "progress_recorder")),
		errorTypes:    make(map[int64]map[string]uuid.UUID),
	}
}

// BeginRecord marks one record delivery as in flight and returns its
// attempt number. A redelivery within the retention window sees the
// previous marker and gets the next attempt number, which is how workers
// detect duplicate deliveries of the same record.
func (r *Recorder) BeginRecord(ctx context.Context, taskID int64, recordID string) (int, error) {
	attempt, err := retry.StoreValue(ctx, func() (int, error) {
		return r.procState.SelectAttempt(ctx, taskID, recordID)
	})
	if err != nil {
		return 0, err
	}
	attempt++

	state := &domain.RecordProcessingState{
		TaskID:        taskID,
		RecordID:      recordID,
		AttemptNumber: attempt,
		StartTime:     time.Now().UTC(),
		Stage:         domain.StageReceived,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.procState.InsertAttempt(ctx, state, processingStateRetention)
	}); err != nil {
		return 0, err
	}
	return attempt, nil
}

// ReportSuccess records one successfully processed record. The sequence
// number comes from the caller's per-task monotonic counter.
func (r *Recorder) ReportSuccess(ctx context.Context, taskID, sequence int64, resource, resultResource, topologyName string) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	notification := &domain.RecordNotification{
		TaskID:         taskID,
		SequenceNumber: sequence,
		Resource:       resource,
		ResultResource: resultResource,
		Outcome:        domain.RecordOutcomeSuccess,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.notifications.Insert(ctx, notification)
	}); err != nil {
		return err
	}

	attempt, err := r.currentAttempt(ctx, taskID, resource)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := &domain.ProcessedRecord{
		TaskID:        taskID,
		RecordID:      resource,
		AttemptNumber: attempt,
		DstIdentifier: resultResource,
		TopologyName:  topologyName,
		Outcome:       domain.RecordOutcomeSuccess,
		StartTime:     &now,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.processed.Insert(ctx, record)
	}); err != nil {
		return err
	}

	if err := r.finishInFlight(ctx, taskID, resource); err != nil {
		return err
	}

	log.Debug("record success reported",
		slog.Int64("task_id", taskID),
		slog.Int64("sequence", sequence))
	return nil
}

// ReportFailure records one failed record: an ERROR notification, an ERROR
// processed-record row, and an increment of the message's error type.
func (r *Recorder) ReportFailure(ctx context.Context, taskID, sequence int64, resource, info, topologyName string) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	notification := &domain.RecordNotification{
		TaskID:         taskID,
		SequenceNumber: sequence,
		Resource:       resource,
		Outcome:        domain.RecordOutcomeError,
		InfoText:       info,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.notifications.Insert(ctx, notification)
	}); err != nil {
		return err
	}

	attempt, err := r.currentAttempt(ctx, taskID, resource)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := &domain.ProcessedRecord{
		TaskID:        taskID,
		RecordID:      resource,
		AttemptNumber: attempt,
		TopologyName:  topologyName,
		Outcome:       domain.RecordOutcomeError,
		StartTime:     &now,
		InfoText:      info,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.processed.Insert(ctx, record)
	}); err != nil {
		return err
	}

	if err := r.finishInFlight(ctx, taskID, resource); err != nil {
		return err
	}

	errorType := r.errorTypeFor(taskID, info)
	if err := retry.DoStore(ctx, func() error {
		return r.errors.IncrementCounter(ctx, taskID, errorType, info)
	}); err != nil {
		return err
	}

	errorNotification := &domain.ErrorNotification{
		TaskID:       taskID,
		ErrorType:    errorType,
		ErrorMessage: info,
		Resource:     resource,
	}
	if err := retry.DoStore(ctx, func() error {
		return r.errors.InsertNotification(ctx, errorNotification)
	}); err != nil {
		return err
	}

	log.Debug("record failure reported",
		slog.Int64("task_id", taskID),
		slog.Int64("sequence", sequence),
		slog.String("error_type", errorType.String()))
	return nil
}

// currentAttempt reads the attempt number of the record's in-flight
// marker so the durable row carries it. 0 when no marker exists.
func (r *Recorder) currentAttempt(ctx context.Context, taskID int64, recordID string) (int, error) {
	return retry.StoreValue(ctx, func() (int, error) {
		return r.procState.SelectAttempt(ctx, taskID, recordID)
	})
}

// finishInFlight advances the in-flight marker to PROCESSED. Reports that
// arrive without a preceding BeginRecord have no marker; that is not an
// error.
func (r *Recorder) finishInFlight(ctx context.Context, taskID int64, recordID string) error {
	err := retry.DoStore(ctx, func() error {
		return r.procState.UpdateStage(ctx, taskID, recordID, domain.StageProcessed, processingStateRetention)
	})
	if err != nil && !store.IsNotFoundError(err) {
		return err
	}
	return nil
}

// ProcessedCount reports how many records the task has notified so far.
func (r *Recorder) ProcessedCount(ctx context.Context, taskID int64) (int64, error) {
	return retry.StoreValue(ctx, func() (int64, error) {
		return r.notifications.ProcessedCount(ctx, taskID)
	})
}

// ErrorCount reports the total recorded errors of the task.
func (r *Recorder) ErrorCount(ctx context.Context, taskID int64) (int64, error) {
	return retry.StoreValue(ctx, func() (int64, error) {
		return r.errors.ErrorCount(ctx, taskID)
	})
}

// ReleaseTask drops the in-memory error-type assignments of a finished
// task. The persisted counters are untouched.
func (r *Recorder) ReleaseTask(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.errorTypes, taskID)
}

// errorTypeFor returns the stable type UUID for an error message within a
// task, minting one on first sighting. The mapping is process-local; two
// processes reporting the same message produce two types, which the
// counters tolerate.
func (r *Recorder) errorTypeFor(taskID int64, message string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.errorTypes[taskID]
	if !ok {
		types = make(map[string]uuid.UUID)
		r.errorTypes[taskID] = types
	}

	errorType, ok := types[message]
	if !ok {
		errorType = uuid.New()
		types[message] = errorType
	}
	return errorType
}
