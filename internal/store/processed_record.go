package store

import (
	"context"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
)

// ProcessedRecordStore is the durable record of what happened to each
// record within a task: one logical row per (task, record), overwritten on
// retry. Callers use it for idempotent skip-if-already-succeeded logic
// across restarts.
type ProcessedRecordStore interface {
	// Insert writes (or overwrites) the record's outcome row.
	Insert(ctx context.Context, record *domain.ProcessedRecord) error

	// UpdateOutcome overwrites just the outcome of an existing row.
	UpdateOutcome(ctx context.Context, taskID int64, recordID string, outcome domain.RecordOutcome) error

	// SelectByPrimaryKey returns the last-known outcome for the record
	// within the task, or ErrRecordNotFound if it was never processed.
	SelectByPrimaryKey(ctx context.Context, taskID int64, recordID string) (*domain.ProcessedRecord, error)

	// RemoveForTask deletes all processed-record rows of a task.
	RemoveForTask(ctx context.Context, taskID int64) error
}

// RecordProcessingStateStore tracks time-boxed in-flight processing
// markers, used to detect duplicate delivery of the same record. Rows
// self-expire after the configured retention.
type RecordProcessingStateStore interface {
	// SelectAttempt returns the last recorded attempt number for the
	// record, or 0 if none exists (a first attempt).
	SelectAttempt(ctx context.Context, taskID int64, recordID string) (int, error)

	// InsertAttempt records the start of an attempt with the given
	// retention.
	InsertAttempt(ctx context.Context, state *domain.RecordProcessingState, retention time.Duration) error

	// UpdateStage advances the in-flight marker's stage, refreshing the
	// retention window.
	UpdateStage(ctx context.Context, taskID int64, recordID string, stage domain.ProcessingStage, retention time.Duration) error

	// PurgeExpired removes rows whose retention has elapsed. Run
	// opportunistically by the synchronizer.
	PurgeExpired(ctx context.Context) (int64, error)

	// RemoveForTask deletes all in-flight markers of a task.
	RemoveForTask(ctx context.Context, taskID int64) error
}
