package store

import (
	"context"

	"github.com/taskledger/taskledger/internal/domain"
)

// NotificationStore holds the fine-grained per-record progress events of a
// task, bucketed sequentially by sequence number. Rows are write-once per
// sequence number and retained for a bounded period.
type NotificationStore interface {
	// Insert writes one notification. The bucket number is derived from
	// the sequence number by the implementation.
	Insert(ctx context.Context, notification *domain.RecordNotification) error

	// ProcessedCount returns the highest sequence number recorded for the
	// task plus one, discovered by probing buckets from the top rather
	// than by maintaining a separate counter. Returns 0 for a task with
	// no notifications.
	ProcessedCount(ctx context.Context, taskID int64) (int64, error)

	// FetchBucket returns all notifications of one bucket in sequence
	// order. An empty bucket yields an empty slice, not an error.
	FetchBucket(ctx context.Context, taskID int64, bucket int) ([]domain.RecordNotification, error)

	// PurgeExpired deletes notifications past their retention window and
	// returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)

	// RemoveForTask deletes all notifications of a task, iterating buckets
	// downward from the last populated one.
	RemoveForTask(ctx context.Context, taskID int64) error
}
