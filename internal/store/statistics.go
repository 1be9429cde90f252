package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskledger/taskledger/internal/domain"
)

// StatisticsStore holds the per-task validation statistics counters.
// All increments are commutative additive updates: concurrent increments
// never require read-before-write.
type StatisticsStore interface {
	// IncrementGeneral adds delta to the occurrence counter of a node
	// under a parent xpath.
	IncrementGeneral(ctx context.Context, taskID int64, parentXpath, nodeXpath string, delta int64) error

	// SearchGeneral lists all general statistics of a task.
	SearchGeneral(ctx context.Context, taskID int64) ([]domain.GeneralStatistics, error)

	// SearchGeneralByNode lists general statistics for one
	// (parent, node) pair.
	SearchGeneralByNode(ctx context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.GeneralStatistics, error)

	// IncrementNodeValue adds delta to the occurrence counter of one value
	// at one node xpath.
	IncrementNodeValue(ctx context.Context, taskID int64, parentXpath, nodeXpath, nodeValue string, delta int64) error

	// NodeStatistics returns value counters at a node, capped at the
	// element sample limit.
	NodeStatistics(ctx context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.NodeStatistics, error)

	// IncrementAttribute adds delta to the occurrence counter of one
	// attribute value at one node value.
	IncrementAttribute(ctx context.Context, taskID int64, nodeXpath, nodeValue, attrName, attrValue string, delta int64) error

	// AttributeStatistics returns attribute value counters for one node
	// value, capped at the attribute sample limit.
	AttributeStatistics(ctx context.Context, taskID int64, nodeXpath, nodeValue string) ([]domain.AttributeStatistics, error)

	// RemoveForTask deletes all statistics of a task.
	RemoveForTask(ctx context.Context, taskID int64) error
}

// ErrorStore holds per-task error counters and the detailed error
// notifications behind them. Error types are identified by a UUID assigned
// on first sighting of a distinct error message.
type ErrorStore interface {
	// IncrementCounter adds one to the counter of the given error type,
	// creating it with the message on first use.
	IncrementCounter(ctx context.Context, taskID int64, errorType uuid.UUID, message string) error

	// InsertNotification records one occurrence of an error type.
	InsertNotification(ctx context.Context, notification *domain.ErrorNotification) error

	// ErrorCount returns the total error count across all types for the
	// task.
	ErrorCount(ctx context.Context, taskID int64) (int64, error)

	// CountForType returns the count for one error type.
	CountForType(ctx context.Context, taskID int64, errorType uuid.UUID) (int64, error)

	// MessageForType returns the message recorded for an error type, or
	// ErrNotFound.
	MessageForType(ctx context.Context, taskID int64, errorType uuid.UUID) (string, error)

	// ListCounters lists all error counters of a task.
	ListCounters(ctx context.Context, taskID int64) ([]domain.ErrorCounter, error)

	// RemoveForTask deletes all error counters and notifications of a
	// task.
	RemoveForTask(ctx context.Context, taskID int64) error
}
