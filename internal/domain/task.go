package domain

import (
	"errors"
	"time"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// Possible task state values. A task moves
// QUEUED -> PROCESSING_BY_REST_APPLICATION -> CURRENTLY_PROCESSING
// (optionally -> IN_POST_PROCESSING) -> PROCESSED. DROPPED may be entered
// from any non-terminal state and is terminal, as is PROCESSED.
const (
	TaskStateQueued              TaskState = "QUEUED"
	TaskStateProcessingByRestApp TaskState = "PROCESSING_BY_REST_APPLICATION"
	TaskStateCurrentlyProcessing TaskState = "CURRENTLY_PROCESSING"
	TaskStateInPostProcessing    TaskState = "IN_POST_PROCESSING"
	TaskStateProcessed           TaskState = "PROCESSED"
	TaskStateDropped             TaskState = "DROPPED"
)

// ActiveTaskStates are the states the synchronizer treats as "still waiting
// for execution" when reconciling the state index against the registry.
var ActiveTaskStates = []TaskState{
	TaskStateQueued,
	TaskStateProcessingByRestApp,
}

// Common validation errors for Task.
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be zero")
	ErrEmptyTopologyName = errors.New("topology name cannot be empty")
	ErrInvalidTaskState  = errors.New("invalid task state")
)

// Task is the canonical per-task metadata row. The ID is assigned by the
// submitter and never changes. Counters are mutated throughout execution by
// the status updater; the struct itself is a plain value.
type Task struct {
	ID                    int64      `json:"id"`
	TopologyName          string     `json:"topology_name"`
	State                 TaskState  `json:"state"`
	StateDescription      string     `json:"state_description"`
	SentTime              *time.Time `json:"sent_time,omitempty"`
	StartTime             *time.Time `json:"start_time,omitempty"`
	FinishTime            *time.Time `json:"finish_time,omitempty"`
	ExpectedRecords       int        `json:"expected_records"`
	ProcessedRecords      int        `json:"processed_records"`
	IgnoredRecords        int        `json:"ignored_records"`
	DeletedRecords        int        `json:"deleted_records"`
	ProcessedErrors       int        `json:"processed_errors"`
	PostProcessedExpected int        `json:"post_processed_expected"`
	PostProcessedCount    int        `json:"post_processed_count"`
	Definition            string     `json:"definition"`
}

// TaskCounters groups the progress counters that are written together when
// reporting task progress or ending a task.
type TaskCounters struct {
	ProcessedRecords int `json:"processed_records"`
	IgnoredRecords   int `json:"ignored_records"`
	DeletedRecords   int `json:"deleted_records"`
	ProcessedErrors  int `json:"processed_errors"`
}

// TaskStateIndexEntry is the denormalized tasks-by-state view of a Task.
// State is part of the partition key, so a state change is always
// delete-old-entry plus insert-new-entry, never an in-place update.
type TaskStateIndexEntry struct {
	State        TaskState  `json:"state"`
	TopologyName string     `json:"topology_name"`
	TaskID       int64      `json:"task_id"`
	AppID        string     `json:"app_id"`
	TopicName    string     `json:"topic_name"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == 0 {
		return ErrEmptyTaskID
	}

	if t.TopologyName == "" {
		return ErrEmptyTopologyName
	}

	if !IsValidTaskState(t.State) {
		return ErrInvalidTaskState
	}

	return nil
}

// IsTerminal reports whether the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.State.IsTerminal()
}

// IsTerminal reports whether the state is terminal. Terminal tasks must
// never observably return to a non-terminal or different terminal state.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateProcessed || s == TaskStateDropped
}

// IsValidTaskState checks if the given state is a valid TaskState.
func IsValidTaskState(state TaskState) bool {
	switch state {
	case TaskStateQueued, TaskStateProcessingByRestApp, TaskStateCurrentlyProcessing,
		TaskStateInPostProcessing, TaskStateProcessed, TaskStateDropped:
		return true
	default:
		return false
	}
}

// ParseTaskState converts a raw string to a TaskState.
// Returns ErrInvalidTaskState for unknown values.
func ParseTaskState(raw string) (TaskState, error) {
	state := TaskState(raw)
	if !IsValidTaskState(state) {
		return "", ErrInvalidTaskState
	}
	return state, nil
}
