package domain

import (
	"errors"
	"time"
)

// RecordOutcome is the final result of processing one record.
type RecordOutcome string

// Possible record outcomes.
const (
	RecordOutcomeSuccess RecordOutcome = "SUCCESS"
	RecordOutcomeError   RecordOutcome = "ERROR"
)

// ProcessingStage marks how far an in-flight record has progressed.
type ProcessingStage string

// Possible processing stages for an in-flight record.
const (
	StageReceived  ProcessingStage = "RECEIVED"
	StageProcessed ProcessingStage = "PROCESSED"
)

// Common validation errors for record entities.
var (
	ErrEmptyRecordID        = errors.New("record ID cannot be empty")
	ErrNegativeSequence     = errors.New("sequence number cannot be negative")
	ErrInvalidRecordOutcome = errors.New("invalid record outcome")
)

// RecordNotification is one fine-grained progress event for a task.
// Sequence numbers are assigned by a single monotonic counter per task
// (supplied by the caller); the bucket number is derived from the sequence
// number and never set independently.
type RecordNotification struct {
	TaskID         int64         `json:"task_id"`
	BucketNumber   int           `json:"bucket_number"`
	SequenceNumber int64         `json:"sequence_number"`
	Resource       string        `json:"resource"`
	ResultResource string        `json:"result_resource"`
	Outcome        RecordOutcome `json:"outcome"`
	InfoText       string        `json:"info_text"`
	AdditionalInfo string        `json:"additional_info"`
}

// Validate checks if the RecordNotification has valid data.
func (n *RecordNotification) Validate() error {
	if n.TaskID == 0 {
		return ErrEmptyTaskID
	}
	if n.SequenceNumber < 0 {
		return ErrNegativeSequence
	}
	if !isValidRecordOutcome(n.Outcome) {
		return ErrInvalidRecordOutcome
	}
	return nil
}

// ProcessedRecord is the durable outcome of processing one record within a
// task: one logical row per (task, record), overwritten on retry.
type ProcessedRecord struct {
	TaskID         int64         `json:"task_id"`
	RecordID       string        `json:"record_id"`
	AttemptNumber  int           `json:"attempt_number"`
	DstIdentifier  string        `json:"dst_identifier"`
	TopologyName   string        `json:"topology_name"`
	Outcome        RecordOutcome `json:"outcome"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	InfoText       string        `json:"info_text"`
	AdditionalInfo string        `json:"additional_info"`
}

// Validate checks if the ProcessedRecord has valid data.
func (r *ProcessedRecord) Validate() error {
	if r.TaskID == 0 {
		return ErrEmptyTaskID
	}
	if r.RecordID == "" {
		return ErrEmptyRecordID
	}
	if !isValidRecordOutcome(r.Outcome) {
		return ErrInvalidRecordOutcome
	}
	return nil
}

// RecordProcessingState is the time-boxed in-flight marker for one record
// delivery. It exists to detect duplicate delivery of the same record and
// self-expires; it is independent of the durable ProcessedRecord outcome.
type RecordProcessingState struct {
	TaskID        int64           `json:"task_id"`
	RecordID      string          `json:"record_id"`
	AttemptNumber int             `json:"attempt_number"`
	StartTime     time.Time       `json:"start_time"`
	Stage         ProcessingStage `json:"stage"`
}

func isValidRecordOutcome(outcome RecordOutcome) bool {
	switch outcome {
	case RecordOutcomeSuccess, RecordOutcomeError:
		return true
	default:
		return false
	}
}
