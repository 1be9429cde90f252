package api

import (
	"time"

	"github.com/taskledger/taskledger/internal/domain"
)

// SubmitTaskRequest defines the payload for task submission. The task ID is
// assigned by the submitter and must be unique.
type SubmitTaskRequest struct {
	TaskID       int64  `json:"task_id"       validate:"required"`
	TopologyName string `json:"topology_name" validate:"required"`
	AppID        string `json:"app_id"`
	TopicName    string `json:"topic_name"`
	ExpectedSize int    `json:"expected_size" validate:"gte=0"`
	Definition   string `json:"definition"`
}

// KillTaskRequest defines the payload for dropping a task.
type KillTaskRequest struct {
	Reason string `json:"reason"`
}

// ReportRecordRequest defines the payload for reporting one record outcome.
type ReportRecordRequest struct {
	Sequence       int64  `json:"sequence"        validate:"gte=0"`
	Resource       string `json:"resource"        validate:"required"`
	ResultResource string `json:"result_resource"`
	Outcome        string `json:"outcome"         validate:"required,oneof=SUCCESS ERROR"`
	Info           string `json:"info"`
}

// RegisterHarvestRequest defines the payload for registering one harvested
// record in the dataset catalog.
type RegisterHarvestRequest struct {
	LocalID string `json:"local_id" validate:"required"`
	MD5     string `json:"md5"`
}

// StampHarvestRequest defines the payload for stamping a catalog record
// with a later lifecycle stage. The date defaults to the current time.
type StampHarvestRequest struct {
	Stage string     `json:"stage" validate:"required,oneof=PREVIEW PUBLISHED INDEXED"`
	Date  *time.Time `json:"date"`
	MD5   string     `json:"md5"`
}

// TaskResponse is the wire representation of a task.
type TaskResponse struct {
	TaskID                int64      `json:"task_id"`
	TopologyName          string     `json:"topology_name"`
	State                 string     `json:"state"`
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
}

// CancellationResponse reports whether a task has been dropped.
type CancellationResponse struct {
	TaskID    int64 `json:"task_id"`
	Cancelled bool  `json:"cancelled"`
}

// HarvestedRecordResponse is the wire representation of a dataset catalog
// entry.
type HarvestedRecordResponse struct {
	DatasetID            string     `json:"dataset_id"`
	LocalID              string     `json:"local_id"`
	LatestHarvestDate    *time.Time `json:"latest_harvest_date,omitempty"`
	LatestHarvestMD5     string     `json:"latest_harvest_md5,omitempty"`
	PreviewHarvestDate   *time.Time `json:"preview_harvest_date,omitempty"`
	PreviewHarvestMD5    string     `json:"preview_harvest_md5,omitempty"`
	PublishedHarvestDate *time.Time `json:"published_harvest_date,omitempty"`
	PublishedHarvestMD5  string     `json:"published_harvest_md5,omitempty"`
	IndexingDate         *time.Time `json:"indexing_date,omitempty"`
}

func harvestedRecordToResponse(record *domain.HarvestedRecord) HarvestedRecordResponse {
	return HarvestedRecordResponse{
		DatasetID:            record.DatasetID,
		LocalID:              record.LocalID,
		LatestHarvestDate:    record.LatestHarvestDate,
		LatestHarvestMD5:     record.LatestHarvestMD5,
		PreviewHarvestDate:   record.PreviewHarvestDate,
		PreviewHarvestMD5:    record.PreviewHarvestMD5,
		PublishedHarvestDate: record.PublishedHarvestDate,
		PublishedHarvestMD5:  record.PublishedHarvestMD5,
		IndexingDate:         record.IndexingDate,
	}
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:                task.ID,
		TopologyName:          task.TopologyName,
		State:                 string(task.State),
		StateDescription:      task.StateDescription,
		SentTime:              task.SentTime,
		StartTime:             task.StartTime,
		FinishTime:            task.FinishTime,
		ExpectedRecords:       task.ExpectedRecords,
		ProcessedRecords:      task.ProcessedRecords,
		IgnoredRecords:        task.IgnoredRecords,
		DeletedRecords:        task.DeletedRecords,
		ProcessedErrors:       task.ProcessedErrors,
		PostProcessedExpected: task.PostProcessedExpected,
		PostProcessedCount:    task.PostProcessedCount,
	}
}
