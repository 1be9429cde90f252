package domain

import (
	"errors"
	"time"
)

// Common validation errors for HarvestedRecord.
var (
	ErrEmptyDatasetID = errors.New("dataset ID cannot be empty")
	ErrEmptyLocalID   = errors.New("local ID cannot be empty")
)

// HarvestedRecord tracks one record of a dataset across harvests. It is
// owned by the dataset, not by any single task, and outlives tasks. Rows
// are hash-bucketed by local ID to bound per-partition scan size when
// enumerating a whole dataset.
type HarvestedRecord struct {
	DatasetID            string     `json:"dataset_id"`
	BucketNumber         int        `json:"bucket_number"`
	LocalID              string     `json:"local_id"`
	LatestHarvestDate    *time.Time `json:"latest_harvest_date,omitempty"`
	LatestHarvestMD5     string     `json:"latest_harvest_md5,omitempty"`
	PreviewHarvestDate   *time.Time `json:"preview_harvest_date,omitempty"`
	PreviewHarvestMD5    string     `json:"preview_harvest_md5,omitempty"`
	PublishedHarvestDate *time.Time `json:"published_harvest_date,omitempty"`
	PublishedHarvestMD5  string     `json:"published_harvest_md5,omitempty"`
	IndexingDate         *time.Time `json:"indexing_date,omitempty"`
}

// Validate checks if the HarvestedRecord has valid data.
func (r *HarvestedRecord) Validate() error {
	if r.DatasetID == "" {
		return ErrEmptyDatasetID
	}
	if r.LocalID == "" {
		return ErrEmptyLocalID
	}
	return nil
}
