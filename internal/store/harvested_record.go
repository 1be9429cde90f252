package store

import (
	"context"
	"time"

	"github.com/taskledger/taskledger/internal/domain"
)

// HarvestedRecordStore tracks dataset records across harvests. Rows are
// hash-bucketed by local ID; a full dataset scan probes every bucket.
type HarvestedRecordStore interface {
	// Insert writes (or overwrites) a harvested record row.
	Insert(ctx context.Context, record *domain.HarvestedRecord) error

	// UpdateLatestHarvest sets the latest harvest date and fingerprint.
	UpdateLatestHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error

	// UpdatePreviewHarvest sets the preview harvest date and fingerprint.
	UpdatePreviewHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error

	// UpdatePublishedHarvest sets the published harvest date and
	// fingerprint.
	UpdatePublishedHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error

	// UpdateIndexingDate sets the indexing date.
	UpdateIndexingDate(ctx context.Context, datasetID, localID string, date time.Time) error

	// FindRecord returns the record, or ErrHarvestedRecordNotFound.
	FindRecord(ctx context.Context, datasetID, localID string) (*domain.HarvestedRecord, error)

	// FetchBucket returns all records of one hash bucket of the dataset.
	FetchBucket(ctx context.Context, datasetID string, bucket int) ([]domain.HarvestedRecord, error)

	// Delete removes one record.
	Delete(ctx context.Context, datasetID, localID string) error
}
