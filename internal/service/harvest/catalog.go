// Package harvest maintains the per-dataset harvested record catalog:
// which records a dataset holds, when each was last harvested, previewed,
// published and indexed, and the content fingerprints used to detect
// unchanged records between harvests.
package harvest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskledger/taskledger/internal/bucketing"
	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/store"
)

// Catalog wraps the harvested record store with retries and the bucket
// iterator. Records belong to datasets, not tasks, so nothing here is
// touched by task purge.
type Catalog struct {
	records store.HarvestedRecordStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewCatalog creates a Catalog over the given store.
func NewCatalog(records store.HarvestedRecordStore, log *slog.Logger) *Catalog {
	if records == nil {
		panic("harvest: harvested record store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Catalog{
		records: records,
		logger:  log.With(slog.String("component", "harvest_catalog")),
		now:     time.Now,
	}
}

// RegisterHarvest records that localID was fetched by the current harvest
// of the dataset, stamping the latest harvest date and fingerprint. An
// existing row keeps its preview, published and indexing columns; a new
// row is created for a record seen for the first time.
func (c *Catalog) RegisterHarvest(ctx context.Context, datasetID, localID, md5 string) error {
	date := c.now().UTC()

	err := retry.DoStore(ctx, func() error {
		return c.records.UpdateLatestHarvest(ctx, datasetID, localID, date, md5)
	})
	if !errors.Is(err, store.ErrHarvestedRecordNotFound) {
		return err
	}

	record := &domain.HarvestedRecord{
		DatasetID:         datasetID,
		LocalID:           localID,
		LatestHarvestDate: &date,
		LatestHarvestMD5:  md5,
	}
	return retry.DoStore(ctx, func() error {
		return c.records.Insert(ctx, record)
	})
}

// MarkPreviewed stamps the preview harvest date and fingerprint.
// Returns store.ErrHarvestedRecordNotFound for an unknown record.
func (c *Catalog) MarkPreviewed(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return retry.DoStore(ctx, func() error {
		return c.records.UpdatePreviewHarvest(ctx, datasetID, localID, date, md5)
	})
}

// MarkPublished stamps the published harvest date and fingerprint.
// Returns store.ErrHarvestedRecordNotFound for an unknown record.
func (c *Catalog) MarkPublished(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return retry.DoStore(ctx, func() error {
		return c.records.UpdatePublishedHarvest(ctx, datasetID, localID, date, md5)
	})
}

// MarkIndexed stamps the indexing date.
// Returns store.ErrHarvestedRecordNotFound for an unknown record.
func (c *Catalog) MarkIndexed(ctx context.Context, datasetID, localID string, date time.Time) error {
	return retry.DoStore(ctx, func() error {
		return c.records.UpdateIndexingDate(ctx, datasetID, localID, date)
	})
}

// Record returns one catalog entry, or store.ErrHarvestedRecordNotFound.
func (c *Catalog) Record(ctx context.Context, datasetID, localID string) (*domain.HarvestedRecord, error) {
	return retry.StoreValue(ctx, func() (*domain.HarvestedRecord, error) {
		return c.records.FindRecord(ctx, datasetID, localID)
	})
}

// Unchanged reports whether the record's latest harvest fingerprint
// matches md5. A record never seen before is not unchanged.
func (c *Catalog) Unchanged(ctx context.Context, datasetID, localID, md5 string) (bool, error) {
	record, err := c.Record(ctx, datasetID, localID)
	if errors.Is(err, store.ErrHarvestedRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.LatestHarvestMD5 != "" && record.LatestHarvestMD5 == md5, nil
}

// Forget removes one record from the catalog. Removing an absent record
// is a no-op.
func (c *Catalog) Forget(ctx context.Context, datasetID, localID string) error {
	return retry.DoStore(ctx, func() error {
		return c.records.Delete(ctx, datasetID, localID)
	})
}

// DatasetRecords returns an iterator over every record of the dataset,
// walking all hash buckets in order. The iterator is forward-only and
// must not outlive the context handed to Next.
func (c *Catalog) DatasetRecords(datasetID string) *bucketing.Iterator[domain.HarvestedRecord] {
	return bucketing.NewIterator(bucketing.HarvestedRecordBuckets, func(ctx context.Context, bucket int) ([]domain.HarvestedRecord, error) {
		return retry.StoreValue(ctx, func() ([]domain.HarvestedRecord, error) {
			return c.records.FetchBucket(ctx, datasetID, bucket)
		})
	})
}
