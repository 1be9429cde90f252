package harvest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/mocks"
	"github.com/taskledger/taskledger/internal/store"
)

func TestRegisterHarvestCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemHarvestedRecordStore()
	catalog := NewCatalog(records, nil)

	err := catalog.RegisterHarvest(ctx, "ds1", "oai:example.org:1", "aaa")
	require.NoError(t, err)

	record, err := catalog.Record(ctx, "ds1", "oai:example.org:1")
	require.NoError(t, err)
	require.NotNil(t, record.LatestHarvestDate)
	assert.Equal(t, "aaa", record.LatestHarvestMD5)

	// A later harvest of the same record replaces the fingerprint but
	// keeps the preview column set in between.
	previewDate := time.Now().UTC()
	require.NoError(t, catalog.MarkPreviewed(ctx, "ds1", "oai:example.org:1", previewDate, "aaa"))

	err = catalog.RegisterHarvest(ctx, "ds1", "oai:example.org:1", "bbb")
	require.NoError(t, err)

	record, err = catalog.Record(ctx, "ds1", "oai:example.org:1")
	require.NoError(t, err)
	assert.Equal(t, "bbb", record.LatestHarvestMD5)
	assert.Equal(t, "aaa", record.PreviewHarvestMD5)
	require.NotNil(t, record.PreviewHarvestDate)
}

func TestMarkOperationsRequireExistingRecord(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(mocks.NewMemHarvestedRecordStore(), nil)
	date := time.Now().UTC()

	assert.ErrorIs(t, catalog.MarkPreviewed(ctx, "ds1", "missing", date, "x"), store.ErrHarvestedRecordNotFound)
	assert.ErrorIs(t, catalog.MarkPublished(ctx, "ds1", "missing", date, "x"), store.ErrHarvestedRecordNotFound)
	assert.ErrorIs(t, catalog.MarkIndexed(ctx, "ds1", "missing", date), store.ErrHarvestedRecordNotFound)

	_, err := catalog.Record(ctx, "ds1", "missing")
	assert.ErrorIs(t, err, store.ErrHarvestedRecordNotFound)
}

func TestUnchangedComparesLatestFingerprint(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(mocks.NewMemHarvestedRecordStore(), nil)

	unchanged, err := catalog.Unchanged(ctx, "ds1", "rec", "aaa")
	require.NoError(t, err)
	assert.False(t, unchanged, "never-seen record must not count as unchanged")

	require.NoError(t, catalog.RegisterHarvest(ctx, "ds1", "rec", "aaa"))

	unchanged, err = catalog.Unchanged(ctx, "ds1", "rec", "aaa")
	require.NoError(t, err)
	assert.True(t, unchanged)

	unchanged, err = catalog.Unchanged(ctx, "ds1", "rec", "bbb")
	require.NoError(t, err)
	assert.False(t, unchanged)
}

func TestDatasetRecordsWalksAllBuckets(t *testing.T) {
	ctx := context.Background()
	records := mocks.NewMemHarvestedRecordStore()
	catalog := NewCatalog(records, nil)

	const total = 300
	for i := 0; i < total; i++ {
		localID := fmt.Sprintf("oai:example.org:%d", i)
		require.NoError(t, catalog.RegisterHarvest(ctx, "ds1", localID, "md5"))
	}
	// Records of another dataset must not leak into the scan.
	require.NoError(t, catalog.RegisterHarvest(ctx, "ds2", "other", "md5"))

	seen := make(map[string]bool)
	lastBucket := -1
	it := catalog.DatasetRecords("ds1")
	for it.Next(ctx) {
		record := it.Record()
		assert.Equal(t, "ds1", record.DatasetID)
		assert.GreaterOrEqual(t, record.BucketNumber, lastBucket)
		lastBucket = record.BucketNumber
		seen[record.LocalID] = true
	}
	require.NoError(t, it.Err())
	assert.Len(t, seen, total)
}

func TestForgetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(mocks.NewMemHarvestedRecordStore(), nil)

	require.NoError(t, catalog.RegisterHarvest(ctx, "ds1", "rec", "aaa"))
	require.NoError(t, catalog.Forget(ctx, "ds1", "rec"))

	_, err := catalog.Record(ctx, "ds1", "rec")
	assert.ErrorIs(t, err, store.ErrHarvestedRecordNotFound)

	assert.NoError(t, catalog.Forget(ctx, "ds1", "rec"))
}
