package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/taskledger/taskledger/internal/bucketing"
	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// PostgresHarvestedRecordStore implements store.HarvestedRecordStore. Rows
// are hash-bucketed by local ID; full-dataset scans walk the buckets with
// bucketing.Iterator.
type PostgresHarvestedRecordStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresHarvestedRecordStore creates a new PostgreSQL implementation
// of the HarvestedRecordStore interface.
func NewPostgresHarvestedRecordStore(db store.DBTX, logger *slog.Logger) *PostgresHarvestedRecordStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresHarvestedRecordStore{
		db:     db,
		logger: logger.With(slog.String("component", "harvested_record_store")),
	}
}

// Ensure PostgresHarvestedRecordStore implements store.HarvestedRecordStore
var _ store.HarvestedRecordStore = (*PostgresHarvestedRecordStore)(nil)

// Insert implements store.HarvestedRecordStore.Insert. Re-inserting an
// existing (dataset, local ID) pair overwrites the row.
func (s *PostgresHarvestedRecordStore) Insert(ctx context.Context, record *domain.HarvestedRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("harvested record validation failed during insert",
			slog.String("error", err.Error()),
			slog.String("dataset_id", record.DatasetID),
			slog.String("local_id", record.LocalID))
		return err
	}

	bucket, err := bucketing.HashBucket(record.LocalID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return err
	}
	record.BucketNumber = bucket

	query := `
		INSERT INTO harvested_records (
			dataset_id, bucket_number, local_id,
			latest_harvest_date, latest_harvest_md5,
			preview_harvest_date, preview_harvest_md5,
			published_harvest_date, published_harvest_md5,
			indexing_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dataset_id, bucket_number, local_id)
		DO UPDATE SET latest_harvest_date = EXCLUDED.latest_harvest_date,
		              latest_harvest_md5 = EXCLUDED.latest_harvest_md5,
		              preview_harvest_date = EXCLUDED.preview_harvest_date,
		              preview_harvest_md5 = EXCLUDED.preview_harvest_md5,
		              published_harvest_date = EXCLUDED.published_harvest_date,
		              published_harvest_md5 = EXCLUDED.published_harvest_md5,
		              indexing_date = EXCLUDED.indexing_date
	`

	_, err = s.db.ExecContext(ctx, query,
		record.DatasetID,
		record.BucketNumber,
		record.LocalID,
		record.LatestHarvestDate,
		record.LatestHarvestMD5,
		record.PreviewHarvestDate,
		record.PreviewHarvestMD5,
		record.PublishedHarvestDate,
		record.PublishedHarvestMD5,
		record.IndexingDate,
	)
	if err != nil {
		log.Error("failed to insert harvested record",
			slog.String("error", err.Error()),
			slog.String("dataset_id", record.DatasetID),
			slog.String("local_id", record.LocalID))
		return MapError(err)
	}

	return nil
}

// UpdateLatestHarvest implements store.HarvestedRecordStore.UpdateLatestHarvest.
func (s *PostgresHarvestedRecordStore) UpdateLatestHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return s.updateHarvestColumns(ctx, datasetID, localID,
		`UPDATE harvested_records
		 SET latest_harvest_date = $1, latest_harvest_md5 = $2
		 WHERE dataset_id = $3 AND bucket_number = $4 AND local_id = $5`,
		date, md5)
}

// UpdatePreviewHarvest implements store.HarvestedRecordStore.UpdatePreviewHarvest.
func (s *PostgresHarvestedRecordStore) UpdatePreviewHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return s.updateHarvestColumns(ctx, datasetID, localID,
		`UPDATE harvested_records
		 SET preview_harvest_date = $1, preview_harvest_md5 = $2
		 WHERE dataset_id = $3 AND bucket_number = $4 AND local_id = $5`,
		date, md5)
}

// UpdatePublishedHarvest implements store.HarvestedRecordStore.UpdatePublishedHarvest.
func (s *PostgresHarvestedRecordStore) UpdatePublishedHarvest(ctx context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return s.updateHarvestColumns(ctx, datasetID, localID,
		`UPDATE harvested_records
		 SET published_harvest_date = $1, published_harvest_md5 = $2
		 WHERE dataset_id = $3 AND bucket_number = $4 AND local_id = $5`,
		date, md5)
}

func (s *PostgresHarvestedRecordStore) updateHarvestColumns(ctx context.Context, datasetID, localID, query string, date time.Time, md5 string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(localID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, date, md5, datasetID, bucket, localID)
	if err != nil {
		log.Error("failed to update harvested record",
			slog.String("error", err.Error()),
			slog.String("dataset_id", datasetID),
			slog.String("local_id", localID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrHarvestedRecordNotFound)
}

// UpdateIndexingDate implements store.HarvestedRecordStore.UpdateIndexingDate.
func (s *PostgresHarvestedRecordStore) UpdateIndexingDate(ctx context.Context, datasetID, localID string, date time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(localID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return err
	}

	query := `
		UPDATE harvested_records
		SET indexing_date = $1
		WHERE dataset_id = $2 AND bucket_number = $3 AND local_id = $4
	`

	result, err := s.db.ExecContext(ctx, query, date, datasetID, bucket, localID)
	if err != nil {
		log.Error("failed to update indexing date",
			slog.String("error", err.Error()),
			slog.String("dataset_id", datasetID),
			slog.String("local_id", localID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrHarvestedRecordNotFound)
}

// FindRecord implements store.HarvestedRecordStore.FindRecord.
func (s *PostgresHarvestedRecordStore) FindRecord(ctx context.Context, datasetID, localID string) (*domain.HarvestedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(localID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT dataset_id, bucket_number, local_id,
		       latest_harvest_date, latest_harvest_md5,
		       preview_harvest_date, preview_harvest_md5,
		       published_harvest_date, published_harvest_md5,
		       indexing_date
		FROM harvested_records
		WHERE dataset_id = $1 AND bucket_number = $2 AND local_id = $3
	`

	record, err := scanHarvestedRecord(s.db.QueryRowContext(ctx, query, datasetID, bucket, localID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrHarvestedRecordNotFound
		}
		log.Error("failed to find harvested record",
			slog.String("error", err.Error()),
			slog.String("dataset_id", datasetID),
			slog.String("local_id", localID))
		return nil, MapError(err)
	}

	return record, nil
}

// FetchBucket implements store.HarvestedRecordStore.FetchBucket.
func (s *PostgresHarvestedRecordStore) FetchBucket(ctx context.Context, datasetID string, bucket int) ([]domain.HarvestedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT dataset_id, bucket_number, local_id,
		       latest_harvest_date, latest_harvest_md5,
		       preview_harvest_date, preview_harvest_md5,
		       published_harvest_date, published_harvest_md5,
		       indexing_date
		FROM harvested_records
		WHERE dataset_id = $1 AND bucket_number = $2
		ORDER BY local_id
	`

	rows, err := s.db.QueryContext(ctx, query, datasetID, bucket)
	if err != nil {
		log.Error("failed to fetch harvested record bucket",
			slog.String("error", err.Error()),
			slog.String("dataset_id", datasetID),
			slog.Int("bucket", bucket))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	records := []domain.HarvestedRecord{}
	for rows.Next() {
		record, err := scanHarvestedRecord(rows)
		if err != nil {
			log.Error("failed to scan harvested record row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return records, nil
}

// Delete implements store.HarvestedRecordStore.Delete. Deleting an absent
// record is a no-op.
func (s *PostgresHarvestedRecordStore) Delete(ctx context.Context, datasetID, localID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(localID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return err
	}

	query := `DELETE FROM harvested_records WHERE dataset_id = $1 AND bucket_number = $2 AND local_id = $3`

	if _, err := s.db.ExecContext(ctx, query, datasetID, bucket, localID); err != nil {
		log.Error("failed to delete harvested record",
			slog.String("error", err.Error()),
			slog.String("dataset_id", datasetID),
			slog.String("local_id", localID))
		return MapError(err)
	}

	return nil
}

func scanHarvestedRecord(row rowScanner) (*domain.HarvestedRecord, error) {
	var record domain.HarvestedRecord

	err := row.Scan(
		&record.DatasetID,
		&record.BucketNumber,
		&record.LocalID,
		&record.LatestHarvestDate,
		&record.LatestHarvestMD5,
		&record.PreviewHarvestDate,
		&record.PreviewHarvestMD5,
		&record.PublishedHarvestDate,
		&record.PublishedHarvestMD5,
		&record.IndexingDate,
	)
	if err != nil {
		return nil, err
	}

	return &record, nil
}
