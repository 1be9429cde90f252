package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/taskledger/taskledger/internal/bucketing"
	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// PostgresProcessedRecordStore implements store.ProcessedRecordStore. Rows
// are spread over a fixed set of hash buckets on the record ID, matching
// the partition layout of the notification and harvested-record tables.
type PostgresProcessedRecordStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProcessedRecordStore creates a new PostgreSQL implementation
// of the ProcessedRecordStore interface.
func NewPostgresProcessedRecordStore(db store.DBTX, logger *slog.Logger) *PostgresProcessedRecordStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProcessedRecordStore{
		db:     db,
		logger: logger.With(slog.String("component", "processed_record_store")),
	}
}

// Ensure PostgresProcessedRecordStore implements store.ProcessedRecordStore
var _ store.ProcessedRecordStore = (*PostgresProcessedRecordStore)(nil)

// Insert implements store.ProcessedRecordStore.Insert. A retry of the same
// record overwrites the earlier outcome row.
func (s *PostgresProcessedRecordStore) Insert(ctx context.Context, record *domain.ProcessedRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("processed record validation failed during insert",
			slog.String("error", err.Error()),
			slog.Int64("task_id", record.TaskID),
			slog.String("record_id", record.RecordID))
		return err
	}

	bucket, err := bucketing.HashBucket(record.RecordID, bucketing.ProcessedRecordBuckets)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO processed_records (
			task_id, bucket_number, record_id, attempt_number,
			dst_identifier, topology_name, outcome, start_time, info_text, additional_info
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (task_id, bucket_number, record_id)
		DO UPDATE SET attempt_number = EXCLUDED.attempt_number,
		              dst_identifier = EXCLUDED.dst_identifier,
		              topology_name = EXCLUDED.topology_name,
		              outcome = EXCLUDED.outcome,
		              start_time = EXCLUDED.start_time,
		              info_text = EXCLUDED.info_text,
		              additional_info = EXCLUDED.additional_info
	`

	_, err = s.db.ExecContext(ctx, query,
		record.TaskID,
		bucket,
		record.RecordID,
		record.AttemptNumber,
		record.DstIdentifier,
		record.TopologyName,
		record.Outcome,
		record.StartTime,
		record.InfoText,
		record.AdditionalInfo,
	)
	if err != nil {
		log.Error("failed to insert processed record",
			slog.String("error", err.Error()),
			slog.Int64("task_id", record.TaskID),
			slog.String("record_id", record.RecordID))
		return MapError(err)
	}

	return nil
}

// UpdateOutcome implements store.ProcessedRecordStore.UpdateOutcome.
// Returns store.ErrRecordNotFound if the record was never inserted.
func (s *PostgresProcessedRecordStore) UpdateOutcome(ctx context.Context, taskID int64, recordID string, outcome domain.RecordOutcome) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(recordID, bucketing.ProcessedRecordBuckets)
	if err != nil {
		return err
	}

	query := `
		UPDATE processed_records
		SET outcome = $1
		WHERE task_id = $2 AND bucket_number = $3 AND record_id = $4
	`

	result, err := s.db.ExecContext(ctx, query, outcome, taskID, bucket, recordID)
	if err != nil {
		log.Error("failed to update processed record outcome",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("record_id", recordID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrRecordNotFound)
}

// SelectByPrimaryKey implements store.ProcessedRecordStore.SelectByPrimaryKey.
func (s *PostgresProcessedRecordStore) SelectByPrimaryKey(ctx context.Context, taskID int64, recordID string) (*domain.ProcessedRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	bucket, err := bucketing.HashBucket(recordID, bucketing.ProcessedRecordBuckets)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT task_id, record_id, attempt_number,
		       dst_identifier, topology_name, outcome, start_time, info_text, additional_info
		FROM processed_records
		WHERE task_id = $1 AND bucket_number = $2 AND record_id = $3
	`

	var record domain.ProcessedRecord
	err = s.db.QueryRowContext(ctx, query, taskID, bucket, recordID).Scan(
		&record.TaskID,
		&record.RecordID,
		&record.AttemptNumber,
		&record.DstIdentifier,
		&record.TopologyName,
		&record.Outcome,
		&record.StartTime,
		&record.InfoText,
		&record.AdditionalInfo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		log.Error("failed to select processed record",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("record_id", recordID))
		return nil, MapError(err)
	}

	return &record, nil
}

// RemoveForTask implements store.ProcessedRecordStore.RemoveForTask.
func (s *PostgresProcessedRecordStore) RemoveForTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM processed_records WHERE task_id = $1 AND bucket_number = $2`

	for bucket := bucketing.ProcessedRecordBuckets - 1; bucket >= 0; bucket-- {
		if _, err := s.db.ExecContext(ctx, query, taskID, bucket); err != nil {
			log.Error("failed to remove processed record bucket",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID),
				slog.Int("bucket", bucket))
			return MapError(err)
		}
	}

	return nil
}
