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

// NotificationRetention is how long per-record notifications are kept
// before they are eligible for purging.
const NotificationRetention = 14 * 24 * time.Hour

// PostgresNotificationStore implements store.NotificationStore. Rows are
// bucketed by sequence number so no (task, bucket) partition outgrows the
// backend's practical row ceiling, and so the newest sequence number can be
// found by probing the highest populated bucket instead of keeping a
// separate counter.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of
// the NotificationStore interface.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure PostgresNotificationStore implements store.NotificationStore
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// Insert implements store.NotificationStore.Insert. The bucket number is
// always derived from the sequence number; a repeated insert for the same
// sequence number overwrites the earlier row.
func (s *PostgresNotificationStore) Insert(ctx context.Context, notification *domain.RecordNotification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := notification.Validate(); err != nil {
		log.Warn("notification validation failed during insert",
			slog.String("error", err.Error()),
			slog.Int64("task_id", notification.TaskID),
			slog.Int64("sequence", notification.SequenceNumber))
		return err
	}

	notification.BucketNumber = bucketing.SequenceBucket(notification.SequenceNumber)

	query := `
		INSERT INTO notifications (
			task_id, bucket_number, sequence_number,
			resource, result_resource, outcome, info_text, additional_info, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (task_id, bucket_number, sequence_number)
		DO UPDATE SET resource = EXCLUDED.resource,
		              result_resource = EXCLUDED.result_resource,
		              outcome = EXCLUDED.outcome,
		              info_text = EXCLUDED.info_text,
		              additional_info = EXCLUDED.additional_info,
		              expires_at = EXCLUDED.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		notification.TaskID,
		notification.BucketNumber,
		notification.SequenceNumber,
		notification.Resource,
		notification.ResultResource,
		notification.Outcome,
		notification.InfoText,
		notification.AdditionalInfo,
		time.Now().UTC().Add(NotificationRetention),
	)
	if err != nil {
		log.Error("failed to insert notification",
			slog.String("error", err.Error()),
			slog.Int64("task_id", notification.TaskID),
			slog.Int64("sequence", notification.SequenceNumber))
		return MapError(err)
	}

	return nil
}

// ProcessedCount implements store.NotificationStore.ProcessedCount.
// Buckets fill strictly in sequence order, so it probes buckets upward,
// each probe reading only the bucket's highest sequence number, and stops
// at the first empty bucket.
func (s *PostgresNotificationStore) ProcessedCount(ctx context.Context, taskID int64) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT sequence_number
		FROM notifications
		WHERE task_id = $1 AND bucket_number = $2 AND expires_at > now()
		ORDER BY sequence_number DESC
		LIMIT 1
	`

	var count int64
	for bucket := 0; ; bucket++ {
		var topSequence int64
		err := s.db.QueryRowContext(ctx, query, taskID, bucket).Scan(&topSequence)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return count, nil
			}
			log.Error("failed to probe notification bucket",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID),
				slog.Int("bucket", bucket))
			return 0, MapError(err)
		}

		count = topSequence + 1
	}
}

// FetchBucket implements store.NotificationStore.FetchBucket.
func (s *PostgresNotificationStore) FetchBucket(ctx context.Context, taskID int64, bucket int) ([]domain.RecordNotification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_id, bucket_number, sequence_number,
		       resource, result_resource, outcome, info_text, additional_info
		FROM notifications
		WHERE task_id = $1 AND bucket_number = $2 AND expires_at > now()
		ORDER BY sequence_number
	`

	rows, err := s.db.QueryContext(ctx, query, taskID, bucket)
	if err != nil {
		log.Error("failed to fetch notification bucket",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.Int("bucket", bucket))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	notifications := []domain.RecordNotification{}
	for rows.Next() {
		var n domain.RecordNotification

		err := rows.Scan(
			&n.TaskID,
			&n.BucketNumber,
			&n.SequenceNumber,
			&n.Resource,
			&n.ResultResource,
			&n.Outcome,
			&n.InfoText,
			&n.AdditionalInfo,
		)
		if err != nil {
			log.Error("failed to scan notification row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return notifications, nil
}

// PurgeExpired implements store.NotificationStore.PurgeExpired. Called by
// the synchronizer pass; expired rows are already invisible to reads.
func (s *PostgresNotificationStore) PurgeExpired(ctx context.Context) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at <= now()`)
	if err != nil {
		log.Error("failed to purge expired notifications",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}
	if purged > 0 {
		log.Info("expired notifications purged", slog.Int64("count", purged))
	}
	return purged, nil
}

// RemoveForTask implements store.NotificationStore.RemoveForTask.
// It deletes bucket by bucket from the last populated one down to zero, so
// the work stays proportional to what the task actually wrote.
func (s *PostgresNotificationStore) RemoveForTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	count, err := s.ProcessedCount(ctx, taskID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	query := `DELETE FROM notifications WHERE task_id = $1 AND bucket_number = $2`

	lastBucket := bucketing.SequenceBucket(count - 1)
	for bucket := lastBucket; bucket >= 0; bucket-- {
		if _, err := s.db.ExecContext(ctx, query, taskID, bucket); err != nil {
			log.Error("failed to remove notification bucket",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID),
				slog.Int("bucket", bucket))
			return MapError(err)
		}
	}

	log.Info("notifications removed",
		slog.Int64("task_id", taskID),
		slog.Int("buckets", lastBucket+1))
	return nil
}
