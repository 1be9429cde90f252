package postgres

import (
	"context"
	"log/slog"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/platform/logger"
	"github.com/taskledger/taskledger/internal/store"
)

// Sample caps for statistics reads. Statistics exist to characterize a
// task's input, not to enumerate it, so value listings are truncated.
const (
	// ElementSampleLimit caps how many distinct node values a node
	// statistics read returns.
	ElementSampleLimit = 100

	// AttributeSampleLimit caps how many distinct attribute values an
	// attribute statistics read returns.
	AttributeSampleLimit = 25
)

// PostgresStatisticsStore implements store.StatisticsStore across the
// three statistics tables. All increments are single-statement upserts so
// concurrent writers never need read-before-write.
type PostgresStatisticsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStatisticsStore creates a new PostgreSQL implementation of the
// StatisticsStore interface.
func NewPostgresStatisticsStore(db store.DBTX, logger *slog.Logger) *PostgresStatisticsStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStatisticsStore{
		db:     db,
		logger: logger.With(slog.String("component", "statistics_store")),
	}
}

// Ensure PostgresStatisticsStore implements store.StatisticsStore
var _ store.StatisticsStore = (*PostgresStatisticsStore)(nil)

// IncrementGeneral implements store.StatisticsStore.IncrementGeneral.
func (s *PostgresStatisticsStore) IncrementGeneral(ctx context.Context, taskID int64, parentXpath, nodeXpath string, delta int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO general_statistics (task_id, parent_xpath, node_xpath, occurrence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, parent_xpath, node_xpath)
		DO UPDATE SET occurrence = general_statistics.occurrence + EXCLUDED.occurrence
	`

	if _, err := s.db.ExecContext(ctx, query, taskID, parentXpath, nodeXpath, delta); err != nil {
		log.Error("failed to increment general statistics",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("node_xpath", nodeXpath))
		return MapError(err)
	}

	return nil
}

// SearchGeneral implements store.StatisticsStore.SearchGeneral.
func (s *PostgresStatisticsStore) SearchGeneral(ctx context.Context, taskID int64) ([]domain.GeneralStatistics, error) {
	query := `
		SELECT task_id, parent_xpath, node_xpath, occurrence
		FROM general_statistics
		WHERE task_id = $1
		ORDER BY parent_xpath, node_xpath
	`

	return s.queryGeneral(ctx, query, taskID)
}

// SearchGeneralByNode implements store.StatisticsStore.SearchGeneralByNode.
func (s *PostgresStatisticsStore) SearchGeneralByNode(ctx context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.GeneralStatistics, error) {
	query := `
		SELECT task_id, parent_xpath, node_xpath, occurrence
		FROM general_statistics
		WHERE task_id = $1 AND parent_xpath = $2 AND node_xpath = $3
	`

	return s.queryGeneral(ctx, query, taskID, parentXpath, nodeXpath)
}

func (s *PostgresStatisticsStore) queryGeneral(ctx context.Context, query string, args ...any) ([]domain.GeneralStatistics, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query general statistics",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	stats := []domain.GeneralStatistics{}
	for rows.Next() {
		var g domain.GeneralStatistics
		if err := rows.Scan(&g.TaskID, &g.ParentXpath, &g.NodeXpath, &g.Occurrence); err != nil {
			log.Error("failed to scan general statistics row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		stats = append(stats, g)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return stats, nil
}

// IncrementNodeValue implements store.StatisticsStore.IncrementNodeValue.
func (s *PostgresStatisticsStore) IncrementNodeValue(ctx context.Context, taskID int64, parentXpath, nodeXpath, nodeValue string, delta int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO node_statistics (task_id, parent_xpath, node_xpath, node_value, occurrence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id, parent_xpath, node_xpath, node_value)
		DO UPDATE SET occurrence = node_statistics.occurrence + EXCLUDED.occurrence
	`

	if _, err := s.db.ExecContext(ctx, query, taskID, parentXpath, nodeXpath, nodeValue, delta); err != nil {
		log.Error("failed to increment node statistics",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("node_xpath", nodeXpath))
		return MapError(err)
	}

	return nil
}

// NodeStatistics implements store.StatisticsStore.NodeStatistics. At most
// ElementSampleLimit distinct values are returned, most frequent first.
func (s *PostgresStatisticsStore) NodeStatistics(ctx context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.NodeStatistics, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT task_id, parent_xpath, node_xpath, node_value, occurrence
		FROM node_statistics
		WHERE task_id = $1 AND parent_xpath = $2 AND node_xpath = $3
		ORDER BY occurrence DESC, node_value
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, taskID, parentXpath, nodeXpath, ElementSampleLimit)
	if err != nil {
		log.Error("failed to query node statistics",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	stats := []domain.NodeStatistics{}
	for rows.Next() {
		var n domain.NodeStatistics
		if err := rows.Scan(&n.TaskID, &n.ParentXpath, &n.NodeXpath, &n.NodeValue, &n.Occurrence); err != nil {
			log.Error("failed to scan node statistics row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		stats = append(stats, n)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return stats, nil
}

// IncrementAttribute implements store.StatisticsStore.IncrementAttribute.
func (s *PostgresStatisticsStore) IncrementAttribute(ctx context.Context, taskID int64, nodeXpath, nodeValue, attrName, attrValue string, delta int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO attribute_statistics (task_id, node_xpath, node_value, attribute_name, attribute_value, occurrence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, node_xpath, node_value, attribute_name, attribute_value)
		DO UPDATE SET occurrence = attribute_statistics.occurrence + EXCLUDED.occurrence
	`

	if _, err := s.db.ExecContext(ctx, query, taskID, nodeXpath, nodeValue, attrName, attrValue, delta); err != nil {
		log.Error("failed to increment attribute statistics",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID),
			slog.String("node_xpath", nodeXpath))
		return MapError(err)
	}

	return nil
}

// AttributeStatistics implements store.StatisticsStore.AttributeStatistics.
// At most AttributeSampleLimit values are returned, most frequent first.
func (s *PostgresStatisticsStore) AttributeStatistics(ctx context.Context, taskID int64, nodeXpath, nodeValue string) ([]domain.AttributeStatistics, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT attribute_name, attribute_value, occurrence
		FROM attribute_statistics
		WHERE task_id = $1 AND node_xpath = $2 AND node_value = $3
		ORDER BY occurrence DESC, attribute_name, attribute_value
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, taskID, nodeXpath, nodeValue, AttributeSampleLimit)
	if err != nil {
		log.Error("failed to query attribute statistics",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	stats := []domain.AttributeStatistics{}
	for rows.Next() {
		var a domain.AttributeStatistics
		if err := rows.Scan(&a.Name, &a.Value, &a.Occurrence); err != nil {
			log.Error("failed to scan attribute statistics row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		stats = append(stats, a)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return stats, nil
}

// RemoveForTask implements store.StatisticsStore.RemoveForTask.
func (s *PostgresStatisticsStore) RemoveForTask(ctx context.Context, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	queries := []string{
		`DELETE FROM attribute_statistics WHERE task_id = $1`,
		`DELETE FROM node_statistics WHERE task_id = $1`,
		`DELETE FROM general_statistics WHERE task_id = $1`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query, taskID); err != nil {
			log.Error("failed to remove task statistics",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID))
			return MapError(err)
		}
	}

	return nil
}
