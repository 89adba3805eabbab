package postgres

import (
	"context"
	"log/slog"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/logger"
	"github.com/lecternhq/lectern-api/internal/store"
)

// PostgresStatsStore implements the store.StatsStore interface
// using a PostgreSQL database as the storage backend.
type PostgresStatsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStatsStore creates a new PostgreSQL implementation of the StatsStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresStatsStore(db store.DBTX, logger *slog.Logger) *PostgresStatsStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStatsStore{
		db:     db,
		logger: logger.With(slog.String("component", "stats_store")),
	}
}

// Ensure PostgresStatsStore implements store.StatsStore interface
var _ store.StatsStore = (*PostgresStatsStore)(nil)

// Summary implements store.StatsStore.Summary
// It computes the aggregate counters across jobs, runs, and generated
// outputs in a handful of queries.
func (s *PostgresStatsStore) Summary(ctx context.Context) (*store.Stats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stats := &store.Stats{
		JobsByAction: make(map[string]int),
	}

	jobQuery := `
		SELECT action, COUNT(*)
		FROM jobs
		GROUP BY action
	`
	rows, err := s.db.QueryContext(ctx, jobQuery)
	if err != nil {
		log.Error("failed to aggregate jobs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, MapError(err)
		}
		stats.JobsByAction[action] = count
		stats.TotalJobs += count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	runQuery := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COALESCE(SUM(input_tokens + output_tokens), 0),
			COUNT(*) FILTER (WHERE action = $3 AND status = $1),
			COUNT(*) FILTER (WHERE action = $4 AND status = $1)
		FROM runs
	`
	err = s.db.QueryRowContext(
		ctx,
		runQuery,
		domain.JobStatusSuccess,
		domain.JobStatusFailed,
		domain.ActionPages,
		domain.ActionFlashcards,
	).Scan(
		&stats.TotalRuns,
		&stats.SuccessfulRuns,
		&stats.FailedRuns,
		&stats.TotalTokens,
		&stats.PageRuns,
		&stats.FlashcardRuns,
	)
	if err != nil {
		log.Error("failed to aggregate runs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	nodeQuery := `SELECT COUNT(*) FROM tree_nodes`
	if err := s.db.QueryRowContext(ctx, nodeQuery).Scan(&stats.TreeNodes); err != nil {
		log.Error("failed to count tree nodes", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return stats, nil
}
