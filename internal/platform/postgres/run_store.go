package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/logger"
	"github.com/lecternhq/lectern-api/internal/store"
)

// PostgresRunStore implements the store.RunStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRunStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRunStore creates a new PostgreSQL implementation of the RunStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresRunStore(db store.DBTX, logger *slog.Logger) *PostgresRunStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRunStore{
		db:     db,
		logger: logger.With(slog.String("component", "run_store")),
	}
}

// Ensure PostgresRunStore implements store.RunStore interface
var _ store.RunStore = (*PostgresRunStore)(nil)

// Create implements store.RunStore.Create
// It saves a new run at the start of a pipeline execution.
func (s *PostgresRunStore) Create(ctx context.Context, run *domain.Run) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO runs (id, job_id, page_id, action, status, model, prompt_version,
			input_tokens, output_tokens, started_at, ended_at, error, output_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.JobID,
		run.PageID,
		run.Action,
		run.Status,
		run.Model,
		run.PromptVersion,
		run.InputTokens,
		run.OutputTokens,
		run.StartedAt,
		run.EndedAt,
		run.Error,
		run.OutputSnapshot,
	)

	if err != nil {
		log.Error("failed to create run",
			slog.String("error", err.Error()),
			slog.String("run_id", run.ID.String()),
			slog.String("job_id", run.JobID.String()))
		return MapError(err)
	}

	log.Debug("run created",
		slog.String("run_id", run.ID.String()),
		slog.String("job_id", run.JobID.String()),
		slog.String("action", string(run.Action)))
	return nil
}

// Finish implements store.RunStore.Finish
// It records the outcome of a run and stamps its end time.
// Returns store.ErrRunNotFound if the run does not exist.
func (s *PostgresRunStore) Finish(ctx context.Context, id uuid.UUID, outcome store.RunOutcome) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE runs
		SET status = $2, input_tokens = $3, output_tokens = $4,
			error = $5, output_snapshot = $6, ended_at = $7
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		id,
		outcome.Status,
		outcome.InputTokens,
		outcome.OutputTokens,
		outcome.Error,
		outcome.OutputSnapshot,
		time.Now().UTC(),
	)

	if err != nil {
		log.Error("failed to finish run",
			slog.String("error", err.Error()),
			slog.String("run_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrRunNotFound); err != nil {
		log.Warn("run finish affected no rows", slog.String("run_id", id.String()))
		return err
	}

	log.Debug("run finished",
		slog.String("run_id", id.String()),
		slog.String("status", string(outcome.Status)),
		slog.Int("input_tokens", outcome.InputTokens),
		slog.Int("output_tokens", outcome.OutputTokens))
	return nil
}

// Recent implements store.RunStore.Recent
// It returns the most recently started runs, newest first, capped at limit.
func (s *PostgresRunStore) Recent(ctx context.Context, limit int) ([]*domain.Run, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 25
	}

	query := `
		SELECT id, job_id, page_id, action, status, model, prompt_version,
			input_tokens, output_tokens, started_at, ended_at, error, output_snapshot
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error("failed to list recent runs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.ID,
			&run.JobID,
			&run.PageID,
			&run.Action,
			&run.Status,
			&run.Model,
			&run.PromptVersion,
			&run.InputTokens,
			&run.OutputTokens,
			&run.StartedAt,
			&run.EndedAt,
			&run.Error,
			&run.OutputSnapshot,
		); err != nil {
			log.Error("failed to scan run row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return runs, nil
}
