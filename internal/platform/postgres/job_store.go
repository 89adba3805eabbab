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

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// Create implements store.JobStore.Create
// It saves a new job to the database, handling domain validation.
// Returns validation errors from the domain Job if data is invalid.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	query := `
		INSERT INTO jobs (id, page_id, action, status, attempts, max_attempts, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.PageID,
		job.Action,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("page_id", job.PageID),
			slog.String("action", string(job.Action)))
		return MapError(err)
	}

	log.Info("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("page_id", job.PageID),
		slog.String("action", string(job.Action)))
	return nil
}

// GetByID implements store.JobStore.GetByID
// It retrieves a job by its unique ID.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, page_id, action, status, attempts, max_attempts, error, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.PageID,
		&job.Action,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)

	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}

		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	return &job, nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
// It applies a status transition to an existing job, optionally advancing
// the attempt counter in the same statement.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update store.JobStatusUpdate,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !update.Status.IsValid() {
		return domain.ErrInvalidJobStatus
	}

	var query string
	switch {
	case update.IncrementAttempts:
		query = `
			UPDATE jobs
			SET status = $2, error = $3, attempts = attempts + 1, updated_at = $4
			WHERE id = $1
		`
	case update.ResetAttempts:
		query = `
			UPDATE jobs
			SET status = $2, error = $3, attempts = 0, updated_at = $4
			WHERE id = $1
		`
	default:
		query = `
			UPDATE jobs
			SET status = $2, error = $3, updated_at = $4
			WHERE id = $1
		`
	}

	result, err := s.db.ExecContext(ctx, query, id, update.Status, update.Error, time.Now().UTC())
	if err != nil {
		log.Error("failed to update job status",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()),
			slog.String("status", string(update.Status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrJobNotFound); err != nil {
		log.Warn("job status update affected no rows",
			slog.String("job_id", id.String()),
			slog.String("status", string(update.Status)))
		return err
	}

	log.Debug("job status updated",
		slog.String("job_id", id.String()),
		slog.String("status", string(update.Status)),
		slog.Bool("incremented_attempts", update.IncrementAttempts))
	return nil
}
