package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/domain"
)

// JobStatusUpdate describes a job status transition. IncrementAttempts is
// set when a pipeline execution begins, so the attempt counter advances
// exactly once per run.
type JobStatusUpdate struct {
	Status            domain.JobStatus
	Error             string
	IncrementAttempts bool

	// ResetAttempts zeroes the attempt counter. Used by manual retries so
	// a previously exhausted job gets its full attempt budget back.
	ResetAttempts bool
}

// JobStore defines the interface for job persistence.
type JobStore interface {
	// Create saves a new job to the store.
	// Returns validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus applies a status transition to an existing job.
	// Returns ErrJobNotFound if the job does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, update JobStatusUpdate) error
}
