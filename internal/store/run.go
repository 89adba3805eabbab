package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/domain"
)

// RunOutcome carries the terminal state of a pipeline run: its status,
// token usage, error text, and a truncated snapshot of the output.
type RunOutcome struct {
	Status         domain.JobStatus
	InputTokens    int
	OutputTokens   int
	Error          string
	OutputSnapshot string
}

// RunStore defines the interface for run persistence.
type RunStore interface {
	// Create saves a new run at the start of a pipeline execution.
	Create(ctx context.Context, run *domain.Run) error

	// Finish records the outcome of a run and stamps its end time.
	// Returns ErrRunNotFound if the run does not exist.
	Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error

	// Recent returns the most recently started runs, newest first,
	// capped at limit.
	Recent(ctx context.Context, limit int) ([]*domain.Run, error)
}
