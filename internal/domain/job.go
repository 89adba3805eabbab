package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a job
type JobStatus string

// Possible job status values
const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobPageID   = errors.New("job page ID cannot be empty")
	ErrInvalidJobStatus = errors.New("invalid job status")
)

// Job is one unit of requested work: a source page plus an action type,
// tracked through queued/running/success/failed. A job may be executed
// more than once (transient failures re-queue it) up to MaxAttempts.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	PageID      string     `json:"page_id"`
	Action      ActionType `json:"action"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewJob creates a queued Job for the given page and action.
// It generates a new UUID for the job ID and sets the timestamps.
// Returns an error if validation fails.
func NewJob(pageID string, action ActionType, maxAttempts int) (*Job, error) {
	job := &Job{
		ID:          uuid.New(),
		PageID:      pageID,
		Action:      action,
		Status:      JobStatusQueued,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.PageID == "" {
		return ErrEmptyJobPageID
	}

	if !j.Action.IsValid() {
		return ErrInvalidActionType
	}

	if !j.Status.IsValid() {
		return ErrInvalidJobStatus
	}

	return nil
}

// IsValid checks if the status is one of the defined JobStatus values.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSuccess, JobStatusFailed:
		return true
	default:
		return false
	}
}
