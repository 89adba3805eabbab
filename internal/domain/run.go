package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run records one execution attempt of a job's pipeline: which model and
// prompt version were used, how many tokens the generation consumed, and
// how the attempt ended. A job accumulates one Run per attempt.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	JobID          uuid.UUID  `json:"job_id"`
	PageID         string     `json:"page_id"`
	Action         ActionType `json:"action"`
	Status         JobStatus  `json:"status"`
	Model          string     `json:"model,omitempty"`
	PromptVersion  string     `json:"prompt_version,omitempty"`
	InputTokens    int        `json:"input_tokens"`
	OutputTokens   int        `json:"output_tokens"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	OutputSnapshot string     `json:"output_snapshot,omitempty"`
}

// NewRun creates a running Run for one pipeline attempt of the given job.
func NewRun(job *Job, model, promptVersion string) *Run {
	return &Run{
		ID:            uuid.New(),
		JobID:         job.ID,
		PageID:        job.PageID,
		Action:        job.Action,
		Status:        JobStatusRunning,
		Model:         model,
		PromptVersion: promptVersion,
		StartedAt:     time.Now().UTC(),
	}
}

// TotalTokens returns the combined input and output token count.
func (r *Run) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}
