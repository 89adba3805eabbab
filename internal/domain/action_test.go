package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lecternhq/lectern-api/internal/domain"
)

func TestActionTypeIsValid(t *testing.T) {
	t.Parallel()

	for _, a := range []domain.ActionType{
		domain.ActionChecklist,
		domain.ActionTree,
		domain.ActionPages,
		domain.ActionFlashcards,
		domain.ActionApprove,
	} {
		assert.True(t, a.IsValid(), string(a))
	}

	assert.False(t, domain.ActionType("").IsValid())
	assert.False(t, domain.ActionType("summarize").IsValid())
}

func TestActionTypeGenerative(t *testing.T) {
	t.Parallel()

	for _, a := range domain.GenerativeActions {
		assert.True(t, a.Generative(), string(a))
	}

	assert.False(t, domain.ActionApprove.Generative())
	assert.False(t, domain.ActionType("summarize").Generative())
}

func TestNewRun(t *testing.T) {
	t.Parallel()

	job, err := domain.NewJob("page-123", domain.ActionPages, 3)
	assert.NoError(t, err)

	run := domain.NewRun(job, "gemini-2.0-flash", "v1")
	assert.Equal(t, job.ID, run.JobID)
	assert.Equal(t, job.PageID, run.PageID)
	assert.Equal(t, job.Action, run.Action)
	assert.Equal(t, domain.JobStatusRunning, run.Status)
	assert.Equal(t, "gemini-2.0-flash", run.Model)
	assert.Equal(t, "v1", run.PromptVersion)
	assert.Nil(t, run.EndedAt)

	run.InputTokens = 1200
	run.OutputTokens = 300
	assert.Equal(t, 1500, run.TotalTokens())
}
