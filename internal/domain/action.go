package domain

import "errors"

// ActionType identifies the kind of artifact a job generates, or the
// approval cascade.
type ActionType string

// Possible action type values
const (
	ActionChecklist  ActionType = "checklist"
	ActionTree       ActionType = "tree"
	ActionPages      ActionType = "pages"
	ActionFlashcards ActionType = "flashcards"
	ActionApprove    ActionType = "approve"
)

// ErrInvalidActionType is returned when an action type is not one of the
// known values.
var ErrInvalidActionType = errors.New("invalid action type")

// GenerativeActions lists the action types that invoke the generation
// engine. ActionApprove is deliberately absent: it only cascades status.
var GenerativeActions = []ActionType{
	ActionChecklist,
	ActionTree,
	ActionPages,
	ActionFlashcards,
}

// IsValid reports whether the action type is one of the known values.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionChecklist, ActionTree, ActionPages, ActionFlashcards, ActionApprove:
		return true
	default:
		return false
	}
}

// Generative reports whether the action type produces a new artifact via
// the generation engine.
func (a ActionType) Generative() bool {
	return a.IsValid() && a != ActionApprove
}

// ReviewStage is the workflow stage written onto the source Notion page so
// reviewers can see pipeline progress without querying the job API.
type ReviewStage string

// Possible review stage values
const (
	StageIdle        ReviewStage = "Idle"
	StageQueued      ReviewStage = "Queued"
	StageRunning     ReviewStage = "Running"
	StageNeedsReview ReviewStage = "Needs review"
	StageApproved    ReviewStage = "Approved"
	StageFailed      ReviewStage = "Failed"
)
