package pipeline

import "errors"

// Terminal input errors. Retrying a job that failed with one of these
// cannot succeed until the source page itself changes, so they never
// re-queue.
var (
	// ErrEmptyContent is returned when the source page has no readable
	// content after normalization.
	ErrEmptyContent = errors.New(
		"reading task page has no content, add reading material before generating")

	// ErrContentTooLarge is returned when the prepared input exceeds the
	// model budget.
	ErrContentTooLarge = errors.New("content too large, break into smaller tasks")
)
