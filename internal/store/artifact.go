package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ArtifactVersion is one allocated version of a generated artifact.
type ArtifactVersion struct {
	PageID    string    `json:"page_id"`
	Action    string    `json:"action"`
	Version   int       `json:"version"`
	RunID     uuid.UUID `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactStore defines the persistence operations behind idempotent
// write-back: the page cache that maps (source page, artifact kind) to the
// Notion page holding the output, and the per-action version counters.
type ArtifactStore interface {
	// GetPageRef returns the cached Notion page ID for the given source
	// page and artifact kind. Returns ErrArtifactNotFound on a cache miss.
	GetPageRef(ctx context.Context, pageID, kind string) (string, error)

	// SetPageRef records the Notion page created for the given source page
	// and artifact kind, replacing any previous mapping.
	SetPageRef(ctx context.Context, pageID, kind, notionPageID string) error

	// LatestVersion returns the highest version number recorded for the
	// given source page and action, or 0 if none exists.
	LatestVersion(ctx context.Context, pageID, action string) (int, error)

	// CreateVersion atomically allocates the next version number for the
	// given source page and action, tied to the run that will produce it,
	// and returns it. Versions are contiguous starting at 1.
	CreateVersion(ctx context.Context, pageID, action string, runID uuid.UUID) (int, error)

	// ListVersions returns every version recorded for the given source
	// page, newest first within each action.
	ListVersions(ctx context.Context, pageID string) ([]*ArtifactVersion, error)
}
