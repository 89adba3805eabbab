package store

import (
	"context"

	"github.com/lecternhq/lectern-api/internal/domain"
)

// TreeNodeStore defines the persistence operations for the taxonomy node
// map created during tree write-back and bulk-approved later.
type TreeNodeStore interface {
	// Save records (or replaces) the mapping from a generated node to the
	// Notion page created for it, with status Draft.
	Save(ctx context.Context, pageID, nodeID, notionPageID string) error

	// ApproveAll flips every node recorded for the given source page to
	// Approved.
	ApproveAll(ctx context.Context, pageID string) error

	// ListByPage returns all node records for the given source page.
	ListByPage(ctx context.Context, pageID string) ([]*domain.TreeNodeRecord, error)
}
