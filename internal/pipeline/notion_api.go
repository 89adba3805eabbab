package pipeline

import (
	"context"

	"github.com/lecternhq/lectern-api/internal/platform/notion"
)

// NotionAPI is the slice of the workspace client the pipeline needs.
// Defining it on the consumer side keeps the pipeline testable without a
// live workspace.
type NotionAPI interface {
	// GetPage retrieves a page with its property map.
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)

	// GetBlocks fetches the full block tree under a page.
	GetBlocks(ctx context.Context, blockID string) ([]notion.Block, error)

	// CreatePage creates a page under a parent page.
	CreatePage(
		ctx context.Context,
		parentPageID, title string,
		properties map[string]notion.PropertyValue,
		icon string,
	) (*notion.Page, error)

	// CreateDatabasePage creates a row in a database.
	CreateDatabasePage(
		ctx context.Context,
		databaseID string,
		properties map[string]notion.PropertyValue,
	) (*notion.Page, error)

	// UpdatePageProperties patches properties on a page.
	UpdatePageProperties(
		ctx context.Context,
		pageID string,
		properties map[string]notion.PropertyValue,
	) (*notion.Page, error)

	// AppendBlocks appends blocks under a parent.
	AppendBlocks(ctx context.Context, parentID string, blocks []notion.Block) ([]notion.Block, error)

	// DeleteChildren removes every top-level block under a page.
	DeleteChildren(ctx context.Context, pageID string) error

	// QueryDatabase returns all pages of a database matching the filter.
	QueryDatabase(
		ctx context.Context,
		databaseID string,
		filter any,
		sorts []map[string]string,
	) ([]notion.Page, error)
}

// Ensure the concrete client satisfies the pipeline's view of it.
var _ NotionAPI = (*notion.Client)(nil)
