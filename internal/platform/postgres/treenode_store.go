package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/logger"
	"github.com/lecternhq/lectern-api/internal/store"
)

// PostgresTreeNodeStore implements the store.TreeNodeStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTreeNodeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTreeNodeStore creates a new PostgreSQL implementation of the TreeNodeStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTreeNodeStore(db store.DBTX, logger *slog.Logger) *PostgresTreeNodeStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTreeNodeStore{
		db:     db,
		logger: logger.With(slog.String("component", "treenode_store")),
	}
}

// Ensure PostgresTreeNodeStore implements store.TreeNodeStore interface
var _ store.TreeNodeStore = (*PostgresTreeNodeStore)(nil)

// Save implements store.TreeNodeStore.Save
// It records (or replaces) the mapping from a generated node to the
// Notion page created for it. Re-running a tree job for the same page
// replaces the node's Notion reference and resets it to Draft.
func (s *PostgresTreeNodeStore) Save(ctx context.Context, pageID, nodeID, notionPageID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tree_nodes (page_id, node_id, notion_page_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (page_id, node_id)
		DO UPDATE SET notion_page_id = EXCLUDED.notion_page_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		pageID,
		nodeID,
		notionPageID,
		domain.TreeNodeDraft,
		time.Now().UTC(),
	)

	if err != nil {
		log.Error("failed to save tree node",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID),
			slog.String("node_id", nodeID))
		return MapError(err)
	}

	return nil
}

// ApproveAll implements store.TreeNodeStore.ApproveAll
// It flips every node recorded for the given source page to Approved.
// Approving a page with no recorded nodes is not an error.
func (s *PostgresTreeNodeStore) ApproveAll(ctx context.Context, pageID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tree_nodes
		SET status = $2, updated_at = $3
		WHERE page_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, pageID, domain.TreeNodeApproved, time.Now().UTC())
	if err != nil {
		log.Error("failed to approve tree nodes",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil {
		log.Info("tree nodes approved",
			slog.String("page_id", pageID),
			slog.Int64("count", rowsAffected))
	}

	return nil
}

// ListByPage implements store.TreeNodeStore.ListByPage
// It returns all node records for the given source page.
func (s *PostgresTreeNodeStore) ListByPage(
	ctx context.Context,
	pageID string,
) ([]*domain.TreeNodeRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT page_id, node_id, notion_page_id, status
		FROM tree_nodes
		WHERE page_id = $1
		ORDER BY node_id
	`
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		log.Error("failed to list tree nodes",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TreeNodeRecord
	for rows.Next() {
		var rec domain.TreeNodeRecord
		if err := rows.Scan(&rec.PageID, &rec.NodeID, &rec.NotionPageID, &rec.Status); err != nil {
			log.Error("failed to scan tree node row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}
