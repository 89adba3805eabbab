package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
	"github.com/lecternhq/lectern-api/internal/store"
)

// errorPropertyLimit caps the error text written onto the source page.
const errorPropertyLimit = 2000

// Artifact kinds used as page-cache keys.
const (
	kindChecklist = "checklist"
	kindTree      = "tree"
	kindPagesRoot = "pages_root"
	kindFlashcard = "flashcards"
)

// WriterConfig carries the workspace database IDs the writer syncs into.
type WriterConfig struct {
	// TreeNodesDBID is the Tree Nodes database. Empty disables node sync.
	TreeNodesDBID string

	// KnowledgePagesDBID is the Knowledge Pages database. Empty disables
	// the per-page index rows.
	KnowledgePagesDBID string
}

// Writer owns artifact write-back: it maintains the cached subpage per
// (source page, artifact kind), replaces the subpage's content on each
// run, and keeps the workspace databases in sync with generated output.
type Writer struct {
	client    NotionAPI
	artifacts store.ArtifactStore
	treeNodes store.TreeNodeStore
	cfg       WriterConfig
	logger    *slog.Logger
}

// NewWriter creates a Writer.
// If logger is nil, a default logger will be used.
func NewWriter(
	client NotionAPI,
	artifacts store.ArtifactStore,
	treeNodes store.TreeNodeStore,
	cfg WriterConfig,
	logger *slog.Logger,
) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		client:    client,
		artifacts: artifacts,
		treeNodes: treeNodes,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "writer")),
	}
}

// WriteChecklist replaces the checklist subpage content with the new
// version and stamps the source page for review.
func (w *Writer) WriteChecklist(
	ctx context.Context,
	pageID string,
	doc *domain.ChecklistDoc,
	runID uuid.UUID,
	version int,
) (string, error) {
	title := fmt.Sprintf("✅ Checklist v%d: %s", version, doc.TaskTitle)
	subpageID, err := w.getOrCreateSubpage(ctx, pageID, kindChecklist, title, "✅")
	if err != nil {
		return "", err
	}

	if err := w.client.DeleteChildren(ctx, subpageID); err != nil {
		return "", fmt.Errorf("failed to clear checklist page: %w", err)
	}

	blocks := RenderChecklist(doc)
	if _, err := w.client.AppendBlocks(ctx, subpageID, blocks); err != nil {
		return "", fmt.Errorf("failed to write checklist blocks: %w", err)
	}

	_, err = w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage:         notion.SelectProperty(string(domain.StageNeedsReview)),
		propRunID:           notion.RichTextProperty(runID.String()),
		propChecklistPageID: notion.RichTextProperty(subpageID),
	})
	if err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "checklist written",
		slog.String("page_id", pageID),
		slog.String("subpage_id", subpageID),
		slog.Int("version", version),
		slog.Int("blocks", len(blocks)))
	return subpageID, nil
}

// WriteTree replaces the tree subpage content and syncs the nodes into
// the Tree Nodes database as Draft records.
func (w *Writer) WriteTree(
	ctx context.Context,
	pageID string,
	doc *domain.TreeDoc,
	runID uuid.UUID,
	version int,
) (string, error) {
	title := fmt.Sprintf("\U0001f333 Tree v%d: %s", version, doc.Scope)
	subpageID, err := w.getOrCreateSubpage(ctx, pageID, kindTree, title, "\U0001f333")
	if err != nil {
		return "", err
	}

	if err := w.client.DeleteChildren(ctx, subpageID); err != nil {
		return "", fmt.Errorf("failed to clear tree page: %w", err)
	}

	blocks := RenderTree(doc)
	if _, err := w.client.AppendBlocks(ctx, subpageID, blocks); err != nil {
		return "", fmt.Errorf("failed to write tree blocks: %w", err)
	}

	if err := w.syncTreeNodes(ctx, pageID, doc); err != nil {
		return "", err
	}

	_, err = w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage:    notion.SelectProperty(string(domain.StageNeedsReview)),
		propRunID:      notion.RichTextProperty(runID.String()),
		propTreePageID: notion.RichTextProperty(subpageID),
	})
	if err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "tree written",
		slog.String("page_id", pageID),
		slog.String("subpage_id", subpageID),
		slog.Int("version", version),
		slog.Int("nodes", len(doc.Nodes)))
	return subpageID, nil
}

// syncTreeNodes creates a row in the Tree Nodes database per node. It
// runs two passes: the first creates every node so all page IDs are
// known, the second wires the Parent relations.
func (w *Writer) syncTreeNodes(ctx context.Context, pageID string, doc *domain.TreeDoc) error {
	if w.cfg.TreeNodesDBID == "" {
		w.logger.DebugContext(ctx, "tree nodes database not configured, skipping sync")
		return nil
	}

	nodePages := make(map[string]string, len(doc.Nodes))

	for _, node := range doc.Nodes {
		page, err := w.client.CreateDatabasePage(ctx, w.cfg.TreeNodesDBID, map[string]notion.PropertyValue{
			"Name":     notion.TitleProperty(node.Title),
			"Summary":  notion.RichTextProperty(node.Summary),
			"Keywords": notion.MultiSelectProperty(node.Keywords...),
			"Status":   notion.SelectProperty(domain.TreeNodeDraft),
			"Scope":    notion.RelationProperty(pageID),
		})
		if err != nil {
			return fmt.Errorf("failed to create tree node %s: %w", node.NodeID, err)
		}

		nodePages[node.NodeID] = page.ID
		if err := w.treeNodes.Save(ctx, pageID, node.NodeID, page.ID); err != nil {
			return err
		}
	}

	for _, node := range doc.Nodes {
		if node.ParentID == nil {
			continue
		}
		parentPageID, ok := nodePages[*node.ParentID]
		if !ok {
			continue
		}

		_, err := w.client.UpdatePageProperties(ctx, nodePages[node.NodeID], map[string]notion.PropertyValue{
			"Parent": notion.RelationProperty(parentPageID),
		})
		if err != nil {
			return fmt.Errorf("failed to set parent of tree node %s: %w", node.NodeID, err)
		}
	}

	w.logger.InfoContext(ctx, "tree nodes synced",
		slog.String("page_id", pageID),
		slog.Int("count", len(doc.Nodes)))
	return nil
}

// WritePages creates a child page per generated knowledge page under a
// versioned root subpage, and indexes each one in the Knowledge Pages
// database when configured.
func (w *Writer) WritePages(
	ctx context.Context,
	pageID string,
	doc *domain.PagesDoc,
	runID uuid.UUID,
	version int,
) (string, error) {
	rootTitle := fmt.Sprintf("\U0001f4da Generated Pages v%d", version)
	rootID, err := w.getOrCreateSubpage(ctx, pageID, kindPagesRoot, rootTitle, "\U0001f4da")
	if err != nil {
		return "", err
	}

	for i := range doc.Pages {
		page := &doc.Pages[i]
		child, err := w.client.CreatePage(ctx, rootID, page.Title, nil, "\U0001f4c4")
		if err != nil {
			return "", fmt.Errorf("failed to create knowledge page %q: %w", page.Title, err)
		}

		if _, err := w.client.AppendBlocks(ctx, child.ID, RenderKnowledgePage(page)); err != nil {
			return "", fmt.Errorf("failed to write knowledge page %q: %w", page.Title, err)
		}

		if w.cfg.KnowledgePagesDBID != "" {
			_, err := w.client.CreateDatabasePage(ctx, w.cfg.KnowledgePagesDBID, map[string]notion.PropertyValue{
				"Name":     notion.TitleProperty(page.Title),
				"Task":     notion.RelationProperty(pageID),
				"Status":   notion.SelectProperty(string(domain.StageNeedsReview)),
				"Version":  notion.NumberProperty(float64(version)),
				"Page ID":  notion.RichTextProperty(child.ID),
				"Template": notion.SelectProperty(page.Template),
			})
			if err != nil {
				return "", fmt.Errorf("failed to index knowledge page %q: %w", page.Title, err)
			}
		}
	}

	_, err = w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage:     notion.SelectProperty(string(domain.StageNeedsReview)),
		propRunID:       notion.RichTextProperty(runID.String()),
		propPagesRootID: notion.RichTextProperty(rootID),
	})
	if err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "knowledge pages written",
		slog.String("page_id", pageID),
		slog.String("root_id", rootID),
		slog.Int("version", version),
		slog.Int("pages", len(doc.Pages)))
	return rootID, nil
}

// WriteFlashcards replaces the flashcards subpage with the rendered
// cards plus a CSV export code block.
func (w *Writer) WriteFlashcards(
	ctx context.Context,
	pageID string,
	doc *domain.FlashcardsDoc,
	runID uuid.UUID,
	version int,
) (string, error) {
	title := fmt.Sprintf("\U0001f3b4 Flashcards v%d (%d cards)", version, doc.CardCount())
	subpageID, err := w.getOrCreateSubpage(ctx, pageID, kindFlashcard, title, "\U0001f3b4")
	if err != nil {
		return "", err
	}

	if err := w.client.DeleteChildren(ctx, subpageID); err != nil {
		return "", fmt.Errorf("failed to clear flashcards page: %w", err)
	}

	blocks := RenderFlashcards(doc)

	csvContent := notion.Truncate(RenderFlashcardsCSV(doc), 2000)
	blocks = append(blocks,
		heading2Block("\U0001f4e5 Anki/Quizlet CSV Export"),
		grayParagraphBlock("Copy the CSV below and import into Anki or Quizlet:"),
		codeBlock(csvContent, "csv"),
	)

	if _, err := w.client.AppendBlocks(ctx, subpageID, blocks); err != nil {
		return "", fmt.Errorf("failed to write flashcard blocks: %w", err)
	}

	_, err = w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage: notion.SelectProperty(string(domain.StageNeedsReview)),
		propRunID:   notion.RichTextProperty(runID.String()),
	})
	if err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "flashcards written",
		slog.String("page_id", pageID),
		slog.String("subpage_id", subpageID),
		slog.Int("version", version),
		slog.Int("cards", doc.CardCount()))
	return subpageID, nil
}

// Approve cascades approval: local tree node records, their workspace
// rows, the indexed knowledge pages, and finally the source page itself.
// Per-node workspace failures are logged and skipped so a single stale
// row cannot block the cascade.
func (w *Writer) Approve(ctx context.Context, pageID string, runID uuid.UUID) error {
	if err := w.treeNodes.ApproveAll(ctx, pageID); err != nil {
		return err
	}

	records, err := w.treeNodes.ListByPage(ctx, pageID)
	if err != nil {
		return err
	}
	for _, record := range records {
		_, err := w.client.UpdatePageProperties(ctx, record.NotionPageID, map[string]notion.PropertyValue{
			"Status": notion.SelectProperty(domain.TreeNodeApproved),
		})
		if err != nil {
			w.logger.WarnContext(ctx, "failed to approve tree node",
				slog.String("node_id", record.NodeID),
				slog.String("error", err.Error()))
		}
	}

	if w.cfg.KnowledgePagesDBID != "" {
		filter := map[string]any{
			"property": "Task",
			"relation": map[string]string{"contains": pageID},
		}
		pages, err := w.client.QueryDatabase(ctx, w.cfg.KnowledgePagesDBID, filter, nil)
		if err != nil {
			return err
		}
		for _, page := range pages {
			_, err := w.client.UpdatePageProperties(ctx, page.ID, map[string]notion.PropertyValue{
				"Status": notion.SelectProperty(string(domain.StageApproved)),
			})
			if err != nil {
				w.logger.WarnContext(ctx, "failed to approve knowledge page",
					slog.String("knowledge_page_id", page.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	_, err = w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage: notion.SelectProperty(string(domain.StageApproved)),
		propStatus:  notion.SelectProperty("Synthesizing"),
		propRunID:   notion.RichTextProperty(runID.String()),
	})
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "page approved",
		slog.String("page_id", pageID),
		slog.Int("tree_nodes", len(records)))
	return nil
}

// WriteError stamps the failure onto the source page so the reviewer sees
// it without opening the dashboard. Write failures are logged, not
// returned: the job outcome is already decided by this point.
func (w *Writer) WriteError(ctx context.Context, pageID, errorMsg string) {
	errorMsg = notion.Truncate(errorMsg, errorPropertyLimit)

	_, err := w.client.UpdatePageProperties(ctx, pageID, map[string]notion.PropertyValue{
		propAIStage: notion.SelectProperty(string(domain.StageFailed)),
		propError:   notion.RichTextProperty(errorMsg),
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to write error to workspace",
			slog.String("page_id", pageID),
			slog.String("error", err.Error()))
	}
}

// getOrCreateSubpage returns the cached artifact subpage for the given
// kind, creating it on first use. On reuse the title is refreshed to
// show the new version; a stale cache entry whose page is gone falls
// back to creating a fresh page.
func (w *Writer) getOrCreateSubpage(
	ctx context.Context,
	pageID, kind, title, icon string,
) (string, error) {
	cached, err := w.artifacts.GetPageRef(ctx, pageID, kind)
	if err != nil && !errors.Is(err, store.ErrArtifactNotFound) {
		return "", err
	}

	if cached != "" {
		_, err := w.client.UpdatePageProperties(ctx, cached, map[string]notion.PropertyValue{
			"title": notion.TitleProperty(title),
		})
		if err == nil {
			return cached, nil
		}
		if !notion.IsNotFound(err) {
			w.logger.WarnContext(ctx, "failed to refresh subpage title",
				slog.String("subpage_id", cached),
				slog.String("error", err.Error()))
			return cached, nil
		}
		w.logger.WarnContext(ctx, "cached subpage is gone, recreating",
			slog.String("subpage_id", cached),
			slog.String("kind", kind))
	}

	page, err := w.client.CreatePage(ctx, pageID, title, nil, icon)
	if err != nil {
		return "", fmt.Errorf("failed to create %s subpage: %w", kind, err)
	}

	if err := w.artifacts.SetPageRef(ctx, pageID, kind, page.ID); err != nil {
		return "", err
	}
	return page.ID, nil
}
