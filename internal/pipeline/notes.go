package pipeline

import (
	"context"
	"log/slog"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
)

// NotesFetcher queries the Notes / Extracts database for entries linked to
// a reading task. Notes are supplementary context, so fetch failures
// degrade to an empty result instead of failing the job.
type NotesFetcher struct {
	client    NotionAPI
	notesDBID string
	logger    *slog.Logger
}

// NewNotesFetcher creates a NotesFetcher. An empty notesDBID disables
// fetching entirely.
// If logger is nil, a default logger will be used.
func NewNotesFetcher(client NotionAPI, notesDBID string, logger *slog.Logger) *NotesFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotesFetcher{
		client:    client,
		notesDBID: notesDBID,
		logger:    logger.With(slog.String("component", "notes_fetcher")),
	}
}

// FetchNotes returns the notes whose Task relation contains the given
// page. Returns an empty slice when the notes database is not configured
// or the query fails.
func (f *NotesFetcher) FetchNotes(ctx context.Context, pageID string) []domain.NoteEntry {
	if f.notesDBID == "" {
		f.logger.DebugContext(ctx, "notes database not configured, skipping notes fetch")
		return nil
	}

	filter := map[string]any{
		"property": "Task",
		"relation": map[string]string{"contains": pageID},
	}

	pages, err := f.client.QueryDatabase(ctx, f.notesDBID, filter, nil)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to fetch linked notes",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID))
		return nil
	}

	notes := make([]domain.NoteEntry, 0, len(pages))
	for _, page := range pages {
		notes = append(notes, parseNotePage(page))
	}

	f.logger.InfoContext(ctx, "fetched linked notes",
		slog.Int("count", len(notes)),
		slog.String("page_id", pageID))
	return notes
}

func parseNotePage(page notion.Page) domain.NoteEntry {
	note := domain.NoteEntry{
		NoteID: page.ID,
		Title:  page.Title(),
	}
	if note.Title == "" {
		note.Title = "Untitled"
	}

	if page.Properties == nil {
		return note
	}

	note.NoteType = page.Properties["Type"].PlainText()
	note.Location = page.Properties["Location"].PlainText()
	note.Content = page.Properties["Content"].PlainText()
	for _, option := range page.Properties["Tags"].MultiSelect {
		note.Tags = append(note.Tags, option.Name)
	}

	return note
}
