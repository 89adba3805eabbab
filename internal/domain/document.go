package domain

// DocumentMeta holds the properties extracted from a reading-task page
// that feed the generation prompt header and the write-back bookkeeping.
type DocumentMeta struct {
	Title          string
	Status         string
	SourceName     string
	SourceType     string
	SourceURL      string
	SourceCitation string
}

// NoteEntry is a single note or extract from the notes database, linked to
// a reading task and injected into the generation input as extra context.
type NoteEntry struct {
	NoteID   string
	Title    string
	NoteType string
	Location string
	Content  string
	Tags     []string
}

// TreeNodeRecord maps a generated taxonomy node to the Notion page created
// for it, with its review status. Created as Draft during tree write-back
// and flipped to Approved by the approve action.
type TreeNodeRecord struct {
	PageID       string
	NodeID       string
	NotionPageID string
	Status       string
}

// Tree node record statuses
const (
	TreeNodeDraft    = "Draft"
	TreeNodeApproved = "Approved"
)
