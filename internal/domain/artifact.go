package domain

// The artifact documents below mirror the JSON Schemas the generation
// engine validates against. They are decoded from validated output, so the
// writers can rely on required fields being present.

// ChecklistDoc is the validated output of a checklist generation.
type ChecklistDoc struct {
	TaskTitle string             `json:"task_title"`
	Checklist []ChecklistSection `json:"checklist"`
}

// ChecklistSection groups checklist items under a heading.
type ChecklistSection struct {
	Section string          `json:"section"`
	Items   []ChecklistItem `json:"items"`
}

// ChecklistItem is a single to-do entry in a generated checklist.
type ChecklistItem struct {
	Text               string   `json:"text"`
	Type               string   `json:"type"`
	Difficulty         int      `json:"difficulty,omitempty"`
	EstimatedMinutes   int      `json:"estimated_minutes,omitempty"`
	DependsOn          []string `json:"depends_on,omitempty"`
	AcceptanceCriteria string   `json:"acceptance_criteria,omitempty"`
}

// TreeDoc is the validated output of a taxonomy tree generation.
type TreeDoc struct {
	Scope string     `json:"scope"`
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one node of a generated taxonomy. ParentID is nil for roots
// and references another node's NodeID otherwise.
type TreeNode struct {
	NodeID        string   `json:"node_id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	ParentID      *string  `json:"parent_id,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	SourceAnchors []string `json:"source_anchors,omitempty"`
}

// PagesDoc is the validated output of a knowledge-pages generation.
type PagesDoc struct {
	Pages []KnowledgePage `json:"pages"`
}

// KnowledgePage is one generated study page with its sections.
type KnowledgePage struct {
	Title           string        `json:"title"`
	NodeID          *string       `json:"node_id,omitempty"`
	Template        string        `json:"template"`
	Sections        []PageSection `json:"sections"`
	ReviewQuestions []string      `json:"review_questions,omitempty"`
	LinksTo         []string      `json:"links_to,omitempty"`
}

// PageSection is a heading plus markdown body within a knowledge page.
type PageSection struct {
	Heading         string `json:"heading"`
	ContentMarkdown string `json:"content_markdown"`
}

// FlashcardsDoc is the validated output of a flashcards generation.
type FlashcardsDoc struct {
	Decks []Deck `json:"decks"`
}

// Deck is a named group of flashcards.
type Deck struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Cards       []Flashcard `json:"cards"`
}

// Flashcard is a single front/back card.
type Flashcard struct {
	Front      string   `json:"front"`
	Back       string   `json:"back"`
	CardType   string   `json:"card_type"`
	Difficulty int      `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Context    string   `json:"context,omitempty"`
	SourceRef  string   `json:"source_ref,omitempty"`
}

// CardCount returns the total number of cards across all decks.
func (d *FlashcardsDoc) CardCount() int {
	total := 0
	for _, deck := range d.Decks {
		total += len(deck.Cards)
	}
	return total
}
