package pipeline

import (
	"testing"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
	"github.com/stretchr/testify/assert"
)

func richBlock(blockType, text string) notion.Block {
	payload := &notion.RichTextBlock{RichText: []notion.RichText{notion.Text(text)}}
	block := notion.Block{Type: blockType}
	switch blockType {
	case "heading_1":
		block.Heading1 = payload
	case "heading_2":
		block.Heading2 = payload
	case "heading_3":
		block.Heading3 = payload
	case "paragraph":
		block.Paragraph = payload
	case "bulleted_list_item":
		block.BulletedListItem = payload
	case "numbered_list_item":
		block.NumberedListItem = payload
	case "quote":
		block.Quote = payload
	case "toggle":
		block.Toggle = payload
	}
	return block
}

func TestNormalizeBlocks(t *testing.T) {
	tests := []struct {
		name   string
		blocks []notion.Block
		want   string
	}{
		{
			name: "headings and paragraph",
			blocks: []notion.Block{
				richBlock("heading_1", "Heat"),
				richBlock("paragraph", "Energy in transit."),
				richBlock("heading_2", "Entropy"),
			},
			want: "# Heat\nEnergy in transit.\n## Entropy",
		},
		{
			name: "list items",
			blocks: []notion.Block{
				richBlock("bulleted_list_item", "first"),
				richBlock("numbered_list_item", "second"),
			},
			want: "- first\n1. second",
		},
		{
			name: "to-do checked and unchecked",
			blocks: []notion.Block{
				{Type: "to_do", ToDo: &notion.ToDoBlock{
					RichText: []notion.RichText{notion.Text("done")}, Checked: true}},
				{Type: "to_do", ToDo: &notion.ToDoBlock{
					RichText: []notion.RichText{notion.Text("pending")}}},
			},
			want: "- [x] done\n- [ ] pending",
		},
		{
			name: "multi-line quote",
			blocks: []notion.Block{
				richBlock("quote", "first line\nsecond line"),
			},
			want: "> first line\n> second line",
		},
		{
			name: "code fence keeps language",
			blocks: []notion.Block{
				{Type: "code", Code: &notion.CodeBlock{
					RichText: []notion.RichText{notion.Text("x := 1")},
					Language: "go"}},
			},
			want: "```go\nx := 1\n```",
		},
		{
			name: "callout with custom emoji",
			blocks: []notion.Block{
				{Type: "callout", Callout: &notion.CalloutBlock{
					RichText: []notion.RichText{notion.Text("watch out")},
					Icon:     &notion.Icon{Type: "emoji", Emoji: "⚠️"}}},
			},
			want: "> ⚠️ watch out",
		},
		{
			name: "toggle and child page",
			blocks: []notion.Block{
				richBlock("toggle", "Details"),
				{Type: "child_page", ChildPage: &notion.ChildPage{Title: "Appendix"}},
			},
			want: "## Details (collapsed)\n[subpage: Appendix]",
		},
		{
			name: "structural blocks dropped",
			blocks: []notion.Block{
				{Type: "table_of_contents"},
				{Type: "breadcrumb"},
				richBlock("paragraph", "kept"),
				{Type: "unsupported_widget"},
			},
			want: "kept",
		},
		{
			name: "media placeholders",
			blocks: []notion.Block{
				{Type: "image", Image: &notion.FileBlock{
					Caption: []notion.RichText{notion.Text("phase diagram")}}},
				{Type: "image", Image: &notion.FileBlock{
					External: &notion.Link{URL: "https://example.com/fig.png"}}},
				{Type: "pdf", PDF: &notion.FileBlock{
					File: &notion.Link{URL: "https://example.com/paper.pdf"}}},
				{Type: "file", File: &notion.FileBlock{}},
				{Type: "bookmark", Bookmark: &notion.EmbedBlock{URL: "https://example.com"}},
			},
			want: "[image: phase diagram]\n" +
				"[image: https://example.com/fig.png]\n" +
				"[file: https://example.com/paper.pdf]\n" +
				"[file: attachment]\n" +
				"[embed: https://example.com]",
		},
		{
			name: "child database placeholder",
			blocks: []notion.Block{
				{Type: "child_database", ChildDatabase: &notion.ChildDatabase{Title: "Reading Log"}},
			},
			want: "[database: Reading Log]",
		},
		{
			name: "unknown block falls back to its rich text",
			blocks: []notion.Block{
				{Type: "template", Fallback: &notion.RichTextBlock{
					RichText: []notion.RichText{notion.Text("template body")}}},
			},
			want: "template body",
		},
		{
			name: "children indent under parents",
			blocks: []notion.Block{
				{
					Type:             "bulleted_list_item",
					BulletedListItem: &notion.RichTextBlock{RichText: []notion.RichText{notion.Text("outer")}},
					Children: []notion.Block{
						richBlock("bulleted_list_item", "inner"),
					},
				},
			},
			want: "- outer\n  - inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBlocks(tt.blocks))
		})
	}
}

func TestRenderSpansAnnotations(t *testing.T) {
	spans := []notion.RichText{
		{Text: &notion.TextContent{Content: "bold"}, Annotations: &notion.Annotations{Bold: true}},
		{Text: &notion.TextContent{Content: " and "}},
		{Text: &notion.TextContent{Content: "code"}, Annotations: &notion.Annotations{Code: true}},
	}
	assert.Equal(t, "**bold** and `code`", renderSpans(spans))
}

func TestRenderSpansLinks(t *testing.T) {
	spans := []notion.RichText{
		{Text: &notion.TextContent{
			Content: "docs",
			Link:    &notion.Link{URL: "https://example.com"},
		}},
	}
	assert.Equal(t, "[docs](https://example.com)", renderSpans(spans))

	// Links are dropped on code spans, the backticks win.
	codeSpan := []notion.RichText{
		{
			Text:        &notion.TextContent{Content: "fmt.Println"},
			Annotations: &notion.Annotations{Code: true},
			Href:        "https://pkg.go.dev/fmt",
		},
	}
	assert.Equal(t, "`fmt.Println`", renderSpans(codeSpan))
}

func TestRenderSpansMentions(t *testing.T) {
	spans := []notion.RichText{
		{Type: "mention", PlainText: "Thermodynamics", Mention: &notion.Mention{Type: "page"}},
		{Text: &notion.TextContent{Content: " assigned to "}},
		{Type: "mention", PlainText: "sam", Mention: &notion.Mention{Type: "user"}},
	}
	assert.Equal(t, "[[Thermodynamics]] assigned to @sam", renderSpans(spans))

	// Date and other mention types pass through as plain text.
	dateSpan := []notion.RichText{
		{Type: "mention", PlainText: "2026-08-29", Mention: &notion.Mention{Type: "date"}},
	}
	assert.Equal(t, "2026-08-29", renderSpans(dateSpan))
}

func TestBuildPromptInputHeader(t *testing.T) {
	meta := domain.DocumentMeta{
		Title:          "Thermodynamics",
		Status:         "Reading",
		SourceName:     "Feynman Lectures",
		SourceType:     "book",
		SourceCitation: "Feynman, R. (1963)",
		SourceURL:      "https://example.com/feynman",
	}

	input := BuildPromptInput("# Heat", meta, nil)

	assert.Contains(t, input, "title: Thermodynamics")
	assert.Contains(t, input, "source: Feynman Lectures (book)")
	assert.Contains(t, input, "citation: Feynman, R. (1963)")
	assert.Contains(t, input, "source_url: https://example.com/feynman")
	assert.Contains(t, input, "task_status: Reading")
	assert.Contains(t, input, "# Heat")
	assert.NotContains(t, input, "Linked Notes")
}

func TestBuildPromptInputNotes(t *testing.T) {
	notes := []domain.NoteEntry{
		{
			Title:    "Key insight",
			NoteType: "Extract",
			Location: "p. 42",
			Content:  "Heat is not a substance.",
			Tags:     []string{"heat", "history"},
		},
		{Title: "Question", Content: "What about entropy?"},
	}

	input := BuildPromptInput("body", domain.DocumentMeta{Title: "T"}, notes)

	assert.Contains(t, input, "## Linked Notes (2 entries)")
	assert.Contains(t, input, "### Note 1: Key insight")
	assert.Contains(t, input, "**Type:** Extract")
	assert.Contains(t, input, "**Location:** p. 42")
	assert.Contains(t, input, "**Tags:** heat, history")
	assert.Contains(t, input, "Heat is not a substance.")
	assert.Contains(t, input, "### Note 2: Question")
}

func TestExtractMetadata(t *testing.T) {
	page := &notion.Page{
		ID: "page-1",
		Properties: map[string]notion.PropertyValue{
			"Name":        notion.TitleProperty("Thermodynamics"),
			"Status":      notion.SelectProperty("Reading"),
			"Source Name": notion.RichTextProperty("Feynman Lectures"),
			"Source Type": notion.SelectProperty("book"),
			"Source URL":  {URL: "https://example.com"},
			"Citation":    notion.RichTextProperty("Feynman 1963"),
		},
	}

	meta := ExtractMetadata(page)
	assert.Equal(t, "Thermodynamics", meta.Title)
	assert.Equal(t, "Reading", meta.Status)
	assert.Equal(t, "Feynman Lectures", meta.SourceName)
	assert.Equal(t, "book", meta.SourceType)
	assert.Equal(t, "https://example.com", meta.SourceURL)
	assert.Equal(t, "Feynman 1963", meta.SourceCitation)
}
