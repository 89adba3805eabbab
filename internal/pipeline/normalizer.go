package pipeline

import (
	"fmt"
	"strings"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
)

// NormalizeBlocks flattens a block tree into markdown suitable for the
// generation prompt. Structural blocks with no text content (columns,
// breadcrumbs) and unsupported block types are dropped.
func NormalizeBlocks(blocks []notion.Block) string {
	var lines []string
	normalizeInto(blocks, 0, &lines)
	return strings.Join(lines, "\n")
}

func normalizeInto(blocks []notion.Block, depth int, lines *[]string) {
	for _, block := range blocks {
		if line, ok := blockToMarkdown(block, depth); ok {
			*lines = append(*lines, line)
		}
		if len(block.Children) > 0 {
			normalizeInto(block.Children, depth+1, lines)
		}
	}
}

func blockToMarkdown(block notion.Block, depth int) (string, bool) {
	indent := strings.Repeat("  ", depth)

	switch block.Type {
	case "heading_1":
		return "# " + flattenRichText(block.Heading1), true
	case "heading_2":
		return "## " + flattenRichText(block.Heading2), true
	case "heading_3":
		return "### " + flattenRichText(block.Heading3), true
	case "paragraph":
		text := flattenRichText(block.Paragraph)
		if text == "" {
			return "", true
		}
		return indent + text, true
	case "bulleted_list_item":
		return indent + "- " + flattenRichText(block.BulletedListItem), true
	case "numbered_list_item":
		return indent + "1. " + flattenRichText(block.NumberedListItem), true
	case "to_do":
		checked := " "
		var text string
		if block.ToDo != nil {
			if block.ToDo.Checked {
				checked = "x"
			}
			text = renderSpans(block.ToDo.RichText)
		}
		return fmt.Sprintf("%s- [%s] %s", indent, checked, text), true
	case "quote":
		text := flattenRichText(block.Quote)
		quoted := make([]string, 0, 1)
		for _, line := range strings.Split(text, "\n") {
			quoted = append(quoted, indent+"> "+line)
		}
		return strings.Join(quoted, "\n"), true
	case "code":
		var lang, text string
		if block.Code != nil {
			lang = block.Code.Language
			text = renderSpans(block.Code.RichText)
		}
		return fmt.Sprintf("%s```%s\n%s%s\n%s```", indent, lang, indent, text, indent), true
	case "callout":
		icon := "\U0001f4a1"
		var text string
		if block.Callout != nil {
			if block.Callout.Icon != nil && block.Callout.Icon.Emoji != "" {
				icon = block.Callout.Icon.Emoji
			}
			text = renderSpans(block.Callout.RichText)
		}
		return fmt.Sprintf("%s> %s %s", indent, icon, text), true
	case "divider":
		return indent + "---", true
	case "toggle":
		return fmt.Sprintf("%s## %s (collapsed)", indent, flattenRichText(block.Toggle)), true
	case "child_page":
		title := "untitled"
		if block.ChildPage != nil && block.ChildPage.Title != "" {
			title = block.ChildPage.Title
		}
		return fmt.Sprintf("%s[subpage: %s]", indent, title), true
	case "child_database":
		title := "untitled"
		if block.ChildDatabase != nil && block.ChildDatabase.Title != "" {
			title = block.ChildDatabase.Title
		}
		return fmt.Sprintf("%s[database: %s]", indent, title), true
	case "image":
		label := "untitled"
		if block.Image != nil {
			if caption := renderSpans(block.Image.Caption); caption != "" {
				label = caption
			} else if url := block.Image.URL(); url != "" {
				label = url
			}
		}
		return fmt.Sprintf("%s[image: %s]", indent, label), true
	case "file", "pdf":
		payload := block.File
		if block.Type == "pdf" {
			payload = block.PDF
		}
		url := "attachment"
		if payload != nil && payload.URL() != "" {
			url = payload.URL()
		}
		return fmt.Sprintf("%s[file: %s]", indent, url), true
	case "embed", "bookmark":
		payload := block.Embed
		if block.Type == "bookmark" {
			payload = block.Bookmark
		}
		var url string
		if payload != nil {
			url = payload.URL
		}
		return fmt.Sprintf("%s[embed: %s]", indent, url), true
	case "table_of_contents", "breadcrumb", "column_list", "column":
		return "", false
	default:
		// Unrecognized block types still surface their text content.
		if block.Fallback != nil {
			if text := renderSpans(block.Fallback.RichText); text != "" {
				return indent + text, true
			}
		}
		return "", false
	}
}

func flattenRichText(payload *notion.RichTextBlock) string {
	if payload == nil {
		return ""
	}
	return renderSpans(payload.RichText)
}

// renderSpans converts rich text spans to markdown, honoring the
// annotation flags and links.
func renderSpans(spans []notion.RichText) string {
	var out strings.Builder
	for _, span := range spans {
		text := span.PlainText
		if text == "" && span.Text != nil {
			text = span.Text.Content
		}

		code := false
		if a := span.Annotations; a != nil {
			code = a.Code
			if a.Code {
				text = "`" + text + "`"
			}
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
		}

		href := span.Href
		if href == "" && span.Text != nil && span.Text.Link != nil {
			href = span.Text.Link.URL
		}
		if href != "" && !code {
			text = fmt.Sprintf("[%s](%s)", text, href)
		}

		if span.Mention != nil {
			switch span.Mention.Type {
			case "page":
				text = "[[" + text + "]]"
			case "user":
				text = "@" + text
			}
		}

		out.WriteString(text)
	}
	return out.String()
}

// BuildPromptInput assembles the full generation input: a front-matter
// style header from the page metadata, the normalized markdown, and the
// linked notes section when any notes exist.
func BuildPromptInput(markdown string, meta domain.DocumentMeta, notes []domain.NoteEntry) string {
	header := []string{"---", "title: " + meta.Title}
	if meta.SourceName != "" {
		sourceType := meta.SourceType
		if sourceType == "" {
			sourceType = "unknown"
		}
		header = append(header, fmt.Sprintf("source: %s (%s)", meta.SourceName, sourceType))
	}
	if meta.SourceCitation != "" {
		header = append(header, "citation: "+meta.SourceCitation)
	}
	if meta.SourceURL != "" {
		header = append(header, "source_url: "+meta.SourceURL)
	}
	if meta.Status != "" {
		header = append(header, "task_status: "+meta.Status)
	}
	header = append(header, "---\n")

	parts := []string{strings.Join(header, "\n"), markdown}

	if len(notes) > 0 {
		parts = append(parts, fmt.Sprintf("\n\n---\n## Linked Notes (%d entries)\n", len(notes)))
		for i, note := range notes {
			parts = append(parts, fmt.Sprintf("### Note %d: %s", i+1, note.Title))
			if note.NoteType != "" {
				parts = append(parts, "**Type:** "+note.NoteType)
			}
			if note.Location != "" {
				parts = append(parts, "**Location:** "+note.Location)
			}
			if len(note.Tags) > 0 {
				parts = append(parts, "**Tags:** "+strings.Join(note.Tags, ", "))
			}
			parts = append(parts, "\n"+note.Content+"\n")
		}
	}

	return strings.Join(parts, "\n")
}
