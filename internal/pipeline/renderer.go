package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
)

// itemTypeColors maps checklist item types to Notion text colors.
var itemTypeColors = map[string]string{
	"read":    "default",
	"extract": "blue",
	"reflect": "purple",
	"apply":   "green",
}

// difficultyEmoji maps card difficulty to a traffic-light marker.
var difficultyEmoji = map[int]string{
	1: "\U0001f7e2",
	2: "\U0001f7e1",
	3: "\U0001f7e0",
	4: "\U0001f534",
	5: "⚫",
}

// RenderChecklist converts a checklist document into Notion blocks:
// a heading per section, a colored to-do per item.
func RenderChecklist(doc *domain.ChecklistDoc) []notion.Block {
	var blocks []notion.Block
	for _, section := range doc.Checklist {
		blocks = append(blocks, heading2Block(section.Section))
		for _, item := range section.Items {
			text := item.Text
			var suffixes []string
			if item.EstimatedMinutes > 0 {
				suffixes = append(suffixes, fmt.Sprintf("(%dmin)", item.EstimatedMinutes))
			}
			if item.AcceptanceCriteria != "" {
				suffixes = append(suffixes, "→ "+item.AcceptanceCriteria)
			}
			if len(suffixes) > 0 {
				text += "  " + strings.Join(suffixes, "  ")
			}

			color := itemTypeColors[item.Type]
			if color == "" {
				color = "default"
			}
			blocks = append(blocks, toDoBlock(text, false, color))
		}
	}
	return blocks
}

// RenderTree converts a taxonomy document into Notion blocks, walking the
// tree from the roots: heading depth follows node depth, with summaries
// and keywords under each heading. Nodes with a parent_id that matches no
// node in the document are unreachable and silently dropped.
func RenderTree(doc *domain.TreeDoc) []notion.Block {
	children := make(map[string][]domain.TreeNode)
	var roots []domain.TreeNode
	for _, node := range doc.Nodes {
		if node.ParentID == nil || *node.ParentID == "" {
			roots = append(roots, node)
		} else {
			children[*node.ParentID] = append(children[*node.ParentID], node)
		}
	}

	var blocks []notion.Block
	for _, root := range roots {
		renderTreeNode(root, children, 0, &blocks)
	}
	return blocks
}

func renderTreeNode(
	node domain.TreeNode,
	children map[string][]domain.TreeNode,
	depth int,
	blocks *[]notion.Block,
) {
	switch depth {
	case 0:
		*blocks = append(*blocks, heading1Block(node.Title))
	case 1:
		*blocks = append(*blocks, heading2Block(node.Title))
	case 2:
		*blocks = append(*blocks, heading3Block(node.Title))
	default:
		*blocks = append(*blocks, bulletBlock("**"+node.Title+"**"))
	}

	if node.Summary != "" {
		*blocks = append(*blocks, paragraphBlock(node.Summary))
	}
	if len(node.Keywords) > 0 {
		*blocks = append(*blocks, grayParagraphBlock("Keywords: "+strings.Join(node.Keywords, ", ")))
	}

	for _, child := range children[node.NodeID] {
		renderTreeNode(child, children, depth+1, blocks)
	}
}

// RenderKnowledgePage converts one knowledge page into Notion blocks:
// headed sections with the markdown content expanded, review questions as
// a numbered list, and related-page links at the bottom.
func RenderKnowledgePage(page *domain.KnowledgePage) []notion.Block {
	var blocks []notion.Block
	for _, section := range page.Sections {
		blocks = append(blocks, heading2Block(section.Heading))
		blocks = append(blocks, markdownToBlocks(section.ContentMarkdown)...)
	}

	if len(page.ReviewQuestions) > 0 {
		blocks = append(blocks, heading3Block("Review Questions"))
		for _, question := range page.ReviewQuestions {
			blocks = append(blocks, numberedBlock(question))
		}
	}

	if len(page.LinksTo) > 0 {
		blocks = append(blocks, grayParagraphBlock("Related: "+strings.Join(page.LinksTo, ", ")))
	}

	return blocks
}

// RenderFlashcards converts a flashcards document into Notion blocks:
// a heading per deck, then per card a difficulty-tagged heading for the
// front and a paragraph for the back.
func RenderFlashcards(doc *domain.FlashcardsDoc) []notion.Block {
	blocks := []notion.Block{
		paragraphBlock(fmt.Sprintf(
			"\U0001f4da %d flashcards generated across %d deck(s)",
			doc.CardCount(), len(doc.Decks))),
		dividerBlock(),
	}

	for _, deck := range doc.Decks {
		blocks = append(blocks, heading2Block("\U0001f3b4 "+deck.Name))
		if deck.Description != "" {
			blocks = append(blocks, grayParagraphBlock(deck.Description))
		}

		for _, card := range deck.Cards {
			emoji := difficultyEmoji[card.Difficulty]
			if emoji == "" {
				emoji = difficultyEmoji[1]
			}
			blocks = append(blocks, heading3Block(emoji+" "+card.Front))

			back := card.Back
			if card.CardType == "cloze" {
				back = "**Cloze:** " + back
			}
			blocks = append(blocks, paragraphBlock(back))

			if card.Context != "" {
				blocks = append(blocks, grayParagraphBlock("\U0001f4d6 Context: "+card.Context))
			}
			if len(card.Tags) > 0 {
				blocks = append(blocks, grayParagraphBlock("Tags: "+strings.Join(card.Tags, ", ")))
			}
		}

		blocks = append(blocks, dividerBlock())
	}

	return blocks
}

// RenderFlashcardsCSV exports the cards as CSV for Anki or Quizlet
// import.
func RenderFlashcardsCSV(doc *domain.FlashcardsDoc) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"Front", "Back", "Tags", "Deck", "Type", "Difficulty"})
	for _, deck := range doc.Decks {
		for _, card := range deck.Cards {
			difficulty := card.Difficulty
			if difficulty == 0 {
				difficulty = 1
			}
			_ = w.Write([]string{
				card.Front,
				card.Back,
				strings.Join(card.Tags, "; "),
				deck.Name,
				card.CardType,
				strconv.Itoa(difficulty),
			})
		}
	}
	w.Flush()

	return buf.String()
}

var numberedItemRe = regexp.MustCompile(`^\d+\.\s`)

// markdownToBlocks expands a markdown string into Notion blocks. It
// handles the constructs the page templates actually produce: headings,
// quotes, bullets, numbered items, and fenced code.
func markdownToBlocks(md string) []notion.Block {
	var blocks []notion.Block
	lines := strings.Split(md, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			lang := strings.TrimSpace(strings.TrimLeft(trimmed, "`"))
			if lang == "" {
				lang = "plain text"
			}
			var codeLines []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				codeLines = append(codeLines, lines[i])
			}
			blocks = append(blocks, codeBlock(strings.Join(codeLines, "\n"), lang))
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, heading3Block(strings.TrimSpace(line[4:])))
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, heading2Block(strings.TrimSpace(line[3:])))
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, heading1Block(strings.TrimSpace(line[2:])))
		case strings.HasPrefix(line, "> "):
			blocks = append(blocks, quoteBlock(strings.TrimSpace(line[2:])))
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			blocks = append(blocks, bulletBlock(strings.TrimSpace(line[2:])))
		case numberedItemRe.MatchString(line):
			blocks = append(blocks, numberedBlock(strings.TrimSpace(numberedItemRe.ReplaceAllString(line, ""))))
		case trimmed != "":
			blocks = append(blocks, paragraphBlock(trimmed))
		}
	}

	return blocks
}

// chunkedRichText splits text into spans within the per-span content
// limit, applying the color to every span.
func chunkedRichText(text, color string) []notion.RichText {
	if text == "" {
		text = " "
	}

	var spans []notion.RichText
	for len(text) > 0 {
		chunk := notion.Truncate(text, 2000)
		text = text[len(chunk):]

		span := notion.Text(chunk)
		if color != "" && color != "default" {
			span.Annotations = &notion.Annotations{Color: color}
		}
		spans = append(spans, span)
	}
	return spans
}

func heading1Block(text string) notion.Block {
	return notion.Block{Type: "heading_1", Heading1: &notion.RichTextBlock{RichText: chunkedRichText(text, "")}}
}

func heading2Block(text string) notion.Block {
	return notion.Block{Type: "heading_2", Heading2: &notion.RichTextBlock{RichText: chunkedRichText(text, "")}}
}

func heading3Block(text string) notion.Block {
	return notion.Block{Type: "heading_3", Heading3: &notion.RichTextBlock{RichText: chunkedRichText(text, "")}}
}

func paragraphBlock(text string) notion.Block {
	return notion.Block{Type: "paragraph", Paragraph: &notion.RichTextBlock{RichText: chunkedRichText(text, "")}}
}

func grayParagraphBlock(text string) notion.Block {
	return notion.Block{Type: "paragraph", Paragraph: &notion.RichTextBlock{RichText: chunkedRichText(text, "gray")}}
}

func bulletBlock(text string) notion.Block {
	return notion.Block{
		Type:             "bulleted_list_item",
		BulletedListItem: &notion.RichTextBlock{RichText: chunkedRichText(text, "")},
	}
}

func numberedBlock(text string) notion.Block {
	return notion.Block{
		Type:             "numbered_list_item",
		NumberedListItem: &notion.RichTextBlock{RichText: chunkedRichText(text, "")},
	}
}

func toDoBlock(text string, checked bool, color string) notion.Block {
	return notion.Block{
		Type: "to_do",
		ToDo: &notion.ToDoBlock{RichText: chunkedRichText(text, color), Checked: checked},
	}
}

func quoteBlock(text string) notion.Block {
	return notion.Block{Type: "quote", Quote: &notion.RichTextBlock{RichText: chunkedRichText(text, "")}}
}

func codeBlock(text, language string) notion.Block {
	return notion.Block{
		Type: "code",
		Code: &notion.CodeBlock{RichText: chunkedRichText(text, ""), Language: language},
	}
}

func dividerBlock() notion.Block {
	return notion.Block{Type: "divider", Divider: &struct{}{}}
}
