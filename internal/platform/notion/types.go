package notion

import (
	"encoding/json"
	"unicode/utf8"
)

// richTextLimit is the Notion API cap on a single rich text content string.
const richTextLimit = 2000

// RichText is one span of formatted text inside a block or property.
type RichText struct {
	Type        string       `json:"type,omitempty"`
	Text        *TextContent `json:"text,omitempty"`
	Mention     *Mention     `json:"mention,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	PlainText   string       `json:"plain_text,omitempty"`
	Href        string       `json:"href,omitempty"`
}

// Mention marks a span that references a page, user, date, or database.
type Mention struct {
	Type string `json:"type"`
}

// TextContent is the literal content of a text span.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is a URL attached to a text span.
type Link struct {
	URL string `json:"url"`
}

// Annotations carry the formatting flags of a text span.
type Annotations struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

// Text builds a plain rich text span from a string.
func Text(content string) RichText {
	return RichText{Type: "text", Text: &TextContent{Content: content}}
}

// Block is one Notion content block. Exactly one of the typed payload
// fields is populated, matching Type. Children holds nested blocks fetched
// separately; it never round-trips through the API payload on reads.
type Block struct {
	Object      string `json:"object,omitempty"`
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`

	Paragraph        *RichTextBlock `json:"paragraph,omitempty"`
	Heading1         *RichTextBlock `json:"heading_1,omitempty"`
	Heading2         *RichTextBlock `json:"heading_2,omitempty"`
	Heading3         *RichTextBlock `json:"heading_3,omitempty"`
	BulletedListItem *RichTextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *RichTextBlock `json:"numbered_list_item,omitempty"`
	ToDo             *ToDoBlock     `json:"to_do,omitempty"`
	Toggle           *RichTextBlock `json:"toggle,omitempty"`
	Quote            *RichTextBlock `json:"quote,omitempty"`
	Callout          *CalloutBlock  `json:"callout,omitempty"`
	Code             *CodeBlock     `json:"code,omitempty"`
	Divider          *struct{}      `json:"divider,omitempty"`
	ChildPage        *ChildPage     `json:"child_page,omitempty"`
	ChildDatabase    *ChildDatabase `json:"child_database,omitempty"`
	Image            *FileBlock     `json:"image,omitempty"`
	File             *FileBlock     `json:"file,omitempty"`
	PDF              *FileBlock     `json:"pdf,omitempty"`
	Embed            *EmbedBlock    `json:"embed,omitempty"`
	Bookmark         *EmbedBlock    `json:"bookmark,omitempty"`

	Children []Block `json:"-"`

	// Fallback holds the rich text of a block type with no dedicated
	// payload field, captured during decode.
	Fallback *RichTextBlock `json:"-"`
}

// knownBlockTypes are the block types handled by a dedicated payload
// field, or deliberately carrying none.
var knownBlockTypes = map[string]bool{
	"paragraph": true, "heading_1": true, "heading_2": true,
	"heading_3": true, "bulleted_list_item": true,
	"numbered_list_item": true, "to_do": true, "toggle": true,
	"quote": true, "callout": true, "code": true, "divider": true,
	"child_page": true, "child_database": true, "image": true,
	"file": true, "pdf": true, "embed": true, "bookmark": true,
	"table_of_contents": true, "breadcrumb": true,
	"column_list": true, "column": true,
}

// UnmarshalJSON decodes the typed payload fields. For block types with
// no dedicated field it captures any rich text the payload carries into
// Fallback, so readers can still surface the text content.
func (b *Block) UnmarshalJSON(data []byte) error {
	type blockAlias Block
	var a blockAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*b = Block(a)

	if b.Type == "" || knownBlockTypes[b.Type] {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, ok := raw[b.Type]
	if !ok {
		return nil
	}

	var fallback RichTextBlock
	if err := json.Unmarshal(payload, &fallback); err == nil && len(fallback.RichText) > 0 {
		b.Fallback = &fallback
	}
	return nil
}

// RichTextBlock is the payload shared by paragraph, heading, list item,
// toggle, and quote blocks. Children is only set when building blocks for
// writes (e.g. nested toggle content).
type RichTextBlock struct {
	RichText []RichText `json:"rich_text"`
	Children []Block    `json:"children,omitempty"`
}

// ToDoBlock is the payload of a to_do block.
type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// CalloutBlock is the payload of a callout block.
type CalloutBlock struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon,omitempty"`
}

// CodeBlock is the payload of a code block.
type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language,omitempty"`
}

// ChildPage is the payload of a child_page block.
type ChildPage struct {
	Title string `json:"title"`
}

// ChildDatabase is the payload of a child_database block.
type ChildDatabase struct {
	Title string `json:"title"`
}

// FileBlock is the payload of image, file, and pdf blocks. The asset URL
// lives under File or External depending on where it is hosted.
type FileBlock struct {
	Caption  []RichText `json:"caption,omitempty"`
	File     *Link      `json:"file,omitempty"`
	External *Link      `json:"external,omitempty"`
}

// URL returns the asset URL regardless of hosting.
func (f *FileBlock) URL() string {
	if f.File != nil {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

// EmbedBlock is the payload of embed and bookmark blocks.
type EmbedBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption,omitempty"`
}

// Icon is an emoji icon attached to a page or callout.
type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

// SelectOption is one option of a select, status, or multi_select property.
type SelectOption struct {
	Name string `json:"name"`
}

// PageRef is a reference to another page, used in relation properties.
type PageRef struct {
	ID string `json:"id"`
}

// PropertyValue is one property of a page. Exactly one typed field is
// populated, matching Type.
type PropertyValue struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`

	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Relation    []PageRef      `json:"relation,omitempty"`
	URL         string         `json:"url,omitempty"`
	Checkbox    *bool          `json:"checkbox,omitempty"`
}

// PlainText flattens the property's text content into a single string.
// It covers title, rich_text, select, status, and url properties; other
// types yield an empty string.
func (p PropertyValue) PlainText() string {
	switch {
	case len(p.Title) > 0:
		return joinPlainText(p.Title)
	case len(p.RichText) > 0:
		return joinPlainText(p.RichText)
	case p.Select != nil:
		return p.Select.Name
	case p.Status != nil:
		return p.Status.Name
	case p.URL != "":
		return p.URL
	default:
		return ""
	}
}

func joinPlainText(spans []RichText) string {
	var out string
	for _, span := range spans {
		if span.PlainText != "" {
			out += span.PlainText
		} else if span.Text != nil {
			out += span.Text.Content
		}
	}
	return out
}

// Parent identifies the container a page lives in.
type Parent struct {
	Type       string `json:"type,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

// Page is a Notion page with its property map.
type Page struct {
	Object     string                   `json:"object,omitempty"`
	ID         string                   `json:"id"`
	Parent     *Parent                  `json:"parent,omitempty"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
	URL        string                   `json:"url,omitempty"`
	Archived   bool                     `json:"archived,omitempty"`
}

// Title returns the page's title text, searching for the title property.
func (p *Page) Title() string {
	for _, prop := range p.Properties {
		if len(prop.Title) > 0 {
			return joinPlainText(prop.Title)
		}
	}
	return ""
}

// Property helpers for building page property payloads.

// TitleProperty builds a title property value.
func TitleProperty(text string) PropertyValue {
	return PropertyValue{Title: []RichText{Text(text)}}
}

// SelectProperty builds a select property value.
func SelectProperty(name string) PropertyValue {
	return PropertyValue{Select: &SelectOption{Name: name}}
}

// RichTextProperty builds a rich_text property value, truncating the
// content to the Notion per-span limit.
func RichTextProperty(text string) PropertyValue {
	return PropertyValue{RichText: []RichText{Text(Truncate(text, richTextLimit))}}
}

// Truncate cuts s to at most limit bytes, backing off to a rune boundary
// so a multi-byte character is never split.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// RelationProperty builds a relation property value from page IDs.
func RelationProperty(pageIDs ...string) PropertyValue {
	refs := make([]PageRef, 0, len(pageIDs))
	for _, id := range pageIDs {
		refs = append(refs, PageRef{ID: id})
	}
	return PropertyValue{Relation: refs}
}

// NumberProperty builds a number property value.
func NumberProperty(value float64) PropertyValue {
	return PropertyValue{Number: &value}
}

// MultiSelectProperty builds a multi_select property value.
func MultiSelectProperty(names ...string) PropertyValue {
	options := make([]SelectOption, 0, len(names))
	for _, name := range names {
		options = append(options, SelectOption{Name: name})
	}
	return PropertyValue{MultiSelect: options}
}
