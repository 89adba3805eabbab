package pipeline

import (
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
)

// Property names on the reading-task page.
const (
	propName           = "Name"
	propStatus         = "Status"
	propSourceName     = "Source Name"
	propSourceType     = "Source Type"
	propSourceURL      = "Source URL"
	propSourceCitation = "Citation"
	propAIStage        = "AI Stage"
	propRunID          = "Run ID"
	propError          = "Error"

	// Artifact locations written back onto the task page so reviewers can
	// jump to the output without searching the workspace.
	propChecklistPageID = "Checklist Page ID"
	propTreePageID      = "Tree Page ID"
	propPagesRootID     = "Gen Pages Root ID"
)

// ExtractMetadata pulls the prompt-relevant properties off a reading-task
// page. Missing properties leave their fields empty; the page is not
// required to carry any of them besides the title.
func ExtractMetadata(page *notion.Page) domain.DocumentMeta {
	meta := domain.DocumentMeta{
		Title: page.Title(),
	}

	if page.Properties == nil {
		return meta
	}

	meta.Status = page.Properties[propStatus].PlainText()
	meta.SourceName = page.Properties[propSourceName].PlainText()
	meta.SourceType = page.Properties[propSourceType].PlainText()
	meta.SourceURL = page.Properties[propSourceURL].PlainText()
	meta.SourceCitation = page.Properties[propSourceCitation].PlainText()

	return meta
}
