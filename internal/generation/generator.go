package generation

import (
	"context"
	"encoding/json"

	"github.com/lecternhq/lectern-api/internal/domain"
)

// Result carries the validated output of one generation, along with the
// token usage accumulated across the initial call and any repair call.
type Result struct {
	// Data is the schema-valid JSON document produced by the model.
	Data json.RawMessage

	// InputTokens and OutputTokens sum usage over every model call made
	// to produce Data, including a repair call when one was needed.
	InputTokens  int
	OutputTokens int

	// Model and PromptVersion identify what produced the output.
	Model         string
	PromptVersion string
}

// Generator defines the interface for generating structured artifacts from
// document text. This interface serves as a boundary between the pipeline
// and external AI/LLM services.
type Generator interface {
	// Generate produces a schema-valid artifact document for the given
	// action from the prepared document content. Implementations make at
	// most one repair attempt when the first output fails validation;
	// a *SchemaValidationError is returned when the repair fails too.
	Generate(ctx context.Context, action domain.ActionType, content string) (*Result, error)
}
