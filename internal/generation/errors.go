package generation

import (
	"errors"
	"fmt"
	"strings"
)

// rawSnapshotLimit caps how much raw model output a SchemaValidationError
// carries.
const rawSnapshotLimit = 500

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when artifact generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate artifact from document")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during artifact generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrNoSchema is returned when an action type has no output schema,
	// which means it should never reach the generator.
	ErrNoSchema = errors.New("no output schema for action type")

	// ErrTemplateNotFound is returned when no prompt template exists for
	// an action type at any known version.
	ErrTemplateNotFound = errors.New("no prompt template found for action type")
)

// SchemaValidationError is returned when the model output still fails
// schema validation after the single repair attempt. It is a terminal
// failure: retrying the same input is not expected to help.
type SchemaValidationError struct {
	// Errors lists the validation failures of the final output.
	Errors []string

	// RawOutput holds the beginning of the raw model output for
	// diagnostics, truncated to rawSnapshotLimit.
	RawOutput string
}

// NewSchemaValidationError builds a SchemaValidationError, truncating the
// raw output snapshot.
func NewSchemaValidationError(validationErrors []string, rawOutput string) *SchemaValidationError {
	if len(rawOutput) > rawSnapshotLimit {
		rawOutput = rawOutput[:rawSnapshotLimit]
	}
	return &SchemaValidationError{
		Errors:    validationErrors,
		RawOutput: rawOutput,
	}
}

// Error implements the error interface for SchemaValidationError.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf(
		"LLM output failed schema validation after repair attempt: %s. Raw output (truncated): %s",
		strings.Join(e.Errors, "; "),
		e.RawOutput,
	)
}
