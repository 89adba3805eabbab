package generation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// compiledSchemas maps each generative action to its compiled output
// schema. Compilation happens once at init; a malformed embedded schema
// is a programming error.
var compiledSchemas = map[domain.ActionType]*jsonschema.Schema{}

// rawSchemas holds the embedded schema documents verbatim, for inclusion
// in prompts.
var rawSchemas = map[domain.ActionType]string{}

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for _, action := range domain.GenerativeActions {
		name := fmt.Sprintf("schemas/%s.json", action)
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			panic(fmt.Sprintf("missing embedded schema for %s: %v", action, err))
		}

		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("invalid embedded schema for %s: %v", action, err))
		}
		compiledSchemas[action] = compiler.MustCompile(name)
		rawSchemas[action] = string(raw)
	}
}

// SchemaJSON returns the raw JSON schema document for the given action,
// as embedded. Returns ErrNoSchema for non-generative actions.
func SchemaJSON(action domain.ActionType) (string, error) {
	raw, ok := rawSchemas[action]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSchema, action)
	}
	return raw, nil
}

// ValidateOutput checks a JSON document against the action's output
// schema and returns a list of human-readable validation errors, one per
// failing location. An empty list means the document is valid.
func ValidateOutput(action domain.ActionType, data []byte) ([]string, error) {
	schema, ok := compiledSchemas[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSchema, action)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("invalid JSON: %v", err)}, nil
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return []string{err.Error()}, nil
	}
	return flattenValidationErrors(validationErr), nil
}

// flattenValidationErrors collects the leaf causes of a validation error
// tree as "location: message" strings.
func flattenValidationErrors(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "$"
		}
		return []string{fmt.Sprintf("%s: %s", location, err.Message)}
	}

	var messages []string
	for _, cause := range err.Causes {
		messages = append(messages, flattenValidationErrors(cause)...)
	}
	return messages
}
