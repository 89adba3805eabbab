package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lecternhq/lectern-api/internal/config"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/generation"
	"google.golang.org/genai"
)

const (
	// maxOutputTokens caps the size of one model response.
	maxOutputTokens = 8192

	// repairErrorLimit caps how many validation errors the repair prompt
	// lists.
	repairErrorLimit = 10

	// repairOutputLimit caps how much of the invalid output the repair
	// prompt quotes back to the model.
	repairOutputLimit = 6000
)

// modelCaller makes one LLM call. It exists so tests can exercise the
// parse/validate/repair flow without the Gemini API.
type modelCaller interface {
	call(ctx context.Context, system, user string) (text string, inputTokens, outputTokens int, err error)
}

// Generator implements the generation.Generator interface using Google's
// Gemini API to produce schema-validated artifact documents.
type Generator struct {
	logger        *slog.Logger
	caller        modelCaller
	model         string
	promptVersion string
}

// NewGenerator creates a Generator backed by the Gemini API.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and prompt version
//
// Returns:
//   - A properly initialized Generator or an error if initialization fails
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger:        logger.With(slog.String("component", "gemini_generator")),
		caller:        &genaiCaller{client: client, model: cfg.ModelName},
		model:         cfg.ModelName,
		promptVersion: cfg.PromptVersion,
	}, nil
}

// Ensure Generator implements generation.Generator interface
var _ generation.Generator = (*Generator)(nil)

// Generate implements generation.Generator.Generate.
//
// It builds the system prompt from the action's template and output
// schema, calls the model once, and validates the output. On validation
// failure it makes exactly one repair call; if the repaired output still
// fails, a *generation.SchemaValidationError is returned. Token usage is
// summed across both calls.
func (g *Generator) Generate(
	ctx context.Context,
	action domain.ActionType,
	content string,
) (*generation.Result, error) {
	if content == "" {
		return nil, ErrEmptyDocument
	}

	template, err := loadPrompt(action, g.promptVersion)
	if err != nil {
		return nil, err
	}

	schemaJSON, err := generation.SchemaJSON(action)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(
		"%s\n\n---\nOUTPUT INSTRUCTIONS:\n"+
			"- Return ONLY valid JSON, no markdown fences, no explanation.\n"+
			"- The JSON must conform to this schema:\n```json\n%s\n```\n",
		template, schemaJSON,
	)

	g.logger.DebugContext(ctx, "calling model",
		slog.String("action", string(action)),
		slog.String("model", g.model),
		slog.Int("content_length", len(content)))

	raw, inTokens, outTokens, err := g.caller.call(ctx, system, content)
	if err != nil {
		return nil, err
	}

	cleaned := stripFences(raw)
	if !json.Valid([]byte(cleaned)) {
		g.logger.WarnContext(ctx, "model output is not valid JSON",
			slog.String("action", string(action)))
		return nil, generation.NewSchemaValidationError([]string{"output is not valid JSON"}, raw)
	}

	validationErrors, err := generation.ValidateOutput(action, []byte(cleaned))
	if err != nil {
		return nil, err
	}

	if len(validationErrors) == 0 {
		return &generation.Result{
			Data:          json.RawMessage(cleaned),
			InputTokens:   inTokens,
			OutputTokens:  outTokens,
			Model:         g.model,
			PromptVersion: g.promptVersion,
		}, nil
	}

	g.logger.WarnContext(ctx, "schema validation failed, attempting repair",
		slog.String("action", string(action)),
		slog.Int("error_count", len(validationErrors)))

	repaired, repairIn, repairOut, err := g.repair(ctx, action, raw, validationErrors, schemaJSON)
	inTokens += repairIn
	outTokens += repairOut
	if err != nil {
		return nil, err
	}

	if repaired == nil {
		return nil, generation.NewSchemaValidationError(validationErrors, raw)
	}

	g.logger.InfoContext(ctx, "repair succeeded", slog.String("action", string(action)))
	return &generation.Result{
		Data:          repaired,
		InputTokens:   inTokens,
		OutputTokens:  outTokens,
		Model:         g.model,
		PromptVersion: g.promptVersion,
	}, nil
}

// repair makes the single follow-up call that asks the model to fix its
// invalid output. It returns a nil document (with nil error) when the
// repaired output still fails validation, leaving the terminal error to
// the caller.
func (g *Generator) repair(
	ctx context.Context,
	action domain.ActionType,
	rawOutput string,
	validationErrors []string,
	schemaJSON string,
) (json.RawMessage, int, int, error) {
	errs := validationErrors
	if len(errs) > repairErrorLimit {
		errs = errs[:repairErrorLimit]
	}

	quoted := rawOutput
	if len(quoted) > repairOutputLimit {
		quoted = quoted[:repairOutputLimit]
	}

	var prompt strings.Builder
	prompt.WriteString("The following JSON output failed schema validation.\n\nErrors:\n")
	for _, e := range errs {
		prompt.WriteString("- " + e + "\n")
	}
	prompt.WriteString("\nOriginal output:\n" + quoted + "\n\n")
	prompt.WriteString("Schema:\n```json\n" + schemaJSON + "\n```\n\n")
	prompt.WriteString("Please fix the JSON to conform to the schema. Return ONLY the fixed JSON, no explanation.")

	raw, inTokens, outTokens, err := g.caller.call(
		ctx,
		"You are a JSON repair assistant. Return only valid JSON.",
		prompt.String(),
	)
	if err != nil {
		return nil, inTokens, outTokens, err
	}

	cleaned := stripFences(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, inTokens, outTokens, nil
	}

	remaining, err := generation.ValidateOutput(action, []byte(cleaned))
	if err != nil {
		return nil, inTokens, outTokens, err
	}
	if len(remaining) > 0 {
		g.logger.WarnContext(ctx, "repair still has errors",
			slog.Int("error_count", len(remaining)))
		return nil, inTokens, outTokens, nil
	}

	return json.RawMessage(cleaned), inTokens, outTokens, nil
}

// stripFences removes a markdown code fence wrapper from model output,
// tolerating a ```json opener and trailing fence line.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// genaiCaller is the production modelCaller backed by the Gemini API.
type genaiCaller struct {
	client *genai.Client
	model  string
}

func (c *genaiCaller) call(
	ctx context.Context,
	system, user string,
) (string, int, int, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", 0, 0, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", 0, 0, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", 0, 0, fmt.Errorf("%w: generation stopped by safety filters", generation.ErrContentBlocked)
	}

	var inTokens, outTokens int
	if resp.UsageMetadata != nil {
		inTokens = int(resp.UsageMetadata.PromptTokenCount)
		outTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return strings.TrimSpace(resp.Text()), inTokens, outTokens, nil
}
