package gemini

import (
	"embed"
	"fmt"
	"strings"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/generation"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// normalizeVersion lowers a prompt version label to a filename suffix:
// "KM-v1.1" becomes "km_v1_1".
func normalizeVersion(version string) string {
	version = strings.ToLower(version)
	version = strings.ReplaceAll(version, "-", "_")
	version = strings.ReplaceAll(version, ".", "_")
	return version
}

// loadPrompt reads the prompt template for an action. It tries the
// configured version first, then falls back to the v1 template, so a
// version bump only needs new files for the actions it actually changes.
func loadPrompt(action domain.ActionType, version string) (string, error) {
	for _, suffix := range []string{"_" + normalizeVersion(version), "_v1"} {
		name := fmt.Sprintf("prompts/%s%s.txt", action, suffix)
		raw, err := promptFS.ReadFile(name)
		if err == nil {
			return string(raw), nil
		}
	}
	return "", fmt.Errorf("%w: %s", generation.ErrTemplateNotFound, action)
}
