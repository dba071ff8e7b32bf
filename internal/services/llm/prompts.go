package llm

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/resolvo/internal/models"
)

// systemInstructions maps prompt ids to the system instruction sent with
// every item of a job. A job's optional custom prompt text overrides the
// template entirely.
var systemInstructions = map[string]string{
	"solver": "You are a puzzle-solving assistant. Study the training examples, " +
		"infer the transformation rule, and apply it to the test input. " +
		"Respond with a JSON object containing \"answer\" (the predicted output grid) " +
		"and \"reasoning\" (a short explanation of the rule).",
	"explainer": "You are a puzzle analyst. Study the training examples and describe " +
		"the transformation rule in plain language. Respond with a JSON object " +
		"containing \"rule\" and \"confidence\" (0.0 to 1.0).",
	"classifier": "You are a puzzle classifier. Categorize the transformation by type " +
		"(geometry, color, counting, symmetry, composite). Respond with a JSON object " +
		"containing \"category\" and \"confidence\" (0.0 to 1.0).",
}

const defaultPromptID = "solver"

// buildSystemInstruction resolves the system instruction for a job config.
func buildSystemInstruction(config models.JobConfig) string {
	if config.CustomPrompt != "" {
		return config.CustomPrompt
	}
	if text, ok := systemInstructions[config.PromptID]; ok {
		return text
	}
	return systemInstructions[defaultPromptID]
}

// buildUserText renders one puzzle into the user message for the provider.
func buildUserText(itemID string, puzzle map[string]any) (string, error) {
	payload, err := json.MarshalIndent(puzzle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render puzzle %s: %w", itemID, err)
	}
	return fmt.Sprintf("Puzzle %s:\n\n%s", itemID, string(payload)), nil
}
