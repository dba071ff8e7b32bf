// -----------------------------------------------------------------------
// Puzzle Analyzer - sends one puzzle to a provider and parses the answer
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

// puzzleLoader loads the raw puzzle payload for a work item.
// *datasets.Catalog satisfies this.
type puzzleLoader interface {
	LoadPuzzle(dataset, itemID string) (map[string]any, error)
}

// Analyzer implements interfaces.Analyzer on top of the provider factory.
type Analyzer struct {
	factory *ProviderFactory
	loader  puzzleLoader
	logger  arbor.ILogger
}

// NewAnalyzer creates a puzzle analyzer backed by the provider factory
func NewAnalyzer(factory *ProviderFactory, loader puzzleLoader, logger arbor.ILogger) interfaces.Analyzer {
	return &Analyzer{
		factory: factory,
		loader:  loader,
		logger:  logger,
	}
}

// Analyze loads the puzzle, builds the prompt from the job config, calls the
// provider, and extracts the structured answer from the response text.
func (a *Analyzer) Analyze(ctx context.Context, item models.WorkItem, config models.JobConfig) (*models.AnalysisResult, error) {
	puzzle, err := a.loader.LoadPuzzle(config.Dataset, item.ID)
	if err != nil {
		return nil, err
	}

	userText, err := buildUserText(item.ID, puzzle)
	if err != nil {
		return nil, err
	}

	resp, err := a.factory.GenerateContent(ctx, &ContentRequest{
		Model:             config.Model,
		SystemInstruction: buildSystemInstruction(config),
		UserText:          userText,
		Temperature:       config.Temperature,
		ThinkingLevel:     config.ReasoningEffort,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis of item %s failed: %w", item.ID, err)
	}

	answer, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("unparseable response for item %s: %w", item.ID, err)
	}

	result := &models.AnalysisResult{
		ItemID:     item.ID,
		Model:      resp.Model,
		Answer:     answer,
		RawText:    resp.Text,
		Confidence: extractConfidence(answer),
	}

	a.logger.Debug().
		Str("item_id", item.ID).
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Msg("Item analyzed")

	return result, nil
}

// extractConfidence pulls an optional confidence field from the answer.
func extractConfidence(answer map[string]any) float64 {
	switch v := answer["confidence"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
