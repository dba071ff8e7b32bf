// -----------------------------------------------------------------------
// Item Processor - executes exactly one work item, never lets a failure
// escape its own boundary
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/common"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

// ItemProcessor runs a single work item end to end: analyzer call, result
// persistence, outcome record. Every failure mode is converted into a
// failed ItemResult so the chunk fan-out in the drain loop never has to
// handle an error path.
type ItemProcessor struct {
	analyzer interfaces.Analyzer
	store    interfaces.SessionStore
	logger   arbor.ILogger
}

// NewItemProcessor creates an item processor
func NewItemProcessor(analyzer interfaces.Analyzer, store interfaces.SessionStore, logger arbor.ILogger) *ItemProcessor {
	return &ItemProcessor{
		analyzer: analyzer,
		store:    store,
		logger:   logger,
	}
}

// Process analyzes one item and persists its outcome. The returned result
// is always valid; duration is wall clock from just before the analyzer
// call to just after persistence so ETA reflects true per-item cost.
func (p *ItemProcessor) Process(ctx context.Context, sessionID string, item models.WorkItem, config models.JobConfig) models.ItemResult {
	start := time.Now()

	result := models.ItemResult{
		SessionID: sessionID,
		ItemID:    item.ID,
		Position:  item.Position,
	}

	analysis, err := p.analyzer.Analyze(ctx, item, config)
	if err != nil {
		p.logger.Warn().
			Str("session_id", sessionID).
			Str("item_id", item.ID).
			Err(err).
			Msg("Item analysis failed")
		return p.finish(ctx, result, start, "", err.Error())
	}

	record := &models.AnalysisRecord{
		ID:        common.NewAnalysisID(),
		SessionID: sessionID,
		ItemID:    item.ID,
		Result:    analysis,
		CreatedAt: time.Now(),
	}

	resultID, err := p.store.SaveAnalysis(ctx, record)
	if err != nil {
		p.logger.Warn().
			Str("session_id", sessionID).
			Str("item_id", item.ID).
			Err(err).
			Msg("Failed to persist analysis")
		return p.finish(ctx, result, start, "", "persist analysis: "+err.Error())
	}

	return p.finish(ctx, result, start, resultID, "")
}

// finish stamps the outcome, persists the item result, and returns it.
// The duration is stamped before the write so the persisted record carries
// the true per-item cost.
func (p *ItemProcessor) finish(ctx context.Context, result models.ItemResult, start time.Time, resultID, errMsg string) models.ItemResult {
	if errMsg == "" {
		result.Status = models.ItemStatusCompleted
		result.ResultID = resultID
	} else {
		result.Status = models.ItemStatusFailed
		result.Error = errMsg
	}

	now := time.Now()
	result.CompletedAt = &now
	result.ProcessingMs = time.Since(start).Milliseconds()

	if err := p.store.UpdateItemResult(ctx, result.SessionID, result.ItemID, result); err != nil {
		p.logger.Warn().
			Str("session_id", result.SessionID).
			Str("item_id", result.ItemID).
			Err(err).
			Msg("Failed to persist item result")
		result.Status = models.ItemStatusFailed
		result.ResultID = ""
		result.Error = "persist item result: " + err.Error()

		// The chunk counts this item either way, so a row left pending
		// would be re-dispatched by a crash-recovery resume and counted
		// twice. Record the failed outcome best effort; if the store is
		// still down the job errors out at the counter write anyway.
		if retryErr := p.store.UpdateItemResult(ctx, result.SessionID, result.ItemID, result); retryErr != nil {
			p.logger.Error().
				Str("session_id", result.SessionID).
				Str("item_id", result.ItemID).
				Err(retryErr).
				Msg("Item outcome not durable; item may be reattempted on resume")
		}
	}

	return result
}
