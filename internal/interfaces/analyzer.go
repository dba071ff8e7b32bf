package interfaces

import (
	"context"

	"github.com/ternarybob/resolvo/internal/models"
)

// Analyzer runs one configured AI analysis against a single work item.
// Implementations hide all provider-specific request/response handling.
// Must be safe to call concurrently for distinct items; failure is
// signalled by the returned error, never by inspecting the result.
type Analyzer interface {
	Analyze(ctx context.Context, item models.WorkItem, config models.JobConfig) (*models.AnalysisResult, error)
}

// DatasetCatalog resolves a dataset selector into its ordered list of
// work items. Ordering must be deterministic so the materialized queue is
// reproducible across runs.
type DatasetCatalog interface {
	ResolveItems(ctx context.Context, dataset string) ([]models.WorkItem, error)
}
