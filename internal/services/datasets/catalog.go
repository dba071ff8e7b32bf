// -----------------------------------------------------------------------
// Dataset Catalog - resolves dataset selectors to ordered puzzle lists
// -----------------------------------------------------------------------

package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/common"
	"github.com/ternarybob/resolvo/internal/models"
)

// Catalog resolves dataset names to ordered puzzle item lists from a
// directory layout of datasets/<name>/<puzzle-id>.json. Ordering is
// lexicographic by filename so a queue materialized twice is identical.
type Catalog struct {
	dir    string
	logger arbor.ILogger
}

// NewCatalog creates a dataset catalog rooted at the configured directory
func NewCatalog(config *common.DatasetsConfig, logger arbor.ILogger) *Catalog {
	return &Catalog{
		dir:    config.Dir,
		logger: logger,
	}
}

// ResolveItems returns the ordered work items for a dataset name.
func (c *Catalog) ResolveItems(ctx context.Context, dataset string) ([]models.WorkItem, error) {
	if dataset == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	dir := filepath.Join(c.dir, dataset)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", dataset, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)

	items := make([]models.WorkItem, len(ids))
	for i, id := range ids {
		items[i] = models.WorkItem{ID: id, Position: i}
	}

	c.logger.Debug().
		Str("dataset", dataset).
		Int("item_count", len(items)).
		Msg("Dataset resolved")

	return items, nil
}

// LoadPuzzle reads one puzzle payload from a dataset. The analyzer uses
// this to build the prompt for a work item.
func (c *Catalog) LoadPuzzle(dataset, itemID string) (map[string]any, error) {
	path := filepath.Join(c.dir, dataset, itemID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read puzzle %s/%s: %w", dataset, itemID, err)
	}

	var puzzle map[string]any
	if err := json.Unmarshal(data, &puzzle); err != nil {
		return nil, fmt.Errorf("failed to parse puzzle %s/%s: %w", dataset, itemID, err)
	}
	return puzzle, nil
}
