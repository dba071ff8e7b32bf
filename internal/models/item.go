// -----------------------------------------------------------------------
// Work Item / Item Result - per-puzzle records within a session
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// WorkItem is one dataset element (puzzle) to be analyzed within a job,
// together with its position in the originally materialized queue.
type WorkItem struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// ItemStatus represents the outcome state of a single work item.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFailed    ItemStatus = "failed"
)

// ItemResult is the per-item outcome produced by the item processor.
// Created once per item and never mutated afterwards.
type ItemResult struct {
	SessionID string     `json:"session_id"`
	ItemID    string     `json:"item_id"`
	Position  int        `json:"position"`
	Status    ItemStatus `json:"status"`

	// ResultID references the persisted analysis record, empty on failure.
	ResultID string `json:"result_id,omitempty"`

	ProcessingMs int64      `json:"processing_ms"`
	Error        string     `json:"error,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// AnalysisResult is what the analyzer collaborator returns for one item.
type AnalysisResult struct {
	ItemID     string         `json:"item_id"`
	Model      string         `json:"model"`
	Answer     map[string]any `json:"answer,omitempty"`
	RawText    string         `json:"raw_text,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// AnalysisRecord is the durable form of an analyzer output. ItemResult
// carries its ID so callers can retrieve the full output later.
type AnalysisRecord struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	ItemID    string          `json:"item_id"`
	Result    *AnalysisResult `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}
