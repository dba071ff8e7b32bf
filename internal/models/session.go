// -----------------------------------------------------------------------
// Analysis Session - batch job configuration and lifecycle state
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobStatus represents the lifecycle state of an analysis session.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// IsTerminal returns true if the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusError
}

// JobConfig is the immutable configuration supplied when a batch analysis
// job is submitted. It is snapshotted onto the session record and never
// mutated afterwards.
type JobConfig struct {
	Model           string  `json:"model" toml:"model" validate:"required"`
	Dataset         string  `json:"dataset" toml:"dataset" validate:"required"`
	PromptID        string  `json:"prompt_id" toml:"prompt_id"`
	CustomPrompt    string  `json:"custom_prompt,omitempty" toml:"custom_prompt"`
	Temperature     float32 `json:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty" toml:"reasoning_effort" validate:"omitempty,oneof=minimal low medium high"`
	ChunkSize       int     `json:"chunk_size" toml:"chunk_size" validate:"gte=0,lte=100"`
}

// Session is one submitted batch-analysis run across a dataset.
// Counters are mutated only by the scheduler's drain loop; the durable
// mirror lives in the session store.
type Session struct {
	ID     string    `json:"id"`
	Config JobConfig `json:"config"`
	Status JobStatus `json:"status"`

	TotalItems      int `json:"total_items"`
	CompletedItems  int `json:"completed_items"`
	SuccessfulItems int `json:"successful_items"`
	FailedItems     int `json:"failed_items"`

	// AverageProcessingMs is the arithmetic mean of per-item wall-clock
	// durations observed so far in the run, in milliseconds.
	AverageProcessingMs float64 `json:"average_processing_ms"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error,omitempty"`
}

// MarkStarted transitions the session to running and stamps the start time
// on first call.
func (s *Session) MarkStarted() {
	s.Status = JobStatusRunning
	if s.StartedAt == nil {
		now := time.Now()
		s.StartedAt = &now
	}
}

// MarkTerminal stamps the completion time and final status. Terminal
// sessions are marked exactly once; callers guard the transition.
func (s *Session) MarkTerminal(status JobStatus, errMsg string) {
	s.Status = status
	s.Error = errMsg
	now := time.Now()
	s.CompletedAt = &now
}

// SessionStats holds the authoritative per-session counters as read back
// from the durable store.
type SessionStats struct {
	CompletedCount      int     `json:"completed_count"`
	SuccessCount        int     `json:"success_count"`
	ErrorCount          int     `json:"error_count"`
	AverageProcessingMs float64 `json:"average_processing_ms"`
}
