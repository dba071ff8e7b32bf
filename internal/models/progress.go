// -----------------------------------------------------------------------
// Progress Snapshot - derived, transient progress view of a session
// -----------------------------------------------------------------------

package models

import "math"

// ProgressSnapshot is the derived progress view of a session. It is
// recomputed on demand, cached briefly by the progress tracker, and never
// persisted.
type ProgressSnapshot struct {
	SessionID  string    `json:"session_id"`
	Status     JobStatus `json:"status"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`

	// Percentage is round(100 * completed / total), 0 when total is 0.
	Percentage int `json:"percentage"`

	// Accuracy is round(100 * successful / completed), 0 when nothing
	// has completed yet.
	Accuracy int `json:"accuracy"`

	AverageProcessingMs float64 `json:"average_processing_ms"`

	// ETASeconds is round(remaining * average / 1000), 0 before the
	// first completion.
	ETASeconds int `json:"eta_seconds"`
}

// ComputeDerived fills Percentage, Accuracy and ETASeconds from the raw
// counters already present on the snapshot.
func (p *ProgressSnapshot) ComputeDerived() {
	if p.Total > 0 {
		p.Percentage = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))
	}
	if p.Completed > 0 {
		p.Accuracy = int(math.Round(100 * float64(p.Successful) / float64(p.Completed)))
		if p.AverageProcessingMs > 0 {
			remaining := p.Total - p.Completed
			p.ETASeconds = int(math.Round(float64(remaining) * p.AverageProcessingMs / 1000))
		}
	}
}

// ProgressEvent is the typed payload published on the event bus after each
// chunk of work is applied.
type ProgressEvent struct {
	SessionID string           `json:"session_id"`
	Status    JobStatus        `json:"status"`
	Snapshot  ProgressSnapshot `json:"snapshot"`
}
