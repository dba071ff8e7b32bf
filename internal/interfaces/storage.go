package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/resolvo/internal/models"
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the durable store facade the scheduler, item processor
// and progress tracker depend on. Implementations must be safe for
// concurrent use for the same session id from multiple chunk workers and
// must serialize counter writes internally.
type SessionStore interface {
	// Ping reports whether the store is reachable. Checked before any
	// session record is created at submission.
	Ping(ctx context.Context) error

	// CreateSession creates a durable session record in state pending
	// and returns its id.
	CreateSession(ctx context.Context, config models.JobConfig, totalItems int) (string, error)

	// GetSession returns the session record or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// UpdateSessionStatus persists a status transition. errMsg is stored
	// on the session for terminal error states, empty otherwise.
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.JobStatus, errMsg string) error

	// UpdateSessionCounters persists the session counters as one write.
	UpdateSessionCounters(ctx context.Context, sessionID string, completed, successful, failed int, avgProcessingMs float64) error

	// CreateItemPlaceholder registers an item as pending within a
	// session. Used at queue materialization so crash recovery can list
	// what was never attempted.
	CreateItemPlaceholder(ctx context.Context, sessionID, itemID string, position int) error

	// UpdateItemResult upserts the outcome for one item. A retried write
	// for the same item id must not duplicate records.
	UpdateItemResult(ctx context.Context, sessionID, itemID string, result models.ItemResult) error

	// SaveAnalysis persists a raw analyzer output and returns its record id.
	SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) (string, error)

	// GetSessionStats returns the authoritative counters for a session.
	GetSessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error)

	// ListPendingItems returns the items not yet attempted, ordered by
	// queue position. Used by crash-recovery resume.
	ListPendingItems(ctx context.Context, sessionID string) ([]models.WorkItem, error)

	// ListResults returns all item results for a session, ordered by
	// queue position.
	ListResults(ctx context.Context, sessionID string) ([]models.ItemResult, error)
}
