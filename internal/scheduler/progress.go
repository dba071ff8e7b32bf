// -----------------------------------------------------------------------
// Progress Tracker - derived progress snapshots with a short TTL cache
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

type cachedSnapshot struct {
	snapshot models.ProgressSnapshot
	expires  time.Time
}

// ProgressTracker computes progress snapshots from the durable store's
// authoritative counters. Snapshots survive process restarts because the
// tracker never reads the scheduler's in-memory state. A short TTL cache
// absorbs polling storms; the scheduler invalidates it after every counter
// write so fresh data is never more than one chunk behind.
type ProgressTracker struct {
	store  interfaces.SessionStore
	ttl    time.Duration
	logger arbor.ILogger

	mu    sync.RWMutex
	cache map[string]cachedSnapshot
}

// NewProgressTracker creates a progress tracker with the given cache TTL
func NewProgressTracker(store interfaces.SessionStore, ttl time.Duration, logger arbor.ILogger) *ProgressTracker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ProgressTracker{
		store:  store,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cachedSnapshot),
	}
}

// Snapshot returns the progress view for a session, serving from cache
// when a fresh entry exists. Returns interfaces.ErrSessionNotFound for
// unknown session ids.
func (t *ProgressTracker) Snapshot(ctx context.Context, sessionID string) (*models.ProgressSnapshot, error) {
	t.mu.RLock()
	entry, ok := t.cache[sessionID]
	t.mu.RUnlock()

	if ok && time.Now().Before(entry.expires) {
		snapshot := entry.snapshot
		return &snapshot, nil
	}

	session, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats, err := t.store.GetSessionStats(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := models.ProgressSnapshot{
		SessionID:           sessionID,
		Status:              session.Status,
		Total:               session.TotalItems,
		Completed:           stats.CompletedCount,
		Successful:          stats.SuccessCount,
		Failed:              stats.ErrorCount,
		AverageProcessingMs: stats.AverageProcessingMs,
	}
	snapshot.ComputeDerived()

	t.mu.Lock()
	t.cache[sessionID] = cachedSnapshot{
		snapshot: snapshot,
		expires:  time.Now().Add(t.ttl),
	}
	t.mu.Unlock()

	return &snapshot, nil
}

// Invalidate drops the cached snapshot so the next read hits the store.
// Called by the scheduler right after persisting updated counters.
func (t *ProgressTracker) Invalidate(sessionID string) {
	t.mu.Lock()
	delete(t.cache, sessionID)
	t.mu.Unlock()
}
