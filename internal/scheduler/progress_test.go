package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

func TestSnapshotFormulas(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	sessionID, _ := store.CreateSession(ctx, testConfig("arc", 10), 20)
	if err := store.UpdateSessionCounters(ctx, sessionID, 8, 6, 2, 500); err != nil {
		t.Fatal(err)
	}

	tracker := NewProgressTracker(store, time.Minute, arbor.NewLogger())
	snapshot, err := tracker.Snapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if snapshot.Percentage != 40 {
		t.Errorf("expected 40%% progress, got %d", snapshot.Percentage)
	}
	if snapshot.Accuracy != 75 {
		t.Errorf("expected 75%% accuracy, got %d", snapshot.Accuracy)
	}
	// 12 remaining * 500ms = 6 seconds.
	if snapshot.ETASeconds != 6 {
		t.Errorf("expected ETA 6s, got %d", snapshot.ETASeconds)
	}
}

func TestSnapshotETAZeroBeforeFirstCompletion(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	sessionID, _ := store.CreateSession(ctx, testConfig("arc", 10), 20)

	tracker := NewProgressTracker(store, time.Minute, arbor.NewLogger())
	snapshot, err := tracker.Snapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if snapshot.ETASeconds != 0 {
		t.Errorf("expected ETA 0 with no completions, got %d", snapshot.ETASeconds)
	}
	if snapshot.Percentage != 0 || snapshot.Accuracy != 0 {
		t.Errorf("expected zero percentage and accuracy, got %d / %d",
			snapshot.Percentage, snapshot.Accuracy)
	}
}

func TestSnapshotCachingAndInvalidate(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	sessionID, _ := store.CreateSession(ctx, testConfig("arc", 10), 20)
	if err := store.UpdateSessionCounters(ctx, sessionID, 5, 5, 0, 100); err != nil {
		t.Fatal(err)
	}

	tracker := NewProgressTracker(store, time.Minute, arbor.NewLogger())
	first, err := tracker.Snapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if first.Completed != 5 {
		t.Fatalf("expected 5 completed, got %d", first.Completed)
	}

	// Counters move on, but the cached snapshot is still served.
	if err := store.UpdateSessionCounters(ctx, sessionID, 10, 10, 0, 100); err != nil {
		t.Fatal(err)
	}
	cached, _ := tracker.Snapshot(ctx, sessionID)
	if cached.Completed != 5 {
		t.Errorf("expected cached value 5 within TTL, got %d", cached.Completed)
	}

	tracker.Invalidate(sessionID)
	fresh, _ := tracker.Snapshot(ctx, sessionID)
	if fresh.Completed != 10 {
		t.Errorf("expected fresh value 10 after invalidate, got %d", fresh.Completed)
	}
}

func TestSnapshotExpiresAfterTTL(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	sessionID, _ := store.CreateSession(ctx, testConfig("arc", 10), 20)

	tracker := NewProgressTracker(store, 10*time.Millisecond, arbor.NewLogger())
	if _, err := tracker.Snapshot(ctx, sessionID); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if err := store.UpdateSessionCounters(ctx, sessionID, 3, 3, 0, 100); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	fresh, _ := tracker.Snapshot(ctx, sessionID)
	if fresh.Completed != 3 {
		t.Errorf("expected store re-read after TTL, got completed=%d", fresh.Completed)
	}
}

func TestSnapshotUnknownSession(t *testing.T) {
	tracker := NewProgressTracker(newMemStore(), time.Minute, arbor.NewLogger())
	_, err := tracker.Snapshot(context.Background(), "sess_missing")
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestETADecreasesAsWorkCompletes(t *testing.T) {
	// Hold the average constant and walk completion forward; the derived
	// ETA must never increase.
	previous := int(^uint(0) >> 1)
	for completed := 1; completed <= 20; completed++ {
		snapshot := models.ProgressSnapshot{
			Total:               20,
			Completed:           completed,
			Successful:          completed,
			AverageProcessingMs: 750,
		}
		snapshot.ComputeDerived()
		if snapshot.ETASeconds > previous {
			t.Fatalf("ETA increased at completed=%d: %d -> %d",
				completed, previous, snapshot.ETASeconds)
		}
		previous = snapshot.ETASeconds
	}
	if previous != 0 {
		t.Errorf("expected ETA 0 at full completion, got %d", previous)
	}
}
