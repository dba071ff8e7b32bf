package badger

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) interfaces.SessionStore {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewSessionStorage(db, arbor.NewLogger())
}

func testJobConfig() models.JobConfig {
	return models.JobConfig{
		Model:     "claude-sonnet-4-20250514",
		Dataset:   "arc",
		PromptID:  "solver",
		ChunkSize: 10,
	}
}

func TestSessionLifecyclePersistence(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	sessionID, err := storage.CreateSession(ctx, testJobConfig(), 5)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	session, err := storage.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if session.Status != models.JobStatusPending {
		t.Errorf("Expected pending status, got %s", session.Status)
	}
	if session.TotalItems != 5 {
		t.Errorf("Expected 5 total items, got %d", session.TotalItems)
	}

	// pending -> running stamps StartedAt once
	if err := storage.UpdateSessionStatus(ctx, sessionID, models.JobStatusRunning, ""); err != nil {
		t.Fatalf("Failed to mark running: %v", err)
	}
	session, _ = storage.GetSession(ctx, sessionID)
	if session.StartedAt == nil {
		t.Fatal("Expected StartedAt to be stamped on first running transition")
	}
	firstStart := *session.StartedAt

	if err := storage.UpdateSessionStatus(ctx, sessionID, models.JobStatusPaused, ""); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if err := storage.UpdateSessionStatus(ctx, sessionID, models.JobStatusRunning, ""); err != nil {
		t.Fatalf("Failed to resume: %v", err)
	}
	session, _ = storage.GetSession(ctx, sessionID)
	if !session.StartedAt.Equal(firstStart) {
		t.Error("StartedAt must not move on resume")
	}

	if err := storage.UpdateSessionStatus(ctx, sessionID, models.JobStatusCompleted, ""); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	session, _ = storage.GetSession(ctx, sessionID)
	if session.CompletedAt == nil {
		t.Error("Expected CompletedAt on terminal status")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	storage := newTestStorage(t)
	if _, err := storage.GetSession(context.Background(), "sess_missing"); err != interfaces.ErrSessionNotFound {
		t.Fatalf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestCounterUpdatesAndStats(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	sessionID, err := storage.CreateSession(ctx, testJobConfig(), 20)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if err := storage.UpdateSessionCounters(ctx, sessionID, 10, 8, 2, 420.5); err != nil {
		t.Fatalf("Failed to update counters: %v", err)
	}

	stats, err := storage.GetSessionStats(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.CompletedCount != 10 || stats.SuccessCount != 8 || stats.ErrorCount != 2 {
		t.Errorf("Stats mismatch: %+v", stats)
	}
	if stats.AverageProcessingMs != 420.5 {
		t.Errorf("Expected average 420.5, got %f", stats.AverageProcessingMs)
	}
}

func TestItemUpsertIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	sessionID, err := storage.CreateSession(ctx, testJobConfig(), 3)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	for i, itemID := range []string{"p-a", "p-b", "p-c"} {
		if err := storage.CreateItemPlaceholder(ctx, sessionID, itemID, i); err != nil {
			t.Fatalf("Failed to create placeholder %s: %v", itemID, err)
		}
	}

	result := models.ItemResult{
		Position: 1,
		Status:   models.ItemStatusCompleted,
		ResultID: "ana_123",
	}
	if err := storage.UpdateItemResult(ctx, sessionID, "p-b", result); err != nil {
		t.Fatalf("Failed to update item result: %v", err)
	}
	// A retried write for the same item must not duplicate records.
	if err := storage.UpdateItemResult(ctx, sessionID, "p-b", result); err != nil {
		t.Fatalf("Retried update failed: %v", err)
	}

	results, err := storage.ListResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to list results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after retried upsert, got %d", len(results))
	}
	if results[0].ItemID != "p-b" || results[0].ResultID != "ana_123" {
		t.Errorf("Unexpected result record: %+v", results[0])
	}

	pending, err := storage.ListPendingItems(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending items, got %d", len(pending))
	}
	if pending[0].ID != "p-a" || pending[1].ID != "p-c" {
		t.Errorf("Pending items out of order: %+v", pending)
	}
}

func TestPendingItemsScopedToSession(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first, _ := storage.CreateSession(ctx, testJobConfig(), 2)
	second, _ := storage.CreateSession(ctx, testJobConfig(), 2)

	for i, itemID := range []string{"x-0", "x-1"} {
		if err := storage.CreateItemPlaceholder(ctx, first, itemID, i); err != nil {
			t.Fatal(err)
		}
		if err := storage.CreateItemPlaceholder(ctx, second, itemID, i); err != nil {
			t.Fatal(err)
		}
	}

	done := models.ItemResult{Position: 0, Status: models.ItemStatusCompleted}
	if err := storage.UpdateItemResult(ctx, first, "x-0", done); err != nil {
		t.Fatal(err)
	}

	pendingFirst, err := storage.ListPendingItems(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(pendingFirst) != 1 || pendingFirst[0].ID != "x-1" {
		t.Errorf("First session pending mismatch: %+v", pendingFirst)
	}

	pendingSecond, err := storage.ListPendingItems(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if len(pendingSecond) != 2 {
		t.Errorf("Second session should be untouched, got %d pending", len(pendingSecond))
	}
}

func TestSaveAnalysisAssignsID(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	record := &models.AnalysisRecord{
		SessionID: "sess_1",
		ItemID:    "p-a",
		Result: &models.AnalysisResult{
			ItemID: "p-a",
			Answer: map[string]any{"answer": "42"},
		},
	}

	id, err := storage.SaveAnalysis(ctx, record)
	if err != nil {
		t.Fatalf("Failed to save analysis: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated analysis id")
	}
	if record.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be stamped")
	}
}

func TestPingOnOpenStore(t *testing.T) {
	storage := newTestStorage(t)
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("Ping on open store failed: %v", err)
	}
}
