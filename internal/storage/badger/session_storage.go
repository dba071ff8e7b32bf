package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/common"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SessionStorage implements the SessionStore facade on BadgerDB.
// Counter and status writes for the same session are serialized through a
// per-session mutex; BadgerHold has no atomic field updates, so the
// read-modify-write cycle must not interleave.
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu       sync.Mutex
	sessionL map[string]*sync.Mutex
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStore {
	return &SessionStorage{
		db:       db,
		logger:   logger,
		sessionL: make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the write lock for a session id, creating it on
// first use. Locks are never evicted; sessions are few and short-lived
// relative to process lifetime.
func (s *SessionStorage) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.sessionL[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.sessionL[sessionID] = l
	}
	return l
}

// itemKey builds the composite key used for item upserts so a retried
// write for the same item never duplicates records.
func itemKey(sessionID, itemID string) string {
	return sessionID + "/" + itemID
}

func (s *SessionStorage) Ping(ctx context.Context) error {
	var probe models.Session
	err := s.db.Store().Get("__ping__", &probe)
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

func (s *SessionStorage) CreateSession(ctx context.Context, config models.JobConfig, totalItems int) (string, error) {
	session := &models.Session{
		ID:         common.NewSessionID(),
		Config:     config,
		Status:     models.JobStatusPending,
		TotalItems: totalItems,
		CreatedAt:  time.Now(),
	}

	if err := s.db.Store().Insert(session.ID, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Debug().
		Str("session_id", session.ID).
		Int("total_items", totalItems).
		Msg("Session record created")

	return session.ID, nil
}

func (s *SessionStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(sessionID, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStorage) UpdateSessionStatus(ctx context.Context, sessionID string, status models.JobStatus, errMsg string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.Status = status
	if errMsg != "" {
		session.Error = errMsg
	}

	now := time.Now()
	if status == models.JobStatusRunning && session.StartedAt == nil {
		session.StartedAt = &now
	}
	if status.IsTerminal() {
		session.CompletedAt = &now
	}

	if err := s.db.Store().Upsert(sessionID, session); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

func (s *SessionStorage) UpdateSessionCounters(ctx context.Context, sessionID string, completed, successful, failed int, avgProcessingMs float64) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.CompletedItems = completed
	session.SuccessfulItems = successful
	session.FailedItems = failed
	session.AverageProcessingMs = avgProcessingMs

	if err := s.db.Store().Upsert(sessionID, session); err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}
	return nil
}

func (s *SessionStorage) CreateItemPlaceholder(ctx context.Context, sessionID, itemID string, position int) error {
	placeholder := &models.ItemResult{
		SessionID: sessionID,
		ItemID:    itemID,
		Position:  position,
		Status:    models.ItemStatusPending,
	}

	if err := s.db.Store().Upsert(itemKey(sessionID, itemID), placeholder); err != nil {
		return fmt.Errorf("failed to create item placeholder: %w", err)
	}
	return nil
}

func (s *SessionStorage) UpdateItemResult(ctx context.Context, sessionID, itemID string, result models.ItemResult) error {
	result.SessionID = sessionID
	result.ItemID = itemID

	if err := s.db.Store().Upsert(itemKey(sessionID, itemID), &result); err != nil {
		return fmt.Errorf("failed to update item result: %w", err)
	}
	return nil
}

func (s *SessionStorage) SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) (string, error) {
	if record.ID == "" {
		record.ID = common.NewAnalysisID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return "", fmt.Errorf("failed to save analysis record: %w", err)
	}
	return record.ID, nil
}

func (s *SessionStorage) GetSessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.SessionStats{
		CompletedCount:      session.CompletedItems,
		SuccessCount:        session.SuccessfulItems,
		ErrorCount:          session.FailedItems,
		AverageProcessingMs: session.AverageProcessingMs,
	}, nil
}

func (s *SessionStorage) ListPendingItems(ctx context.Context, sessionID string) ([]models.WorkItem, error) {
	var records []models.ItemResult
	query := badgerhold.Where("SessionID").Eq(sessionID).
		And("Status").Eq(models.ItemStatusPending).
		SortBy("Position")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}

	items := make([]models.WorkItem, len(records))
	for i, record := range records {
		items[i] = models.WorkItem{ID: record.ItemID, Position: record.Position}
	}
	return items, nil
}

func (s *SessionStorage) ListResults(ctx context.Context, sessionID string) ([]models.ItemResult, error) {
	var records []models.ItemResult
	query := badgerhold.Where("SessionID").Eq(sessionID).
		And("Status").Ne(models.ItemStatusPending).
		SortBy("Position")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list item results: %w", err)
	}
	return records, nil
}
