// -----------------------------------------------------------------------
// Job Scheduler - owns the job registry, lifecycle state machine, and the
// concurrency-bounded chunked drain loop
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/common"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

// jobEntry is the live in-memory state of one session. All mutation goes
// through mu; the drain loop is the single writer of counters, control
// operations only flip status.
type jobEntry struct {
	mu      sync.Mutex
	session *models.Session
	queue   []models.WorkItem
	evictAt time.Time

	// draining is true while a drain loop owns this entry. Set before the
	// loop is spawned, cleared by the loop as it exits; guarantees at most
	// one loop consumes a job's queue at a time.
	draining bool
}

// Scheduler owns the in-memory registry of analysis jobs and drains each
// job's work queue in bounded concurrent chunks. One Scheduler instance is
// constructed at process start and torn down with Stop.
type Scheduler struct {
	store     interfaces.SessionStore
	catalog   interfaces.DatasetCatalog
	processor *ItemProcessor
	tracker   *ProgressTracker
	events    interfaces.EventService
	logger    arbor.ILogger
	validate  *validator.Validate

	maxActive  int
	chunkSize  int
	chunkDelay time.Duration
	grace      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	cron   *cron.Cron

	mu       sync.Mutex
	registry map[string]*jobEntry
	// order holds session ids awaiting admission, first submitted first.
	order    []string
	draining int
}

// NewScheduler creates a job scheduler. Call Start to begin the registry
// janitor and Stop to shut everything down.
func NewScheduler(
	store interfaces.SessionStore,
	catalog interfaces.DatasetCatalog,
	processor *ItemProcessor,
	tracker *ProgressTracker,
	events interfaces.EventService,
	config *common.SchedulerConfig,
	logger arbor.ILogger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	maxActive := config.MaxActiveJobs
	if maxActive <= 0 {
		maxActive = 3
	}
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}

	return &Scheduler{
		store:      store,
		catalog:    catalog,
		processor:  processor,
		tracker:    tracker,
		events:     events,
		logger:     logger,
		validate:   validator.New(),
		maxActive:  maxActive,
		chunkSize:  chunkSize,
		chunkDelay: config.ChunkDelayDuration(),
		grace:      config.RegistryGraceDuration(),
		ctx:        ctx,
		cancel:     cancel,
		registry:   make(map[string]*jobEntry),
	}
}

// Submit validates the configuration, materializes the work queue, creates
// the durable session, and admits the job for draining if a slot is free.
// Returns the new session id; no session record exists when an error is
// returned before creation succeeds.
func (s *Scheduler) Submit(ctx context.Context, config models.JobConfig) (string, error) {
	if err := s.validate.Struct(config); err != nil {
		return "", fmt.Errorf("invalid job config: %w", err)
	}

	items, err := s.catalog.ResolveItems(ctx, config.Dataset)
	if err != nil {
		return "", fmt.Errorf("resolve dataset %s: %w", config.Dataset, err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: dataset %s", ErrEmptyDataset, config.Dataset)
	}

	if err := s.store.Ping(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sessionID, err := s.store.CreateSession(ctx, config, len(items))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	for _, item := range items {
		if err := s.store.CreateItemPlaceholder(ctx, sessionID, item.ID, item.Position); err != nil {
			msg := fmt.Sprintf("materialize queue: %v", err)
			if updErr := s.store.UpdateSessionStatus(ctx, sessionID, models.JobStatusError, msg); updErr != nil {
				s.logger.Error().Str("session_id", sessionID).Err(updErr).Msg("Failed to mark session errored")
			}
			return "", fmt.Errorf("create item placeholder %s: %w", item.ID, err)
		}
	}

	session := &models.Session{
		ID:         sessionID,
		Config:     config,
		Status:     models.JobStatusPending,
		TotalItems: len(items),
		CreatedAt:  time.Now(),
	}

	entry := &jobEntry{
		session: session,
		queue:   items,
	}

	s.mu.Lock()
	s.registry[sessionID] = entry
	s.order = append(s.order, sessionID)
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", sessionID).
		Str("dataset", config.Dataset).
		Str("model", config.Model).
		Int("total_items", len(items)).
		Msg("Job submitted")

	s.admit()

	return sessionID, nil
}

// Status returns the progress snapshot for a session, served through the
// progress tracker so it remains correct across process restarts.
func (s *Scheduler) Status(ctx context.Context, sessionID string) (*models.ProgressSnapshot, error) {
	snapshot, err := s.tracker.Snapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return snapshot, nil
}

// Pause stops dispatch of new chunks for a running job. The in-flight
// chunk finishes naturally; the remaining queue stays intact for resume.
func (s *Scheduler) Pause(ctx context.Context, sessionID string) error {
	entry := s.lookup(sessionID)
	if entry == nil {
		return ErrJobNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session.Status != models.JobStatusRunning {
		return fmt.Errorf("%w: cannot pause job in state %s", ErrInvalidTransition, entry.session.Status)
	}

	entry.session.Status = models.JobStatusPaused
	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.JobStatusPaused, ""); err != nil {
		entry.session.Status = models.JobStatusRunning
		return fmt.Errorf("persist pause: %w", err)
	}

	s.logger.Info().Str("session_id", sessionID).Msg("Job paused")
	s.publishStatusLocked(entry)
	return nil
}

// Resume restarts draining for a paused job. If the process restarted and
// the in-memory queue was lost, the queue is rebuilt from the durable
// store's not-yet-attempted items so no item is skipped or repeated.
func (s *Scheduler) Resume(ctx context.Context, sessionID string) error {
	entry := s.lookup(sessionID)
	if entry == nil {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, interfaces.ErrSessionNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		entry = &jobEntry{session: session}
		s.mu.Lock()
		if existing, ok := s.registry[sessionID]; ok {
			entry = existing
		} else {
			s.registry[sessionID] = entry
		}
		s.mu.Unlock()
	}

	entry.mu.Lock()

	if entry.session.Status != models.JobStatusPaused {
		status := entry.session.Status
		entry.mu.Unlock()
		return fmt.Errorf("%w: cannot resume job in state %s", ErrInvalidTransition, status)
	}

	if len(entry.queue) == 0 && entry.session.CompletedItems < entry.session.TotalItems {
		pending, err := s.store.ListPendingItems(ctx, sessionID)
		if err != nil {
			entry.mu.Unlock()
			return fmt.Errorf("rebuild queue: %w", err)
		}
		entry.queue = pending
	}

	entry.session.MarkStarted()
	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.JobStatusRunning, ""); err != nil {
		entry.session.Status = models.JobStatusPaused
		entry.mu.Unlock()
		return fmt.Errorf("persist resume: %w", err)
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("remaining", len(entry.queue)).
		Msg("Job resumed")
	s.publishStatusLocked(entry)

	if entry.draining {
		// The loop that was draining this job before the pause is still
		// settling its in-flight chunk and holds its slot. It observes the
		// running status at the next chunk boundary and carries on, so
		// spawning a second loop here would double-consume the queue.
		entry.mu.Unlock()
		return nil
	}
	entry.draining = true
	entry.mu.Unlock()

	// Resume is an explicit operator action, so it takes a slot directly
	// rather than queueing behind pending submissions.
	s.mu.Lock()
	s.draining++
	s.mu.Unlock()

	s.wg.Add(1)
	go s.drain(entry)

	return nil
}

// Cancel moves a pending, running, or paused job to cancelled. For a
// running job the in-flight chunk finishes naturally; no further chunks
// are started. Terminal jobs reject the operation.
func (s *Scheduler) Cancel(ctx context.Context, sessionID string) error {
	entry := s.lookup(sessionID)
	if entry == nil {
		// Possibly a session from before a restart with no live entry.
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, interfaces.ErrSessionNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if session.Status.IsTerminal() {
			return fmt.Errorf("%w: job already %s", ErrInvalidTransition, session.Status)
		}
		return s.store.UpdateSessionStatus(ctx, sessionID, models.JobStatusCancelled, "")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	previous := entry.session.Status
	if previous.IsTerminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidTransition, previous)
	}

	entry.session.MarkTerminal(models.JobStatusCancelled, "")
	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.JobStatusCancelled, ""); err != nil {
		entry.session.Status = previous
		entry.session.CompletedAt = nil
		return fmt.Errorf("persist cancel: %w", err)
	}

	entry.evictAt = time.Now().Add(s.grace)
	if previous != models.JobStatusRunning {
		// No drain loop is active for this job; discard the queue here.
		// A running job's loop discards it at the next chunk boundary.
		entry.queue = nil
	}

	s.tracker.Invalidate(sessionID)
	s.logger.Info().
		Str("session_id", sessionID).
		Str("previous_status", string(previous)).
		Msg("Job cancelled")
	s.publishStatusLocked(entry)
	return nil
}

// ListResults returns all per-item outcomes recorded for a session,
// ordered by queue position.
func (s *Scheduler) ListResults(ctx context.Context, sessionID string) ([]models.ItemResult, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.store.ListResults(ctx, sessionID)
}

// Stop cancels all drain loops, stops the janitor, and waits for in-flight
// chunks to settle.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// lookup returns the live entry for a session id, nil if not registered.
func (s *Scheduler) lookup(sessionID string) *jobEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry[sessionID]
}

// admit starts drain loops for pending jobs while slots are free,
// first submitted first. Jobs cancelled while waiting are skipped.
func (s *Scheduler) admit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.draining < s.maxActive && len(s.order) > 0 {
		sessionID := s.order[0]
		s.order = s.order[1:]

		entry := s.registry[sessionID]
		if entry == nil {
			continue
		}

		entry.mu.Lock()
		pending := entry.session.Status == models.JobStatusPending
		if pending {
			entry.draining = true
		}
		entry.mu.Unlock()
		if !pending {
			continue
		}

		s.draining++
		s.wg.Add(1)
		go s.drain(entry)
	}
}

// release frees a drain slot and admits the next waiting job.
func (s *Scheduler) release() {
	s.mu.Lock()
	s.draining--
	s.mu.Unlock()
	s.admit()
}

// drain is the chunked execution loop for one job. It is the only
// goroutine consuming this job's queue, so queue and counter mutation is
// single-writer. It runs until the queue empties, the job is paused or
// cancelled, a systemic error occurs, or the scheduler shuts down.
func (s *Scheduler) drain(entry *jobEntry) {
	defer s.wg.Done()
	ctx := s.ctx
	jobLogger := s.logger.WithCorrelationId(entry.session.ID)

	entry.mu.Lock()
	if entry.session.Status.IsTerminal() {
		// Cancelled between admission and startup.
		entry.queue = nil
		entry.draining = false
		entry.mu.Unlock()
		s.release()
		return
	}
	if entry.session.Status == models.JobStatusPending {
		entry.session.MarkStarted()
		if err := s.store.UpdateSessionStatus(ctx, entry.session.ID, models.JobStatusRunning, ""); err != nil {
			s.finalizeLocked(ctx, entry, models.JobStatusError, fmt.Sprintf("persist start: %v", err))
			entry.draining = false
			entry.mu.Unlock()
			s.release()
			return
		}
		jobLogger.Info().Str("session_id", entry.session.ID).Msg("Job started")
		s.publishStatusLocked(entry)
	}
	entry.mu.Unlock()

	for {
		entry.mu.Lock()

		if entry.session.Status.IsTerminal() {
			// Cancelled by a control operation; discard what remains.
			entry.queue = nil
			entry.draining = false
			entry.mu.Unlock()
			s.release()
			return
		}
		if entry.session.Status == models.JobStatusPaused {
			// Queue stays intact for a future resume.
			entry.draining = false
			entry.mu.Unlock()
			s.release()
			return
		}
		if len(entry.queue) == 0 {
			s.finalizeLocked(ctx, entry, models.JobStatusCompleted, "")
			entry.draining = false
			entry.mu.Unlock()
			s.release()
			return
		}

		width := s.chunkSize
		if entry.session.Config.ChunkSize > 0 {
			width = entry.session.Config.ChunkSize
		}
		if width > len(entry.queue) {
			width = len(entry.queue)
		}
		chunk := entry.queue[:width]
		entry.queue = entry.queue[width:]
		sessionID := entry.session.ID
		config := entry.session.Config
		entry.mu.Unlock()

		// Fan the chunk out; every item settles on its own, a failed item
		// never aborts its neighbors.
		results := make([]models.ItemResult, len(chunk))
		var chunkWG sync.WaitGroup
		for i, item := range chunk {
			chunkWG.Add(1)
			go func(i int, item models.WorkItem) {
				defer chunkWG.Done()
				results[i] = s.processor.Process(ctx, sessionID, item, config)
			}(i, item)
		}
		chunkWG.Wait()

		var successful, failed int
		var durationSum int64
		for _, result := range results {
			if result.Status == models.ItemStatusCompleted {
				successful++
			} else {
				failed++
			}
			durationSum += result.ProcessingMs
		}

		entry.mu.Lock()
		session := entry.session
		previousCompleted := session.CompletedItems
		session.CompletedItems += len(results)
		session.SuccessfulItems += successful
		session.FailedItems += failed
		session.AverageProcessingMs = (session.AverageProcessingMs*float64(previousCompleted) +
			float64(durationSum)) / float64(session.CompletedItems)

		if err := s.store.UpdateSessionCounters(ctx, sessionID,
			session.CompletedItems, session.SuccessfulItems, session.FailedItems,
			session.AverageProcessingMs); err != nil {
			// A store failure here is systemic, not item-specific: the whole
			// job stops in state error.
			s.finalizeLocked(ctx, entry, models.JobStatusError, fmt.Sprintf("persist counters: %v", err))
			entry.draining = false
			entry.mu.Unlock()
			s.release()
			return
		}

		snapshot := snapshotLocked(session)
		remaining := len(entry.queue)
		status := session.Status
		entry.mu.Unlock()

		s.tracker.Invalidate(sessionID)
		s.publishProgress(sessionID, status, snapshot)

		jobLogger.Debug().
			Str("session_id", sessionID).
			Int("chunk_items", len(results)).
			Int("completed", snapshot.Completed).
			Int("remaining", remaining).
			Msg("Chunk drained")

		if remaining > 0 && status == models.JobStatusRunning {
			select {
			case <-ctx.Done():
				entry.mu.Lock()
				entry.draining = false
				entry.mu.Unlock()
				s.release()
				return
			case <-time.After(s.chunkDelay):
			}
		}
	}
}

// finalizeLocked marks a session terminal exactly once, persists the final
// status, and schedules the registry entry for eviction. Caller holds
// entry.mu.
func (s *Scheduler) finalizeLocked(ctx context.Context, entry *jobEntry, status models.JobStatus, errMsg string) {
	if entry.session.Status.IsTerminal() {
		return
	}

	entry.session.MarkTerminal(status, errMsg)
	entry.queue = nil
	entry.evictAt = time.Now().Add(s.grace)

	if err := s.store.UpdateSessionStatus(ctx, entry.session.ID, status, errMsg); err != nil {
		s.logger.Error().
			Str("session_id", entry.session.ID).
			Str("status", string(status)).
			Err(err).
			Msg("Failed to persist terminal status")
	}

	s.tracker.Invalidate(entry.session.ID)

	event := s.logger.Info()
	if status == models.JobStatusError {
		event = s.logger.Error()
	}
	event.
		Str("session_id", entry.session.ID).
		Str("status", string(status)).
		Int("completed", entry.session.CompletedItems).
		Int("successful", entry.session.SuccessfulItems).
		Int("failed", entry.session.FailedItems).
		Msg("Job finished")

	s.publishStatusLocked(entry)
}

// publishStatusLocked emits a status-change event. Caller holds entry.mu;
// publication is asynchronous so no handler runs under the lock.
func (s *Scheduler) publishStatusLocked(entry *jobEntry) {
	if s.events == nil {
		return
	}
	payload := models.ProgressEvent{
		SessionID: entry.session.ID,
		Status:    entry.session.Status,
		Snapshot:  snapshotLocked(entry.session),
	}
	if err := s.events.Publish(s.ctx, interfaces.Event{
		Type:    interfaces.EventJobStatusChange,
		Payload: payload,
	}); err != nil {
		s.logger.Warn().Str("session_id", entry.session.ID).Err(err).Msg("Failed to publish status event")
	}
}

// publishProgress emits a progress event after a chunk's counters are
// durable.
func (s *Scheduler) publishProgress(sessionID string, status models.JobStatus, snapshot models.ProgressSnapshot) {
	if s.events == nil {
		return
	}
	payload := models.ProgressEvent{
		SessionID: sessionID,
		Status:    status,
		Snapshot:  snapshot,
	}
	if err := s.events.Publish(s.ctx, interfaces.Event{
		Type:    interfaces.EventJobProgress,
		Payload: payload,
	}); err != nil {
		s.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Failed to publish progress event")
	}
}

// snapshotLocked builds a progress snapshot from in-memory counters.
// Caller holds the entry lock for the session.
func snapshotLocked(session *models.Session) models.ProgressSnapshot {
	snapshot := models.ProgressSnapshot{
		SessionID:           session.ID,
		Status:              session.Status,
		Total:               session.TotalItems,
		Completed:           session.CompletedItems,
		Successful:          session.SuccessfulItems,
		Failed:              session.FailedItems,
		AverageProcessingMs: session.AverageProcessingMs,
	}
	snapshot.ComputeDerived()
	return snapshot
}
