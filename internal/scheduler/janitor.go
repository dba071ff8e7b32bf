// -----------------------------------------------------------------------
// Registry Janitor - evicts terminal sessions after their grace period
// -----------------------------------------------------------------------

package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Start begins the cron-driven registry sweep. Terminal sessions stay in
// the registry for the configured grace period so status queries keep
// answering from memory, then get evicted; the durable record remains the
// source of truth afterwards.
func (s *Scheduler) Start(janitorSchedule string) error {
	if janitorSchedule == "" {
		janitorSchedule = "@every 1m"
	}

	c := cron.New()
	if _, err := c.AddFunc(janitorSchedule, s.evictExpired); err != nil {
		return fmt.Errorf("schedule registry janitor: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info().Str("schedule", janitorSchedule).Msg("Registry janitor started")
	return nil
}

// evictExpired removes terminal registry entries whose grace period has
// elapsed.
func (s *Scheduler) evictExpired() {
	now := time.Now()

	s.mu.Lock()
	var expired []string
	for sessionID, entry := range s.registry {
		entry.mu.Lock()
		done := entry.session.Status.IsTerminal() && !entry.evictAt.IsZero() && now.After(entry.evictAt)
		entry.mu.Unlock()
		if done {
			expired = append(expired, sessionID)
		}
	}
	for _, sessionID := range expired {
		delete(s.registry, sessionID)
	}
	s.mu.Unlock()

	for _, sessionID := range expired {
		s.tracker.Invalidate(sessionID)
	}

	if len(expired) > 0 {
		s.logger.Debug().Int("evicted", len(expired)).Msg("Registry janitor swept terminal sessions")
	}
}
