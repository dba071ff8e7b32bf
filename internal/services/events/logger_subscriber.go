package events

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/resolvo/internal/interfaces"
	"github.com/ternarybob/resolvo/internal/models"
)

// SubscribeLogger mirrors job status and progress events into the log so
// operators can follow long runs without polling the status endpoint.
func SubscribeLogger(eventService interfaces.EventService, logger arbor.ILogger) error {
	if err := eventService.Subscribe(interfaces.EventJobStatusChange, func(ctx context.Context, event interfaces.Event) error {
		change, ok := event.Payload.(models.ProgressEvent)
		if !ok {
			logger.Warn().Msg("Invalid job_status_change payload type")
			return nil
		}
		logger.Info().
			Str("session_id", change.SessionID).
			Str("status", string(change.Status)).
			Msg("Job status changed")
		return nil
	}); err != nil {
		return err
	}

	return eventService.Subscribe(interfaces.EventJobProgress, func(ctx context.Context, event interfaces.Event) error {
		progress, ok := event.Payload.(models.ProgressEvent)
		if !ok {
			logger.Warn().Msg("Invalid job_progress payload type")
			return nil
		}
		logger.Debug().
			Str("session_id", progress.SessionID).
			Int("completed", progress.Snapshot.Completed).
			Int("total", progress.Snapshot.Total).
			Int("percentage", progress.Snapshot.Percentage).
			Int("eta_seconds", progress.Snapshot.ETASeconds).
			Msg("Job progress")
		return nil
	})
}
