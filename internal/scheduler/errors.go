package scheduler

import "errors"

// Submission and control errors surfaced synchronously to callers. The
// REST layer maps these to response codes; the distinctions matter because
// "not found", "already terminal", and "bad request" are different answers.
var (
	// ErrEmptyDataset rejects a submission whose dataset resolves to zero items.
	ErrEmptyDataset = errors.New("dataset resolves to no items")

	// ErrStoreUnavailable rejects a submission when the durable store cannot
	// be reached. No session record is created.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrJobNotFound is returned when a job id is unknown to both the
	// registry and the durable store.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a control operation is not
	// permitted from the job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
