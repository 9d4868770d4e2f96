package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting to a stopped runner
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrTaskQueueFull is returned when the task queue is full
	ErrTaskQueueFull = errors.New("task queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSyncInProgress is returned when another worker or replica is already
	// syncing the same client and provider
	ErrSyncInProgress = errors.New("sync already in progress for this client/provider")

	// ErrTaskPanicked is recorded when a task panics
	ErrTaskPanicked = errors.New("task panicked")
)
