package store

import "errors"

var (
	// ErrStopped indicates a submission to a worker that has been
	// stopped.
	ErrStopped = errors.New("store: worker stopped")

	// ErrFlushTimeout indicates a flush barrier that was not reached
	// within the caller's deadline.
	ErrFlushTimeout = errors.New("store: flush timed out")

	// ErrQueueFull indicates a submission dropped because the
	// configured queue limit was reached.
	ErrQueueFull = errors.New("store: queue full")
)
