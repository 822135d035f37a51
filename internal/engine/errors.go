package engine

import "errors"

// Domain errors for the engine lifecycle.
var (
	// ErrNoTransport is returned by Start and Send when no transport has
	// attached via ConnectionMade.
	ErrNoTransport = errors.New("engine: no transport attached")
)
