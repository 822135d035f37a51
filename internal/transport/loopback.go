package transport

import (
	"sync"
	"time"
)

// Loopback is the in-process variant: frames are injected directly and
// writes are captured, for tests and embedded simulators.
type Loopback struct {
	*base

	mu      sync.Mutex
	written []string
}

// NewLoopback creates a loopback transport and signals ConnectionMade.
func NewLoopback(protocol Protocol, logger Logger, opts Options) *Loopback {
	l := &Loopback{}
	l.base = newBase(protocol, logger, opts, l.capture)
	protocol.ConnectionMade(l)
	l.start()
	return l
}

func (l *Loopback) capture(frame string) error {
	l.mu.Lock()
	l.written = append(l.written, frame)
	l.mu.Unlock()
	return nil
}

// InjectFrame presents an inbound frame to the transport as if it had
// arrived from the radio. Discarded while paused.
func (l *Loopback) InjectFrame(line string) {
	l.deliver(line, time.Now())
}

// InjectFrameAt is InjectFrame with an explicit receive timestamp.
func (l *Loopback) InjectFrameAt(line string, ts time.Time) {
	l.deliver(line, ts)
}

// Writes returns the frames written so far, oldest first.
func (l *Loopback) Writes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.written))
	copy(out, l.written)
	return out
}

// Close stops the write pump.
func (l *Loopback) Close() error {
	l.close()
	return nil
}
