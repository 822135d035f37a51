package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Protocol is implemented by the owner of a transport (the engine's
// frame pipeline).
type Protocol interface {
	// ConnectionMade is signalled synchronously during transport
	// construction, before any frame exchange. Implementations must be
	// idempotent.
	ConnectionMade(t Transport)

	// LineReceived delivers one inbound frame with its receive
	// timestamp. Called only while the transport is reading.
	LineReceived(line string, ts time.Time)

	// ConnectionLost signals end of stream: nil for a clean exhaustion
	// (file replay), an error otherwise.
	ConnectionLost(err error)
}

// Transport is the capability contract shared by all variants.
type Transport interface {
	// WriteFrame queues a frame for transmission. Frames are written
	// in submission order with the configured minimum gap between
	// them.
	WriteFrame(frame string) error

	// IsReading reports whether inbound frames reach the pipeline.
	IsReading() bool

	// PauseReading closes the inbound gate; frames arriving while
	// paused are discarded, not buffered.
	PauseReading()

	// ResumeReading opens the inbound gate.
	ResumeReading()

	// ExtraInfo exposes side-channel metadata such as the discovered
	// gateway identity ("gateway_id").
	ExtraInfo(key string) (any, bool)

	// Close stops the transport and releases its sink.
	Close() error
}

// ExtraGatewayID is the ExtraInfo key for the discovered local gateway
// address.
const ExtraGatewayID = "gateway_id"

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options tunes behaviour common to all variants.
type Options struct {
	// Autostart opens the inbound gate at construction. Default is
	// paused, so the owner can finish pipeline setup first.
	Autostart bool

	// MinWriteGap is the pacing interval between outbound frames.
	// Zero selects the default.
	MinWriteGap time.Duration
}

const (
	defaultMinWriteGap = 100 * time.Millisecond
	writeQueueDepth    = 128
)

// Column of the source address in the fixed-width frame grammar.
const (
	srcOff = 11
	srcEnd = 20
)

// base carries the shared mechanics: the inbound gate, the paced write
// queue, extra-info storage and gateway discovery. Variants embed it
// and supply a sink.
type base struct {
	protocol Protocol
	logger   Logger
	sink     func(frame string) error
	minGap   time.Duration

	mu      sync.Mutex
	reading bool
	extra   map[string]any

	writes    chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newBase(protocol Protocol, logger Logger, opts Options, sink func(string) error) *base {
	gap := opts.MinWriteGap
	if gap <= 0 {
		gap = defaultMinWriteGap
	}
	return &base{
		protocol: protocol,
		logger:   logger,
		sink:     sink,
		minGap:   gap,
		reading:  opts.Autostart,
		extra:    make(map[string]any),
		writes:   make(chan string, writeQueueDepth),
		closed:   make(chan struct{}),
	}
}

// start launches the write pump. Called by variants after signalling
// ConnectionMade.
func (b *base) start() {
	go b.writePump()
}

func (b *base) writePump() {
	for {
		select {
		case <-b.closed:
			return
		case frame := <-b.writes:
			if err := b.sink(frame); err != nil {
				b.logger.Error("frame write failed",
					"error", fmt.Errorf("%w: %v", ErrTransport, err).Error(),
					"frame", frame)
			}
			// Pace failed writes too, so a dead sink is not hammered
			// at queue speed.
			select {
			case <-b.closed:
				return
			case <-time.After(b.minGap):
			}
		}
	}
}

func (b *base) WriteFrame(frame string) error {
	select {
	case <-b.closed:
		return fmt.Errorf("%w: transport closed", ErrTransport)
	default:
	}

	select {
	case b.writes <- frame:
		return nil
	default:
		return fmt.Errorf("%w: write queue full", ErrTransport)
	}
}

func (b *base) IsReading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reading
}

func (b *base) PauseReading() {
	b.mu.Lock()
	b.reading = false
	b.mu.Unlock()
}

func (b *base) ResumeReading() {
	b.mu.Lock()
	b.reading = true
	b.mu.Unlock()
}

func (b *base) ExtraInfo(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.extra[key]
	return v, ok
}

func (b *base) setExtra(key string, value any) {
	b.mu.Lock()
	b.extra[key] = value
	b.mu.Unlock()
}

// deliver passes an inbound frame through the gate to the protocol.
func (b *base) deliver(line string, ts time.Time) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	if !b.IsReading() {
		return
	}
	b.noteGateway(line)
	b.protocol.LineReceived(line, ts)
}

// noteGateway records the local gateway identity from the first frame
// sourced by a type-18 device.
func (b *base) noteGateway(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, known := b.extra[ExtraGatewayID]; known {
		return
	}
	if len(line) < srcEnd {
		return
	}
	src := line[srcOff:srcEnd]
	if strings.HasPrefix(src, "18:") {
		b.extra[ExtraGatewayID] = src
		b.logger.Debug("gateway identity discovered", "gateway_id", src)
	}
}

// close shuts the write pump. Variants wrap this with sink teardown.
func (b *base) close() {
	b.closeOnce.Do(func() { close(b.closed) })
}
