package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calorhome/ramses-core/internal/dispatch"
	"github.com/calorhome/ramses-core/internal/index"
	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
	"github.com/calorhome/ramses-core/internal/store"
	"github.com/calorhome/ramses-core/internal/transport"
)

// Logger interface for engine logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Telemetry is the interface the engine needs from the InfluxDB client.
type Telemetry interface {
	// WriteMessageField records one numeric decoded payload field.
	WriteMessageField(src, code, field string, value float64, at time.Time)

	// WriteTrafficMetric records an engine throughput counter.
	WriteTrafficMetric(metricName string, value float64)
}

// defaultFlushTimeout bounds the storage drain at shutdown.
const defaultFlushTimeout = 5 * time.Second

// Options tunes engine behaviour.
type Options struct {
	// FlushTimeout bounds how long Stop waits for queued writes to
	// reach the store before joining the worker. Zero selects the
	// default.
	FlushTimeout time.Duration
}

// Engine owns the decode pipeline and the lifecycle of its parts.
//
// All frame processing happens on the transport's reader goroutine, so
// the dispatcher and index see messages strictly in arrival order.
// Start, Stop, Send and the accessors are safe to call from other
// goroutines.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	index      *index.MessageIndex
	parsers    *message.Registry
	worker     *store.Worker // may be nil: no durable store
	telemetry  Telemetry     // may be nil: no export
	logger     Logger

	flushTimeout time.Duration

	mu        sync.Mutex
	transport transport.Transport
	lostErr   error

	lost     chan struct{}
	lostOnce sync.Once

	framesTotal atomic.Uint64
	parseErrors atomic.Uint64
}

// Stats is a snapshot of the engine's traffic counters.
type Stats struct {
	// FramesTotal counts every line delivered by the transport.
	FramesTotal uint64

	// ParseErrors counts lines rejected by the packet codec.
	ParseErrors uint64

	// StoreDropped counts submissions discarded by a bounded store queue.
	StoreDropped uint64
}

// New creates an engine around an assembled pipeline.
//
// Parameters:
//   - dispatcher: routing policy, already bound to idx
//   - idx: the most-recent-message index; released by Stop
//   - parsers: payload parser registry used to decode messages
//   - worker: durable storage worker (may be nil)
//   - telemetry: telemetry sink (may be nil)
//   - logger: logger instance
func New(dispatcher *dispatch.Dispatcher, idx *index.MessageIndex, parsers *message.Registry,
	worker *store.Worker, telemetry Telemetry, logger Logger, opts Options) *Engine {
	flushTimeout := opts.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	return &Engine{
		dispatcher:   dispatcher,
		index:        idx,
		parsers:      parsers,
		worker:       worker,
		telemetry:    telemetry,
		logger:       logger,
		flushTimeout: flushTimeout,
		lost:         make(chan struct{}),
	}
}

// ConnectionMade attaches the transport. Transports signal it during
// construction; repeat notifications for the same connection are
// ignored.
func (e *Engine) ConnectionMade(t transport.Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport != nil {
		return
	}
	e.transport = t
	e.logger.Info("transport attached")
}

// LineReceived runs one raw frame through the pipeline.
func (e *Engine) LineReceived(line string, ts time.Time) {
	e.framesTotal.Add(1)

	pkt, err := ramses.ParsePacket(line, ts)
	if err != nil {
		e.parseErrors.Add(1)
		e.logger.Debug("frame rejected", "error", err.Error(), "line", line)
		return
	}

	msg := message.New(pkt, e.parsers)
	if err := e.dispatcher.Process(msg); err != nil {
		// Only strict dispatch surfaces errors; the frame is not
		// persisted or exported.
		e.logger.Error("dispatch failed", "error", err.Error(), "frame", line)
		return
	}

	e.persist(msg)
	e.export(msg)
}

// ConnectionLost records end of stream and releases Done waiters.
func (e *Engine) ConnectionLost(err error) {
	e.lostOnce.Do(func() {
		e.mu.Lock()
		e.lostErr = err
		e.mu.Unlock()

		if err != nil {
			e.logger.Warn("transport connection lost", "error", err.Error())
		} else {
			e.logger.Info("transport stream ended")
		}
		close(e.lost)
	})
}

// Start opens the transport's inbound gate. The pipeline must be fully
// assembled before Start; transports discard frames arriving earlier.
func (e *Engine) Start() error {
	t := e.currentTransport()
	if t == nil {
		return ErrNoTransport
	}
	t.ResumeReading()
	e.logger.Info("engine started")
	return nil
}

// Stop tears the pipeline down: pauses and closes the transport, drains
// and joins the storage worker, writes final traffic counters, and
// releases the index. Safe to call more than once.
func (e *Engine) Stop() error {
	if t := e.currentTransport(); t != nil {
		t.PauseReading()
		if err := t.Close(); err != nil {
			e.logger.Warn("transport close failed", "error", err.Error())
		}
	}

	if e.worker != nil {
		if err := e.worker.Flush(e.flushTimeout); err != nil && !errors.Is(err, store.ErrStopped) {
			e.logger.Warn("storage flush incomplete", "error", err.Error())
		}
		if err := e.worker.Stop(); err != nil {
			e.logger.Error("storage worker stop failed", "error", err.Error())
		}
	}

	if e.telemetry != nil {
		e.telemetry.WriteTrafficMetric("frames_total", float64(e.framesTotal.Load()))
		e.telemetry.WriteTrafficMetric("parse_errors", float64(e.parseErrors.Load()))
	}

	if e.index != nil {
		e.index.Stop()
	}

	e.logger.Info("engine stopped",
		"frames_total", e.framesTotal.Load(),
		"parse_errors", e.parseErrors.Load())
	return nil
}

// Send queues an outbound command frame on the transport.
func (e *Engine) Send(cmd ramses.Command) error {
	t := e.currentTransport()
	if t == nil {
		return ErrNoTransport
	}
	if err := t.WriteFrame(cmd.Frame()); err != nil {
		return fmt.Errorf("sending %s: %w", cmd.Code(), err)
	}
	e.logger.Debug("command queued", "command", cmd.String())
	return nil
}

// GatewayID returns the local gateway address once a transport has
// discovered it.
func (e *Engine) GatewayID() (string, bool) {
	t := e.currentTransport()
	if t == nil {
		return "", false
	}
	v, ok := t.ExtraInfo(transport.ExtraGatewayID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Done is closed when the transport signals end of stream. For the
// file-replay variant this marks log exhaustion.
func (e *Engine) Done() <-chan struct{} {
	return e.lost
}

// Err returns the reason the stream ended, nil for clean exhaustion.
// Valid after Done is closed.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lostErr
}

// Stats returns a snapshot of the traffic counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		FramesTotal: e.framesTotal.Load(),
		ParseErrors: e.parseErrors.Load(),
	}
	if e.worker != nil {
		s.StoreDropped = e.worker.Dropped()
	}
	return s
}

func (e *Engine) currentTransport() transport.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport
}

// persist hands the message to the storage worker. Queue-full drops are
// expected under a configured limit and logged at warning level.
func (e *Engine) persist(msg *message.Message) {
	if e.worker == nil {
		return
	}
	err := e.worker.Submit(msg)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrQueueFull):
		e.logger.Warn("store queue full, message dropped", "header", msg.Header())
	default:
		e.logger.Error("store submit failed", "error", err.Error(), "header", msg.Header())
	}
}

// export writes every numeric decoded field as a telemetry point.
func (e *Engine) export(msg *message.Message) {
	if e.telemetry == nil {
		return
	}
	src := msg.Src().String()
	code := msg.Code()
	for name, value := range msg.Payload() {
		if name == message.ErrorField {
			continue
		}
		if f, ok := numeric(value); ok {
			e.telemetry.WriteMessageField(src, code, name, f, msg.Dtm())
		}
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
