package dispatch

import (
	"fmt"
	"runtime/debug"
	"strconv"

	"github.com/calorhome/ramses-core/internal/index"
	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Dispatcher applies routing policy to the decoded message stream.
//
// Dispatcher is not safe for concurrent use; it runs on the single
// pipeline goroutine, which is also what lets the index see messages
// strictly in arrival order.
type Dispatcher struct {
	registry *Registry
	index    *index.MessageIndex
	logger   Logger
	strict   bool

	// last array fragment per src/code, for continuation tracking
	lastFragment map[string]*message.Message
}

// New creates a dispatcher. With strict false (the default mode),
// per-message failures are logged and absorbed.
func New(registry *Registry, idx *index.MessageIndex, logger Logger, strict bool) *Dispatcher {
	return &Dispatcher{
		registry:     registry,
		index:        idx,
		logger:       logger,
		strict:       strict,
		lastFragment: make(map[string]*message.Message),
	}
}

// Process runs one message through the pipeline.
//
// In strict mode any failure (including a handler panic) propagates to
// the caller. In safe mode failures are logged at warning level with
// the offending frame and a stack trace, and Process returns nil so the
// stream continues.
func (d *Dispatcher) Process(msg *message.Message) error {
	if d.strict {
		return d.process(msg)
	}

	if err := d.safeProcess(msg); err != nil {
		d.logger.Warn("message processing failed",
			"error", err.Error(),
			"frame", msg.Packet().String(),
			"stack", string(debug.Stack()),
		)
	}
	return nil
}

// safeProcess converts handler panics into errors so a misbehaving
// module cannot take down ingestion.
func (d *Dispatcher) safeProcess(msg *message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrDispatch, r)
		}
	}()
	return d.process(msg)
}

func (d *Dispatcher) process(msg *message.Message) error {
	if err := validateAddresses(msg); err != nil {
		return err
	}

	srcDev, dstDev, zone, system := d.resolve(msg)

	// Recording into the index doubles as duplicate classification:
	// the evicted slot occupant, if informationally identical, marks a
	// retransmission.
	evicted, err := d.index.Add(msg)
	if err != nil {
		return fmt.Errorf("%w: index: %v (frame %q)", ErrDispatch, err, msg.Packet().String())
	}
	if evicted != nil && evicted.Equal(msg) {
		d.logger.Debug("duplicate absorbed", "header", msg.Header())
		return nil
	}

	d.trackArray(msg)

	if srcDev != nil {
		srcDev.LastSeen = msg.Dtm()
		srcDev.MsgCount++
	}

	var handlers []Handler
	if srcDev != nil && srcDev.handler != nil {
		handlers = append(handlers, srcDev.handler)
	}
	if dstDev != nil && dstDev.handler != nil {
		handlers = append(handlers, dstDev.handler)
	}
	if zone != nil && zone.handler != nil {
		handlers = append(handlers, zone.handler)
	}
	if system != nil && system.handler != nil {
		handlers = append(handlers, system.handler)
	}
	for _, h := range handlers {
		if err := h.HandleMessage(msg); err != nil {
			return fmt.Errorf("%w: handler: %v (frame %q)", ErrDispatch, err, msg.Packet().String())
		}
	}
	return nil
}

// validateAddresses rejects address triples structurally inconsistent
// with the verb: every message needs a real source, and only
// broadcasts may target the null address.
func validateAddresses(msg *message.Message) error {
	if msg.Src().IsNull() {
		return fmt.Errorf("%w: null source (frame %q)", ErrDispatch, msg.Packet().String())
	}
	if msg.Verb() != ramses.VerbI && msg.Dst().IsNull() {
		return fmt.Errorf("%w: %s frame addressed to null device (frame %q)",
			ErrDispatch, msg.Verb(), msg.Packet().String())
	}
	return nil
}

// resolve looks up or lazily creates the entities implied by the
// message addresses. This is the only registry mutation the dispatcher
// performs.
func (d *Dispatcher) resolve(msg *message.Message) (srcDev, dstDev *Device, zone *Zone, system *System) {
	srcDev = d.registry.Device(msg.Src())
	if msg.Dst() != msg.Src() {
		dstDev = d.registry.Device(msg.Dst())
	}

	controller := ramses.NullAddress
	switch {
	case msg.Src().Type == ramses.DeviceTypeController:
		controller = msg.Src()
	case msg.Dst().Type == ramses.DeviceTypeController:
		controller = msg.Dst()
	}
	if controller.IsNull() {
		return srcDev, dstDev, nil, nil
	}

	system = d.registry.System(controller)
	if idx, ok := zoneIdx(msg.Ctx()); ok {
		zone = d.registry.Zone(controller, idx)
	}
	return srcDev, dstDev, zone, system
}

// zoneIdx reports whether a context key names a zone (as opposed to a
// domain id or fault-log entry).
func zoneIdx(ctx string) (string, bool) {
	if len(ctx) != 2 {
		return "", false
	}
	n, err := strconv.ParseUint(ctx, 16, 8)
	if err != nil || n > 0x0F {
		return "", false
	}
	return ctx, true
}

// trackArray maintains per-src/code continuation state and logs how
// each fragment was classified.
func (d *Dispatcher) trackArray(msg *message.Message) {
	key := msg.Src().String() + "/" + msg.Code()

	prev := d.lastFragment[key]
	switch {
	case prev != nil && message.DetectArrayFragment(prev, msg):
		d.logger.Debug("array continuation", "header", msg.Header())
		d.lastFragment[key] = msg
	case msg.HasArray():
		d.lastFragment[key] = msg
	default:
		delete(d.lastFragment, key)
	}
}
