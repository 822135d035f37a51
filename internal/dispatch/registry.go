package dispatch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

// Handler is the message hook implemented by device-type modules.
// Handlers run on the pipeline goroutine; a returned error is subject
// to the dispatcher's failure mode.
type Handler interface {
	HandleMessage(msg *message.Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg *message.Message) error

func (f HandlerFunc) HandleMessage(msg *message.Message) error { return f(msg) }

// Device is a physical RF node seen on the network.
type Device struct {
	Addr     ramses.Address
	LastSeen time.Time
	MsgCount uint64

	handler Handler
}

// SetHandler installs the module hook invoked for each message the
// device sends or receives.
func (d *Device) SetHandler(h Handler) { d.handler = h }

// Zone is one heating circuit under a controller.
type Zone struct {
	Controller ramses.Address
	Idx        string

	handler Handler
}

// SetHandler installs the module hook invoked for each zone-scoped
// message.
func (z *Zone) SetHandler(h Handler) { z.handler = h }

// System is the evohome-style installation rooted at one controller.
type System struct {
	Controller ramses.Address

	handler Handler
}

// SetHandler installs the module hook invoked for each system-scoped
// message.
func (s *System) SetHandler(h Handler) { s.handler = h }

// Filter is the include/exclude address policy for entity creation.
// An empty allow list admits everything not blocked.
type Filter struct {
	Allow []string
	Block []string
}

func (f Filter) admits(addr ramses.Address) bool {
	id := addr.String()
	for _, b := range f.Block {
		if b == id {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, a := range f.Allow {
		if a == id {
			return true
		}
	}
	return false
}

// Registry owns the entities discovered on the network. It is created
// by the engine and passed by reference to the dispatcher.
type Registry struct {
	// Discovery controls lazy creation: when false, messages from
	// unknown devices resolve to no entity rather than creating one.
	Discovery bool
	Filter    Filter

	mu      sync.RWMutex
	devices map[string]*Device
	zones   map[string]*Zone
	systems map[string]*System
}

// NewRegistry creates an empty registry with discovery enabled.
func NewRegistry() *Registry {
	return &Registry{
		Discovery: true,
		devices:   make(map[string]*Device),
		zones:     make(map[string]*Zone),
		systems:   make(map[string]*System),
	}
}

// Device returns the device for addr, creating it when discovery and
// the filter allow. Returns nil for the null address and for filtered
// or undiscovered devices.
func (r *Registry) Device(addr ramses.Address) *Device {
	if addr.IsNull() {
		return nil
	}

	id := addr.String()

	r.mu.RLock()
	d := r.devices[id]
	r.mu.RUnlock()
	if d != nil {
		return d
	}

	if !r.Discovery || !r.Filter.admits(addr) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.devices[id]; d != nil {
		return d
	}
	d = &Device{Addr: addr}
	r.devices[id] = d
	return d
}

// Zone returns the zone for a controller and zone index, creating it
// when discovery and the filter allow.
func (r *Registry) Zone(controller ramses.Address, idx string) *Zone {
	if controller.IsNull() || idx == "" {
		return nil
	}
	if !r.Filter.admits(controller) {
		return nil
	}

	key := fmt.Sprintf("%s/%s", controller, idx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if z := r.zones[key]; z != nil {
		return z
	}
	if !r.Discovery {
		return nil
	}
	z := &Zone{Controller: controller, Idx: idx}
	r.zones[key] = z
	return z
}

// System returns the system rooted at a controller, creating it when
// discovery and the filter allow.
func (r *Registry) System(controller ramses.Address) *System {
	if controller.IsNull() || !r.Filter.admits(controller) {
		return nil
	}

	id := controller.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.systems[id]; s != nil {
		return s
	}
	if !r.Discovery {
		return nil
	}
	s := &System{Controller: controller}
	r.systems[id] = s
	return s
}

// Devices returns the known devices sorted by address.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Addr.String() < out[j].Addr.String()
	})
	return out
}

// Zones returns the known zones sorted by controller and index.
func (r *Registry) Zones() []*Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Zone, 0, len(r.zones))
	for _, z := range r.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Controller != out[j].Controller {
			return out[i].Controller.String() < out[j].Controller.String()
		}
		return out[i].Idx < out[j].Idx
	})
	return out
}
