package message

import (
	"fmt"
	"sort"
	"sync"

	"github.com/calorhome/ramses-core/internal/ramses"
)

// Fields is a decoded payload: semantic field name → value.
//
// A field is present only if it was decodable; an absent reading is a
// first-class nil value (or a missing key), never an error. The reserved
// key "_error" carries the raw text of a parser failure.
type Fields map[string]any

// ErrorField is the reserved Fields key carrying parser failure text.
const ErrorField = "_error"

// ParserFunc decodes a raw payload for one protocol code.
//
// The payload arrives as decoded bytes (the hex grammar was already
// validated by the codec). Returning an error marks the message payload
// as {"_error": <text>}; it never aborts message construction.
type ParserFunc func(verb ramses.Verb, payload []byte) (Fields, error)

// Registry maps protocol codes to payload parsers.
//
// The registry is an explicit value owned by the engine and populated at
// process start by whichever device-type modules are wired in; the core
// depends only on the lookup contract. Vendor extension modules may
// register additional codes without core changes.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]ParserFunc
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]ParserFunc)}
}

// Register adds a parser for a protocol code.
//
// Registering a code twice is a wiring bug and fails so the collision is
// caught at startup rather than silently shadowing a module's parser.
func (r *Registry) Register(code string, fn ParserFunc) error {
	if fn == nil {
		return fmt.Errorf("parser for code %s is nil", code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.parsers[code]; exists {
		return fmt.Errorf("parser for code %s already registered", code)
	}
	r.parsers[code] = fn
	return nil
}

// Lookup returns the parser for a code, if one is registered.
func (r *Registry) Lookup(code string) (ParserFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.parsers[code]
	return fn, ok
}

// Codes returns the registered protocol codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.parsers))
	for code := range r.parsers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
