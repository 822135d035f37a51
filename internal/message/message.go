package message

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/calorhome/ramses-core/internal/ramses"
)

// Message is a validated packet enriched with its semantic layer.
//
// Construction never fails: decode problems surface inside the payload
// (via the "_error" field) rather than as construction errors, because
// a message with an undecodable payload is still worth indexing and
// persisting.
type Message struct {
	pkt      ramses.Packet
	reg      *Registry
	ctx      string
	hasArray bool

	once   sync.Once
	fields Fields
}

// New wraps a packet with the semantic layer.
//
// The payload is not decoded here; the first call to Payload performs
// the decode using reg. A nil registry yields empty payloads for every
// code.
func New(pkt ramses.Packet, reg *Registry) *Message {
	return &Message{
		pkt:      pkt,
		reg:      reg,
		ctx:      contextKey(pkt),
		hasArray: isArray(pkt),
	}
}

// Packet returns the underlying validated packet.
func (m *Message) Packet() ramses.Packet { return m.pkt }

// Dtm returns the packet receive timestamp.
func (m *Message) Dtm() time.Time { return m.pkt.Dtm }

// Verb returns the packet verb.
func (m *Message) Verb() ramses.Verb { return m.pkt.Verb }

// Src returns the source address.
func (m *Message) Src() ramses.Address { return m.pkt.Src }

// Dst returns the destination address.
func (m *Message) Dst() ramses.Address { return m.pkt.Dst }

// Code returns the four-character protocol code.
func (m *Message) Code() string { return m.pkt.Code }

// Ctx returns the context key: zone index, domain id or fault-log
// entry index, empty for system-wide codes.
func (m *Message) Ctx() string { return m.ctx }

// HasArray reports whether the message is a multi-record array
// broadcast.
func (m *Message) HasArray() bool { return m.hasArray }

// Header returns the correlation key identifying the logical slot this
// message occupies. Two messages with the same header describe the same
// datum at different times.
func (m *Message) Header() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		m.pkt.Src, m.pkt.Dst, strings.TrimSpace(string(m.pkt.Verb)), m.pkt.Code, m.ctx)
}

// Payload returns the decoded payload fields, decoding on first call.
//
// Unknown codes yield an empty (non-nil) Fields. A parser error or
// panic yields Fields{"_error": <text>}; the raw frame remains
// available through Packet for forensics.
func (m *Message) Payload() Fields {
	m.once.Do(m.decode)
	return m.fields
}

func (m *Message) decode() {
	m.fields = Fields{}
	if m.reg == nil {
		return
	}
	fn, ok := m.reg.Lookup(m.pkt.Code)
	if !ok {
		return
	}

	raw, err := hex.DecodeString(m.pkt.Payload)
	if err != nil {
		m.fields = Fields{ErrorField: err.Error()}
		return
	}

	fields, err := runParser(fn, m.pkt.Verb, raw)
	if err != nil {
		m.fields = Fields{ErrorField: err.Error()}
		return
	}
	if fields == nil {
		fields = Fields{}
	}
	m.fields = fields
}

// runParser isolates parser faults: a panicking parser is reported the
// same way as one returning an error.
func runParser(fn ParserFunc, verb ramses.Verb, raw []byte) (fields Fields, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return fn(verb, raw)
}

// PayloadKeys returns the pipe-delimited sorted list of payload field
// names whose decoded value is not absent. Used as the plk column for
// substring matching in the index.
func (m *Message) PayloadKeys() string {
	fields := m.Payload()
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Equal reports whether two messages carry the same information:
// identical source, destination, verb, code, context and raw payload.
// Timestamps and signal strength are excluded, so a retransmission
// compares equal to the original.
func (m *Message) Equal(other *Message) bool {
	if other == nil {
		return false
	}
	return m.pkt.Src == other.pkt.Src &&
		m.pkt.Dst == other.pkt.Dst &&
		m.pkt.Verb == other.pkt.Verb &&
		m.pkt.Code == other.pkt.Code &&
		m.ctx == other.ctx &&
		m.pkt.Payload == other.pkt.Payload
}

// String renders the message for log lines.
func (m *Message) String() string {
	return fmt.Sprintf("%s %s", m.pkt.Dtm.Format(time.RFC3339), m.pkt.String())
}
