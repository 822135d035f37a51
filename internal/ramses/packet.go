package ramses

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed column offsets of the core frame.
//
//	045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F
//	^rssi^vb  ^sep^src      ^dst      ^addr3    ^code^len^payload
const (
	rssiOff    = 0
	verbOff    = 4
	sepOff     = 7
	srcOff     = 11
	dstOff     = 21
	addr3Off   = 31
	codeOff    = 41
	lenOff     = 46
	payloadOff = 50

	// codeLen is the width of the hex code field.
	codeLen = 4

	// lenFieldLen is the width of the decimal length field.
	lenFieldLen = 3

	// minFrameLen is the shortest possible core fragment: full header plus
	// a single payload byte (two hex characters).
	minFrameLen = payloadOff + 2

	// maxPayloadBytes is the longest payload the radio grammar carries.
	maxPayloadBytes = 48

	// rssiLocal is the RSSI field of a locally-originated frame, which has
	// no radio metadata.
	rssiLocal = "..."
)

// Annotation delimiters appended by the dongle firmware after the core
// fragment.
const (
	hintDelim    = '<'
	errorDelim   = '*'
	commentDelim = '#'
)

// Packet is a single validated RAMSES-II frame.
//
// A Packet is immutable once constructed: ParsePacket either returns a
// fully valid value or fails with ErrPacketInvalid. Invariants held by
// every Packet:
//
//   - Len*2 == len(Payload)
//   - Src != Dst unless Dst is the null address
//   - Code is exactly 4 uppercase hex characters
type Packet struct {
	// Dtm is the receive (or replay) timestamp.
	Dtm time.Time

	// RSSI is the 3-character signal strength, or "..." for a
	// locally-originated frame.
	RSSI string

	// Verb is one of RQ, RP, " I", " W".
	Verb Verb

	// Src, Dst and Addr3 form the address triple.
	Src, Dst, Addr3 Address

	// Code is the 4-character uppercase hex message code.
	Code string

	// Len is the declared payload byte count.
	Len int

	// Payload is the Len*2-character uppercase hex payload.
	Payload string

	// Hint and Comment carry any trailing "<" / "#" annotations verbatim.
	Hint    string
	Comment string
}

// ParsePacket parses one raw wire line into a validated Packet.
//
// The trailing annotations ("<" hint, "*" error, "#" comment) are split
// off the core fragment first. A present error annotation short-circuits
// parsing: the transport already flagged the frame and the error text is
// surfaced via ErrPacketInvalid. Structural violations (null fragment,
// length mismatch, bad address grammar, src == dst) also fail with
// ErrPacketInvalid carrying the offending raw text.
func ParsePacket(raw string, dtm time.Time) (Packet, error) {
	frag, hint, errText, comment := splitAnnotations(raw)

	if errText != "" {
		return Packet{}, fmt.Errorf("%w: transport error %q in frame %q", ErrPacketInvalid, errText, raw)
	}

	frag = strings.TrimRight(frag, " \t\r\n")
	if strings.TrimSpace(frag) == "" {
		return Packet{}, fmt.Errorf("%w: null packet %q", ErrPacketInvalid, raw)
	}
	if len(frag) < minFrameLen {
		return Packet{}, fmt.Errorf("%w: frame too short (%d chars) %q", ErrPacketInvalid, len(frag), raw)
	}

	rssi := frag[rssiOff : rssiOff+3]
	if rssi != rssiLocal && !allDigits(rssi) {
		return Packet{}, fmt.Errorf("%w: bad rssi %q in frame %q", ErrPacketInvalid, rssi, raw)
	}

	verb, err := ParseVerb(frag[verbOff : verbOff+2])
	if err != nil {
		return Packet{}, fmt.Errorf("%w in frame %q", err, raw)
	}

	if frag[sepOff:sepOff+3] != "---" {
		return Packet{}, fmt.Errorf("%w: bad separator in frame %q", ErrPacketInvalid, raw)
	}

	src, err := ParseAddress(frag[srcOff : srcOff+addressLen])
	if err != nil {
		return Packet{}, fmt.Errorf("%w in frame %q", err, raw)
	}
	dst, err := ParseAddress(frag[dstOff : dstOff+addressLen])
	if err != nil {
		return Packet{}, fmt.Errorf("%w in frame %q", err, raw)
	}
	addr3, err := ParseAddress(frag[addr3Off : addr3Off+addressLen])
	if err != nil {
		return Packet{}, fmt.Errorf("%w in frame %q", err, raw)
	}

	if src == dst && !dst.IsNull() {
		return Packet{}, fmt.Errorf("%w: src == dst (%s) in frame %q", ErrPacketInvalid, src, raw)
	}

	code := frag[codeOff : codeOff+codeLen]
	if !isUpperHex(code) {
		return Packet{}, fmt.Errorf("%w: bad code %q in frame %q", ErrPacketInvalid, code, raw)
	}

	lenField := frag[lenOff : lenOff+lenFieldLen]
	declared, err := strconv.Atoi(lenField)
	if err != nil || declared < 1 || declared > maxPayloadBytes {
		return Packet{}, fmt.Errorf("%w: bad length field %q in frame %q", ErrPacketInvalid, lenField, raw)
	}

	payload := frag[payloadOff:]
	if len(payload) != declared*2 {
		return Packet{}, fmt.Errorf("%w: declared %d bytes but payload has %d hex chars in frame %q",
			ErrPacketInvalid, declared, len(payload), raw)
	}
	if !isUpperHex(payload) {
		return Packet{}, fmt.Errorf("%w: non-hex payload in frame %q", ErrPacketInvalid, raw)
	}

	return Packet{
		Dtm:     dtm,
		RSSI:    rssi,
		Verb:    verb,
		Src:     src,
		Dst:     dst,
		Addr3:   addr3,
		Code:    code,
		Len:     declared,
		Payload: payload,
		Hint:    hint,
		Comment: comment,
	}, nil
}

// splitAnnotations separates the core fragment from trailing dongle
// annotations. Delimiters nest left to right: comment ("#") is stripped
// first, then error ("*"), then hint ("<"), so an annotation may itself
// contain later delimiters' text.
func splitAnnotations(raw string) (frag, hint, errText, comment string) {
	frag = raw
	if i := strings.IndexByte(frag, commentDelim); i >= 0 {
		comment = strings.TrimSpace(frag[i+1:])
		frag = frag[:i]
	}
	if i := strings.IndexByte(frag, errorDelim); i >= 0 {
		errText = strings.TrimSpace(frag[i+1:])
		frag = frag[:i]
	}
	if i := strings.IndexByte(frag, hintDelim); i >= 0 {
		hint = strings.TrimSpace(frag[i+1:])
		frag = frag[:i]
	}
	return frag, hint, errText, comment
}

// isUpperHex reports whether s consists solely of uppercase hex digits.
func isUpperHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return len(s) > 0
}

// Serialize returns the core wire frame for the packet.
//
// This is the exact inverse of ParsePacket for annotation-free frames:
// Serialize(ParsePacket(f)) == f.
func (p Packet) Serialize() string {
	return fmt.Sprintf("%s %s --- %s %s %s %s %03d %s",
		p.RSSI, p.Verb, p.Src, p.Dst, p.Addr3, p.Code, p.Len, p.Payload)
}

// String returns the core wire frame. Equivalent to Serialize.
func (p Packet) String() string {
	return p.Serialize()
}
