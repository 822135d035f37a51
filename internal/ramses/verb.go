package ramses

import "fmt"

// Verb is the 2-character RAMSES-II verb. The " I" and " W" forms carry a
// leading space to preserve the fixed column width of the wire grammar.
type Verb string

// The four RAMSES-II verbs.
const (
	// VerbRQ is a request.
	VerbRQ Verb = "RQ"

	// VerbRP is a reply to a request.
	VerbRP Verb = "RP"

	// VerbI is an unsolicited information broadcast.
	VerbI Verb = " I"

	// VerbW is a write (command) to a device.
	VerbW Verb = " W"
)

// ParseVerb parses a wire verb field.
//
// The bare forms "I" and "W" are normalised to their space-prefixed wire
// representation. Unknown verbs fail with ErrPacketInvalid.
func ParseVerb(s string) (Verb, error) {
	switch s {
	case "RQ":
		return VerbRQ, nil
	case "RP":
		return VerbRP, nil
	case " I", "I":
		return VerbI, nil
	case " W", "W":
		return VerbW, nil
	default:
		return "", fmt.Errorf("%w: bad verb %q", ErrPacketInvalid, s)
	}
}

// IsValid returns true for one of the four wire verbs.
func (v Verb) IsValid() bool {
	switch v {
	case VerbRQ, VerbRP, VerbI, VerbW:
		return true
	default:
		return false
	}
}

// String returns the fixed-width wire form of the verb.
func (v Verb) String() string {
	return string(v)
}
