package ramses

import (
	"fmt"
	"strings"
)

// Address length and layout per the RAMSES-II grammar.
const (
	// addressLen is the fixed width of a wire address.
	addressLen = 9

	// typeLen is the width of the device-type prefix.
	typeLen = 2

	// serialLen is the width of the serial suffix.
	serialLen = 6
)

// Well-known device-type prefixes.
//
// The full table is vendor-specific; only the types the core itself needs
// to recognise are named here.
const (
	// DeviceTypeController is the system controller (evohome-style).
	DeviceTypeController = "01"

	// DeviceTypeGateway is the local radio gateway dongle.
	DeviceTypeGateway = "18"
)

// Address is a 9-character RAMSES-II device address.
//
// Format: TT:NNNNNN
//   - TT:     2-digit device type
//   - NNNNNN: 6-digit serial
//
// The null address "--:------" is used where a slot in the address triple
// is unused. Addresses are validated at construction and immutable.
type Address struct {
	// Type is the 2-digit device-type prefix ("--" for the null address).
	Type string

	// Serial is the 6-digit serial ("------" for the null address).
	Serial string
}

// NullAddress is the unused-slot address "--:------".
var NullAddress = Address{Type: "--", Serial: "------"}

// ParseAddress parses a wire address string.
//
// Accepts either TT:NNNNNN (both parts decimal digits) or the null
// address "--:------". Anything else fails with ErrPacketInvalid.
func ParseAddress(s string) (Address, error) {
	if len(s) != addressLen || s[typeLen] != ':' {
		return Address{}, fmt.Errorf("%w: bad address %q", ErrPacketInvalid, s)
	}

	typ := s[:typeLen]
	serial := s[typeLen+1:]

	if typ == NullAddress.Type && serial == NullAddress.Serial {
		return NullAddress, nil
	}

	if !allDigits(typ) || !allDigits(serial) {
		return Address{}, fmt.Errorf("%w: bad address %q", ErrPacketInvalid, s)
	}

	return Address{Type: typ, Serial: serial}, nil
}

// allDigits reports whether s consists solely of ASCII decimal digits.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// IsNull returns true for the null address "--:------".
func (a Address) IsNull() bool {
	return a == NullAddress
}

// IsGateway returns true if the address belongs to a local radio gateway.
func (a Address) IsGateway() bool {
	return a.Type == DeviceTypeGateway
}

// String returns the address in wire format.
//
// Example: "01:145038"
func (a Address) String() string {
	var b strings.Builder
	b.Grow(addressLen)
	b.WriteString(a.Type)
	b.WriteByte(':')
	b.WriteString(a.Serial)
	return b.String()
}
