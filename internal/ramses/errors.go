package ramses

import "errors"

// Domain errors for the RAMSES-II codec.
var (
	// ErrPacketInvalid is returned when a received frame violates the wire
	// grammar: null/too-short fragment, length mismatch, bad address, or a
	// transport-reported error annotation.
	ErrPacketInvalid = errors.New("ramses: invalid packet")

	// ErrCommandInvalid is returned when an outbound command is built from
	// contradictory or out-of-range arguments.
	ErrCommandInvalid = errors.New("ramses: invalid command")
)
