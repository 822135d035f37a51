package ramses

import (
	"fmt"
	"time"
)

// Command argument limits.
const (
	// maxZoneIdx is the highest zone index a controller supports.
	maxZoneIdx = 15

	// minSetpoint and maxSetpoint bound a zone setpoint in °C.
	minSetpoint = 5.0
	maxSetpoint = 35.0

	// setpointScale converts °C to the wire's centi-degree encoding.
	setpointScale = 100
)

// Protocol codes used by the typed command constructors.
const (
	CodeSystemSync  = "1F09"
	CodeRelayDemand = "0008"
	CodeZoneConfig  = "000A"
	CodeCO2Level    = "1298"
	CodeSetpoint    = "2309"
	CodeSystemMode  = "2E04"
	CodeZoneTemp    = "30C9"
	CodeFanState    = "31D9"
	CodeVentStatus  = "31DA"
	CodeHeatDemand  = "3150"
	CodeDeviceInfo  = "10E0"
)

// SystemMode is the operating mode carried by a 2E04 write.
type SystemMode byte

// System operating modes, numbered as the 2E04 payload carries them.
const (
	ModeAuto          SystemMode = 0x00
	ModeHeatOff       SystemMode = 0x01
	ModeEco           SystemMode = 0x02
	ModeAway          SystemMode = 0x03
	ModeDayOff        SystemMode = 0x04
	ModeDayOffEco     SystemMode = 0x05
	ModeAutoWithReset SystemMode = 0x06
	ModeCustom        SystemMode = 0x07
)

// Command is an outbound, not-yet-sent RAMSES-II frame.
//
// Commands are built by per-operation constructors that validate their
// arguments up front: construction either yields a sendable Command or
// fails with ErrCommandInvalid. A Command serializes to the identical
// wire grammar as a received Packet, minus the RSSI column (the dongle
// has no radio metadata for its own transmissions).
type Command struct {
	verb    Verb
	src     Address
	dst     Address
	addr3   Address
	code    string
	payload string
}

// NewCommand builds a generic outbound command.
//
// The verb must be valid, the code exactly 4 uppercase hex characters,
// the payload 1-48 bytes of uppercase hex, and the destination non-null
// for directed verbs (RQ, RP, W). Violations fail with ErrCommandInvalid.
func NewCommand(verb Verb, code string, src, dst Address, payload string) (Command, error) {
	if !verb.IsValid() {
		return Command{}, fmt.Errorf("%w: bad verb %q", ErrCommandInvalid, string(verb))
	}
	if !isUpperHex(code) || len(code) != codeLen {
		return Command{}, fmt.Errorf("%w: bad code %q", ErrCommandInvalid, code)
	}
	if len(payload) == 0 || len(payload)%2 != 0 || len(payload)/2 > maxPayloadBytes || !isUpperHex(payload) {
		return Command{}, fmt.Errorf("%w: bad payload %q", ErrCommandInvalid, payload)
	}
	if src.IsNull() {
		return Command{}, fmt.Errorf("%w: null source address", ErrCommandInvalid)
	}
	if dst.IsNull() && verb != VerbI {
		return Command{}, fmt.Errorf("%w: %s frame addressed to the null device", ErrCommandInvalid, verb)
	}
	if src == dst {
		return Command{}, fmt.Errorf("%w: src == dst (%s)", ErrCommandInvalid, src)
	}

	addr3 := NullAddress
	if dst.IsNull() {
		// Broadcast form: the third slot repeats the source.
		addr3 = src
	}

	return Command{
		verb:    verb,
		src:     src,
		dst:     dst,
		addr3:   addr3,
		code:    code,
		payload: payload,
	}, nil
}

// NewZoneSetpoint builds a 2309 write setting a zone's target temperature.
//
// zone must be 0-15 and celsius within 5-35 °C.
func NewZoneSetpoint(src, dst Address, zone int, celsius float64) (Command, error) {
	if zone < 0 || zone > maxZoneIdx {
		return Command{}, fmt.Errorf("%w: zone %d out of range 0-%d", ErrCommandInvalid, zone, maxZoneIdx)
	}
	if celsius < minSetpoint || celsius > maxSetpoint {
		return Command{}, fmt.Errorf("%w: setpoint %.1f out of range %.0f-%.0f", ErrCommandInvalid, celsius, minSetpoint, maxSetpoint)
	}

	centi := int(celsius*setpointScale + 0.5)
	payload := fmt.Sprintf("%02X%04X", zone, centi)
	return NewCommand(VerbW, CodeSetpoint, src, dst, payload)
}

// NewZoneTempRequest builds a 30C9 request for a zone's measured
// temperature.
func NewZoneTempRequest(src, dst Address, zone int) (Command, error) {
	if zone < 0 || zone > maxZoneIdx {
		return Command{}, fmt.Errorf("%w: zone %d out of range 0-%d", ErrCommandInvalid, zone, maxZoneIdx)
	}
	return NewCommand(VerbRQ, CodeZoneTemp, src, dst, fmt.Sprintf("%02X", zone))
}

// NewCO2Request builds a 1298 request for a sensor's CO₂ level.
func NewCO2Request(src, dst Address) (Command, error) {
	return NewCommand(VerbRQ, CodeCO2Level, src, dst, "00")
}

// NewSystemMode builds a 2E04 write changing the controller's operating
// mode.
//
// A nil until makes the change permanent. Supplying until with ModeAuto is
// contradictory (auto is the permanent schedule) and fails with
// ErrCommandInvalid.
func NewSystemMode(src, dst Address, mode SystemMode, until *time.Time) (Command, error) {
	switch mode {
	case ModeAuto, ModeHeatOff, ModeEco, ModeAway, ModeDayOff, ModeDayOffEco, ModeAutoWithReset, ModeCustom:
	default:
		return Command{}, fmt.Errorf("%w: unknown system mode 0x%02X", ErrCommandInvalid, byte(mode))
	}
	if mode == ModeAuto && until != nil {
		return Command{}, fmt.Errorf("%w: mode auto cannot carry an until time", ErrCommandInvalid)
	}

	payload := fmt.Sprintf("%02X", byte(mode))
	if until == nil {
		payload += "FFFFFFFFFFFF00"
	} else {
		u := until.UTC()
		payload += fmt.Sprintf("%02X%02X%02X%02X%04X01",
			u.Minute(), u.Hour(), u.Day(), int(u.Month()), u.Year())
	}
	return NewCommand(VerbW, CodeSystemMode, src, dst, payload)
}

// Verb returns the command's verb.
func (c Command) Verb() Verb { return c.verb }

// Code returns the command's 4-character hex code.
func (c Command) Code() string { return c.code }

// Dst returns the command's destination address.
func (c Command) Dst() Address { return c.dst }

// Payload returns the command's hex payload.
func (c Command) Payload() string { return c.payload }

// Frame serializes the command to its outbound wire form.
//
// Outbound frames carry no RSSI column; the length field is padded to
// three digits and the unused third address is emitted as the null
// address (or repeats the source for broadcasts).
func (c Command) Frame() string {
	return fmt.Sprintf("%s --- %s %s %s %s %03d %s",
		c.verb, c.src, c.dst, c.addr3, c.code, len(c.payload)/2, c.payload)
}

// String returns the outbound wire form. Equivalent to Frame.
func (c Command) String() string {
	return c.Frame()
}
