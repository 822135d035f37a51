package parsers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

// Default returns a registry populated with the stock parser set.
func Default() *message.Registry {
	reg := message.NewRegistry()
	for code, fn := range stock {
		// Registration of a literal map cannot collide.
		_ = reg.Register(code, fn)
	}
	return reg
}

var stock = map[string]message.ParserFunc{
	"1F09": parseSystemSync,
	"30C9": recordParser("temp_c", 3, parseTempRecord),
	"2309": recordParser("setpoint_c", 3, parseTempRecord),
	"000A": recordParser("zone_config", 6, parseZoneConfigRecord),
	"0008": parseRelayDemand,
	"3150": parseHeatDemand,
	"1298": parseCO2Level,
	"1290": parseOutdoorTemp,
	"12A0": parseIndoorHumidity,
	"1060": parseBattery,
	"12B0": parseWindowState,
	"2E04": parseSystemMode,
	"31D9": parseFanState,
	"31DA": parseVentStatus,
	"10E0": parseDeviceInfo,
}

// Fill values marking an absent reading in the wire encoding.
const (
	fillTemp    = 0x7FFF
	fillPercent = 0xFF
	fillPct2    = 0xEF
)

func errShort(code string, n int) error {
	return fmt.Errorf("%s payload too short: %d bytes", code, n)
}

// temp16 decodes a signed centidegree reading; the fill value means the
// sensor has no reading.
func temp16(b []byte) any {
	raw := binary.BigEndian.Uint16(b)
	if raw == fillTemp {
		return nil
	}
	return float64(int16(raw)) / 100
}

// demandPct decodes a 0..200 half-percent demand byte.
func demandPct(b byte) any {
	if b == fillPercent {
		return nil
	}
	return float64(b) / 2
}

// parseSystemSync decodes 1F09: the controller's sync countdown in
// tenths of a second.
func parseSystemSync(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("1F09", len(p))
	}
	return message.Fields{
		"remaining_s": float64(binary.BigEndian.Uint16(p[1:3])) / 10,
	}, nil
}

// recordParser builds a parser for zone-record codes that broadcast as
// arrays. A single record yields the bare field names; a multi-record
// array suffixes each field with its zone index.
func recordParser(field string, size int, decode func([]byte) (message.Fields, error)) message.ParserFunc {
	return func(_ ramses.Verb, p []byte) (message.Fields, error) {
		if len(p) < size || len(p)%size != 0 {
			return nil, fmt.Errorf("%s record layout: %d bytes not a multiple of %d", field, len(p), size)
		}

		if len(p) == size {
			return decode(p)
		}

		out := message.Fields{}
		for off := 0; off < len(p); off += size {
			rec, err := decode(p[off : off+size])
			if err != nil {
				return nil, err
			}
			for k, v := range rec {
				out[fmt.Sprintf("%s_%02X", k, p[off])] = v
			}
		}
		return out, nil
	}
}

func parseTempRecord(rec []byte) (message.Fields, error) {
	return message.Fields{"temp_c": temp16(rec[1:3])}, nil
}

func parseZoneConfigRecord(rec []byte) (message.Fields, error) {
	return message.Fields{
		"flags":      rec[1],
		"min_temp_c": temp16(rec[2:4]),
		"max_temp_c": temp16(rec[4:6]),
	}, nil
}

// parseRelayDemand decodes 0008: demand on a relay domain (FC boiler,
// FA DHW) or zone actuator.
func parseRelayDemand(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 2 {
		return nil, errShort("0008", len(p))
	}
	return message.Fields{"relay_demand_pct": demandPct(p[1])}, nil
}

// parseHeatDemand decodes 3150: a TRV or zone's call for heat.
func parseHeatDemand(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 2 {
		return nil, errShort("3150", len(p))
	}
	return message.Fields{"heat_demand_pct": demandPct(p[1])}, nil
}

// parseCO2Level decodes 1298: CO2 concentration in ppm.
func parseCO2Level(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("1298", len(p))
	}
	raw := binary.BigEndian.Uint16(p[1:3])
	f := message.Fields{"co2_ppm": nil}
	if raw != fillTemp {
		f["co2_ppm"] = int(raw)
	}
	return f, nil
}

func parseOutdoorTemp(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("1290", len(p))
	}
	return message.Fields{"outdoor_temp_c": temp16(p[1:3])}, nil
}

// parseIndoorHumidity decodes 12A0: relative humidity plus, on the
// six-byte form, the paired temperature and dewpoint readings.
func parseIndoorHumidity(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 2 {
		return nil, errShort("12A0", len(p))
	}
	f := message.Fields{"indoor_humidity_pct": nil}
	if p[1] != fillPercent && p[1] != fillPct2 {
		f["indoor_humidity_pct"] = float64(p[1])
	}
	if len(p) >= 6 {
		f["temp_c"] = temp16(p[2:4])
		f["dewpoint_c"] = temp16(p[4:6])
	}
	return f, nil
}

// parseBattery decodes 1060: battery level and the low-battery flag.
func parseBattery(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("1060", len(p))
	}
	return message.Fields{
		"battery_pct": demandPct(p[1]),
		"battery_low": p[2] == 0x00,
	}, nil
}

// parseWindowState decodes 12B0: open-window detection on a zone.
func parseWindowState(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("12B0", len(p))
	}
	raw := binary.BigEndian.Uint16(p[1:3])
	f := message.Fields{"window_open": nil}
	switch raw {
	case 0x0000:
		f["window_open"] = false
	case 0xC800:
		f["window_open"] = true
	}
	return f, nil
}

var systemModeNames = map[byte]string{
	0x00: "auto",
	0x01: "heat_off",
	0x02: "eco_boost",
	0x03: "away",
	0x04: "day_off",
	0x05: "day_off_eco",
	0x06: "auto_with_reset",
	0x07: "custom",
}

// parseSystemMode decodes 2E04: the active system mode and, for
// temporary overrides, the restore time.
func parseSystemMode(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 8 {
		return nil, errShort("2E04", len(p))
	}
	name, ok := systemModeNames[p[0]]
	if !ok {
		return nil, fmt.Errorf("2E04 unknown mode %02X", p[0])
	}

	f := message.Fields{"system_mode": name, "until": nil}
	if p[7] == 0x01 {
		until := time.Date(
			int(binary.BigEndian.Uint16(p[5:7])),
			time.Month(p[4]), int(p[3]), int(p[2]), int(p[1]), 0, 0, time.UTC)
		f["until"] = until.Format(time.RFC3339)
	}
	return f, nil
}

// parseFanState decodes 31D9: the ventilation unit's fan rate and
// status flags.
func parseFanState(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 3 {
		return nil, errShort("31D9", len(p))
	}
	return message.Fields{
		"fan_pct": demandPct(p[2]),
		"flags":   p[1],
	}, nil
}

// parseVentStatus decodes the condensed sensor block of 31DA.
func parseVentStatus(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) < 9 {
		return nil, errShort("31DA", len(p))
	}

	f := message.Fields{
		"co2_ppm":             nil,
		"indoor_humidity_pct": nil,
		"exhaust_fan_pct":     demandPct(p[8]),
	}
	if raw := binary.BigEndian.Uint16(p[2:4]); raw != fillTemp {
		f["co2_ppm"] = int(raw)
	}
	if p[4] != fillPercent && p[4] != fillPct2 {
		f["indoor_humidity_pct"] = float64(p[4])
	}
	return f, nil
}

// Description text starts at byte 19 of the 10E0 block, zero-padded.
const deviceInfoDescOff = 19

// parseDeviceInfo decodes 10E0: firmware dates and the device
// description string.
func parseDeviceInfo(_ ramses.Verb, p []byte) (message.Fields, error) {
	if len(p) <= deviceInfoDescOff {
		return nil, errShort("10E0", len(p))
	}

	desc := p[deviceInfoDescOff:]
	if i := bytes.IndexByte(desc, 0x00); i >= 0 {
		desc = desc[:i]
	}
	return message.Fields{
		"description": strings.TrimSpace(string(desc)),
	}, nil
}
