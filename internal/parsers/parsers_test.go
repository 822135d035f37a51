package parsers

import (
	"testing"
	"time"

	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

var testDtm = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// decode runs a raw frame through the default registry and returns the
// message payload.
func decode(t *testing.T, raw string) message.Fields {
	t.Helper()
	pkt, err := ramses.ParsePacket(raw, testDtm)
	if err != nil {
		t.Fatalf("ParsePacket(%q) failed: %v", raw, err)
	}
	return message.New(pkt, Default()).Payload()
}

func TestParseSystemSync(t *testing.T) {
	f := decode(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F")
	if got := f["remaining_s"]; got != 185.5 {
		t.Errorf("remaining_s = %v, want 185.5", got)
	}
}

func TestParseZoneTemp(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		f := decode(t, "052 RP --- 01:145038 18:000730 --:------ 30C9 003 0007D0")
		if got := f["temp_c"]; got != 20.0 {
			t.Errorf("temp_c = %v, want 20.0", got)
		}
	})

	t.Run("array keys fields by zone", func(t *testing.T) {
		f := decode(t, "045  I --- 01:145038 --:------ 01:145038 30C9 009 0007D0010834027FFF")
		if got := f["temp_c_00"]; got != 20.0 {
			t.Errorf("temp_c_00 = %v, want 20.0", got)
		}
		if got := f["temp_c_01"]; got != 21.0 {
			t.Errorf("temp_c_01 = %v, want 21.0", got)
		}
		if got, ok := f["temp_c_02"]; !ok || got != nil {
			t.Errorf("temp_c_02 = %v (present %v), want present nil", got, ok)
		}
	})

	t.Run("negative reading", func(t *testing.T) {
		f := decode(t, "045  I --- 17:086245 --:------ 17:086245 1290 003 00FE98")
		if got := f["outdoor_temp_c"]; got != -3.6 {
			t.Errorf("outdoor_temp_c = %v, want -3.6", got)
		}
	})

	t.Run("ragged array rejected", func(t *testing.T) {
		f := decode(t, "045  I --- 01:145038 --:------ 01:145038 30C9 004 0007D001")
		if _, ok := f[message.ErrorField]; !ok {
			t.Errorf("payload = %v, want record layout error", f)
		}
	})
}

func TestParseZoneConfig(t *testing.T) {
	f := decode(t, "052 RP --- 01:145038 18:000730 --:------ 000A 006 001001F40DAC")
	if got := f["min_temp_c"]; got != 5.0 {
		t.Errorf("min_temp_c = %v, want 5.0", got)
	}
	if got := f["max_temp_c"]; got != 35.0 {
		t.Errorf("max_temp_c = %v, want 35.0", got)
	}
	if got := f["flags"]; got != byte(0x10) {
		t.Errorf("flags = %v, want 0x10", got)
	}
}

func TestParseDemands(t *testing.T) {
	f := decode(t, "045  I --- 01:145038 --:------ 01:145038 0008 002 FC64")
	if got := f["relay_demand_pct"]; got != 50.0 {
		t.Errorf("relay_demand_pct = %v, want 50.0", got)
	}

	f = decode(t, "068  I --- 04:189076 01:145038 --:------ 3150 002 02C8")
	if got := f["heat_demand_pct"]; got != 100.0 {
		t.Errorf("heat_demand_pct = %v, want 100.0", got)
	}
}

func TestParseCO2Level(t *testing.T) {
	f := decode(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294")
	if got := f["co2_ppm"]; got != 660 {
		t.Errorf("co2_ppm = %v, want 660", got)
	}

	f = decode(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 007FFF")
	if got, ok := f["co2_ppm"]; !ok || got != nil {
		t.Errorf("co2_ppm = %v (present %v), want present nil", got, ok)
	}
}

func TestParseIndoorHumidity(t *testing.T) {
	f := decode(t, "045  I --- 32:166025 --:------ 32:166025 12A0 006 002D07D00578")
	if got := f["indoor_humidity_pct"]; got != 45.0 {
		t.Errorf("indoor_humidity_pct = %v, want 45.0", got)
	}
	if got := f["temp_c"]; got != 20.0 {
		t.Errorf("temp_c = %v, want 20.0", got)
	}
	if got := f["dewpoint_c"]; got != 14.0 {
		t.Errorf("dewpoint_c = %v, want 14.0", got)
	}
}

func TestParseBattery(t *testing.T) {
	f := decode(t, "068  I --- 04:189076 01:145038 --:------ 1060 003 002801")
	if got := f["battery_pct"]; got != 20.0 {
		t.Errorf("battery_pct = %v, want 20.0", got)
	}
	if got := f["battery_low"]; got != false {
		t.Errorf("battery_low = %v, want false", got)
	}

	f = decode(t, "068  I --- 04:189076 01:145038 --:------ 1060 003 00FF00")
	if got := f["battery_low"]; got != true {
		t.Errorf("battery_low = %v, want true", got)
	}
	if got, ok := f["battery_pct"]; !ok || got != nil {
		t.Errorf("battery_pct = %v (present %v), want present nil", got, ok)
	}
}

func TestParseWindowState(t *testing.T) {
	f := decode(t, "068  I --- 04:189076 01:145038 --:------ 12B0 003 00C800")
	if got := f["window_open"]; got != true {
		t.Errorf("window_open = %v, want true", got)
	}

	f = decode(t, "068  I --- 04:189076 01:145038 --:------ 12B0 003 000000")
	if got := f["window_open"]; got != false {
		t.Errorf("window_open = %v, want false", got)
	}
}

func TestParseSystemMode(t *testing.T) {
	t.Run("permanent", func(t *testing.T) {
		f := decode(t, "052 RP --- 01:145038 18:000730 --:------ 2E04 008 03FFFFFFFFFFFF00")
		if got := f["system_mode"]; got != "away" {
			t.Errorf("system_mode = %v, want away", got)
		}
		if got := f["until"]; got != nil {
			t.Errorf("until = %v, want nil", got)
		}
	})

	t.Run("temporary override", func(t *testing.T) {
		f := decode(t, "052 RP --- 01:145038 18:000730 --:------ 2E04 008 021E12020307EA01")
		if got := f["system_mode"]; got != "eco_boost" {
			t.Errorf("system_mode = %v, want eco_boost", got)
		}
		if got := f["until"]; got != "2026-03-02T18:30:00Z" {
			t.Errorf("until = %v, want 2026-03-02T18:30:00Z", got)
		}
	})

	t.Run("unknown mode byte", func(t *testing.T) {
		f := decode(t, "052 RP --- 01:145038 18:000730 --:------ 2E04 008 5FFFFFFFFFFFFF00")
		if _, ok := f[message.ErrorField]; !ok {
			t.Errorf("payload = %v, want decode error", f)
		}
	})
}

// Every system-mode constant must encode the byte this package decodes
// back to the same mode name.
func TestSystemModeCommandRoundTrip(t *testing.T) {
	gw := ramses.Address{Type: "18", Serial: "000730"}
	ctl := ramses.Address{Type: "01", Serial: "145038"}

	tests := []struct {
		mode ramses.SystemMode
		want string
	}{
		{ramses.ModeAuto, "auto"},
		{ramses.ModeHeatOff, "heat_off"},
		{ramses.ModeEco, "eco_boost"},
		{ramses.ModeAway, "away"},
		{ramses.ModeDayOff, "day_off"},
		{ramses.ModeDayOffEco, "day_off_eco"},
		{ramses.ModeAutoWithReset, "auto_with_reset"},
		{ramses.ModeCustom, "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cmd, err := ramses.NewSystemMode(gw, ctl, tt.mode, nil)
			if err != nil {
				t.Fatalf("NewSystemMode(0x%02X) error: %v", byte(tt.mode), err)
			}

			f := decode(t, "045 "+cmd.Frame())
			if got := f["system_mode"]; got != tt.want {
				t.Errorf("mode 0x%02X decodes as %v, want %q", byte(tt.mode), got, tt.want)
			}
		})
	}
}

func TestParseFanState(t *testing.T) {
	f := decode(t, "045  I --- 30:082155 --:------ 30:082155 31D9 003 000A28")
	if got := f["fan_pct"]; got != 20.0 {
		t.Errorf("fan_pct = %v, want 20.0", got)
	}
	if got := f["flags"]; got != byte(0x0A) {
		t.Errorf("flags = %v, want 0x0A", got)
	}
}

func TestParseVentStatus(t *testing.T) {
	f := decode(t, "045  I --- 30:082155 --:------ 30:082155 31DA 029 00EF02942D2D07D050FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	if got := f["co2_ppm"]; got != 660 {
		t.Errorf("co2_ppm = %v, want 660", got)
	}
	if got := f["indoor_humidity_pct"]; got != 45.0 {
		t.Errorf("indoor_humidity_pct = %v, want 45.0", got)
	}
	if got := f["exhaust_fan_pct"]; got != 40.0 {
		t.Errorf("exhaust_fan_pct = %v, want 40.0", got)
	}
}

func TestParseDeviceInfo(t *testing.T) {
	f := decode(t, "052 RP --- 32:166025 18:000730 --:------ 10E0 029 000001C85A01FEFFFFFFFFFF140B07E1140B07564D532D313243333900")
	if got := f["description"]; got != "VMS-12C39" {
		t.Errorf("description = %v, want VMS-12C39", got)
	}
}

func TestDefaultCoversStockCodes(t *testing.T) {
	reg := Default()
	for _, code := range []string{"1F09", "30C9", "2309", "000A", "0008", "3150", "1298", "31D9", "31DA", "10E0"} {
		if _, ok := reg.Lookup(code); !ok {
			t.Errorf("Default() missing parser for %s", code)
		}
	}
}
