package ramses

import (
	"errors"
	"testing"
	"time"
)

var (
	gwAddr  = Address{Type: "18", Serial: "000730"}
	ctlAddr = Address{Type: "01", Serial: "145038"}
	co2Addr = Address{Type: "32", Serial: "166025"}
)

func TestNewZoneSetpoint(t *testing.T) {
	tests := []struct {
		name      string
		zone      int
		celsius   float64
		wantFrame string
		wantErr   bool
	}{
		{
			name:      "zone 0 at 15.0",
			zone:      0,
			celsius:   15.0,
			wantFrame: " W --- 18:000730 01:145038 --:------ 2309 003 0005DC",
		},
		{
			name:      "zone 5 at 21.5",
			zone:      5,
			celsius:   21.5,
			wantFrame: " W --- 18:000730 01:145038 --:------ 2309 003 050866",
		},
		{name: "zone too high", zone: 16, celsius: 20, wantErr: true},
		{name: "zone negative", zone: -1, celsius: 20, wantErr: true},
		{name: "setpoint too low", zone: 0, celsius: 4.5, wantErr: true},
		{name: "setpoint too high", zone: 0, celsius: 35.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := NewZoneSetpoint(gwAddr, ctlAddr, tt.zone, tt.celsius)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewZoneSetpoint() expected error, got nil")
				}
				if !errors.Is(err, ErrCommandInvalid) {
					t.Errorf("error = %v, want ErrCommandInvalid", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewZoneSetpoint() unexpected error: %v", err)
			}
			if got := cmd.Frame(); got != tt.wantFrame {
				t.Errorf("Frame() = %q, want %q", got, tt.wantFrame)
			}
		})
	}
}

func TestNewSystemMode(t *testing.T) {
	until := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	t.Run("permanent away", func(t *testing.T) {
		cmd, err := NewSystemMode(gwAddr, ctlAddr, ModeAway, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := " W --- 18:000730 01:145038 --:------ 2E04 008 03FFFFFFFFFFFF00"
		if got := cmd.Frame(); got != want {
			t.Errorf("Frame() = %q, want %q", got, want)
		}
	})

	t.Run("eco until", func(t *testing.T) {
		cmd, err := NewSystemMode(gwAddr, ctlAddr, ModeEco, &until)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// mm=30 hh=18 dd=02 mo=03 yyyy=2026 flag=01
		want := " W --- 18:000730 01:145038 --:------ 2E04 008 021E12020307EA01"
		if got := cmd.Frame(); got != want {
			t.Errorf("Frame() = %q, want %q", got, want)
		}
	})

	t.Run("auto with until is contradictory", func(t *testing.T) {
		_, err := NewSystemMode(gwAddr, ctlAddr, ModeAuto, &until)
		if !errors.Is(err, ErrCommandInvalid) {
			t.Errorf("error = %v, want ErrCommandInvalid", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewSystemMode(gwAddr, ctlAddr, SystemMode(0x5F), nil)
		if !errors.Is(err, ErrCommandInvalid) {
			t.Errorf("error = %v, want ErrCommandInvalid", err)
		}
	})
}

func TestNewCommandValidation(t *testing.T) {
	tests := []struct {
		name    string
		verb    Verb
		code    string
		src     Address
		dst     Address
		payload string
		wantErr bool
	}{
		{name: "valid request", verb: VerbRQ, code: "30C9", src: gwAddr, dst: ctlAddr, payload: "00"},
		{name: "valid broadcast", verb: VerbI, code: "1F09", src: ctlAddr, dst: NullAddress, payload: "FF073F"},
		{name: "bad verb", verb: Verb("ZZ"), code: "30C9", src: gwAddr, dst: ctlAddr, payload: "00", wantErr: true},
		{name: "lowercase code", verb: VerbRQ, code: "30c9", src: gwAddr, dst: ctlAddr, payload: "00", wantErr: true},
		{name: "short code", verb: VerbRQ, code: "30C", src: gwAddr, dst: ctlAddr, payload: "00", wantErr: true},
		{name: "odd payload", verb: VerbRQ, code: "30C9", src: gwAddr, dst: ctlAddr, payload: "0", wantErr: true},
		{name: "empty payload", verb: VerbRQ, code: "30C9", src: gwAddr, dst: ctlAddr, payload: "", wantErr: true},
		{name: "null src", verb: VerbRQ, code: "30C9", src: NullAddress, dst: ctlAddr, payload: "00", wantErr: true},
		{name: "request to null dst", verb: VerbRQ, code: "30C9", src: gwAddr, dst: NullAddress, payload: "00", wantErr: true},
		{name: "src equals dst", verb: VerbRQ, code: "30C9", src: ctlAddr, dst: ctlAddr, payload: "00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommand(tt.verb, tt.code, tt.src, tt.dst, tt.payload)
			if tt.wantErr && err == nil {
				t.Fatal("NewCommand() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("NewCommand() unexpected error: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrCommandInvalid) {
				t.Errorf("error = %v, want ErrCommandInvalid", err)
			}
		})
	}
}

func TestCO2RequestRoundTrip(t *testing.T) {
	cmd, err := NewCO2Request(gwAddr, co2Addr)
	if err != nil {
		t.Fatalf("NewCO2Request() failed: %v", err)
	}

	// A locally-echoed outbound frame gains the "..." RSSI column; the
	// result must parse back to the same fields.
	echoed := "... " + cmd.Frame()
	pkt, err := ParsePacket(echoed, testDtm)
	if err != nil {
		t.Fatalf("ParsePacket(echo) failed: %v", err)
	}
	if pkt.Verb != VerbRQ || pkt.Code != CodeCO2Level || pkt.Dst != co2Addr || pkt.Payload != "00" {
		t.Errorf("echoed packet mismatch: %+v", pkt)
	}
}
