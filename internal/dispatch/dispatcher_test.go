package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calorhome/ramses-core/internal/index"
	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

var testDtm = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *testLogger) Debug(string, ...any) {}

func (l *testLogger) Warn(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(append([]any{msg}, keysAndValues...)...))
}

func (l *testLogger) warnContaining(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.warns {
		if strings.Contains(w, s) {
			return true
		}
	}
	return false
}

func newIndex(t *testing.T) *index.MessageIndex {
	t.Helper()
	x, err := index.New()
	if err != nil {
		t.Fatalf("index.New() failed: %v", err)
	}
	t.Cleanup(func() { x.Stop() })
	return x
}

func msgAt(t *testing.T, raw string, dtm time.Time) *message.Message {
	t.Helper()
	pkt, err := ramses.ParsePacket(raw, dtm)
	if err != nil {
		t.Fatalf("ParsePacket(%q) failed: %v", raw, err)
	}
	return message.New(pkt, nil)
}

func TestProcessCreatesEntities(t *testing.T) {
	reg := NewRegistry()
	d := New(reg, newIndex(t), &testLogger{}, false)

	if err := d.Process(msgAt(t, "052 RP --- 01:145038 18:000730 --:------ 2309 003 0005DC", testDtm)); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	devices := reg.Devices()
	if len(devices) != 2 {
		t.Fatalf("registry has %d devices, want 2", len(devices))
	}
	if devices[0].Addr.String() != "01:145038" || devices[1].Addr.String() != "18:000730" {
		t.Errorf("devices = %v, %v", devices[0].Addr, devices[1].Addr)
	}
	if devices[0].MsgCount != 1 {
		t.Errorf("source MsgCount = %d, want 1", devices[0].MsgCount)
	}

	zones := reg.Zones()
	if len(zones) != 1 || zones[0].Idx != "00" {
		t.Fatalf("zones = %+v, want one zone 00", zones)
	}
	if reg.System(ramses.Address{Type: "01", Serial: "145038"}) == nil {
		t.Error("system entity not created")
	}
}

func TestProcessAddressFilter(t *testing.T) {
	reg := NewRegistry()
	reg.Filter = Filter{Block: []string{"18:000730"}}
	d := New(reg, newIndex(t), &testLogger{}, false)

	if err := d.Process(msgAt(t, "052 RP --- 01:145038 18:000730 --:------ 2309 003 0005DC", testDtm)); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	for _, dev := range reg.Devices() {
		if dev.Addr.String() == "18:000730" {
			t.Error("blocked address was created")
		}
	}
}

func TestProcessDiscoveryDisabled(t *testing.T) {
	reg := NewRegistry()
	reg.Discovery = false
	d := New(reg, newIndex(t), &testLogger{}, false)

	if err := d.Process(msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm)); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}
	if got := len(reg.Devices()); got != 0 {
		t.Errorf("registry has %d devices, want 0 with discovery disabled", got)
	}
}

func TestProcessDuplicateAbsorbed(t *testing.T) {
	reg := NewRegistry()
	x := newIndex(t)
	d := New(reg, x, &testLogger{}, false)

	calls := 0
	dev := reg.Device(ramses.Address{Type: "32", Serial: "166025"})
	dev.SetHandler(HandlerFunc(func(*message.Message) error {
		calls++
		return nil
	}))

	raw := "...  I --- 32:166025 --:------ 32:166025 1298 003 000294"
	if err := d.Process(msgAt(t, raw, testDtm)); err != nil {
		t.Fatalf("Process(first) failed: %v", err)
	}
	if err := d.Process(msgAt(t, raw, testDtm.Add(time.Second))); err != nil {
		t.Fatalf("Process(retransmission) failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("handler called %d times, want 1 (duplicate absorbed)", calls)
	}
	if got := x.Len(); got != 1 {
		t.Errorf("index holds %d messages, want 1", got)
	}
}

func TestProcessChangedValueRedispatched(t *testing.T) {
	reg := NewRegistry()
	d := New(reg, newIndex(t), &testLogger{}, false)

	calls := 0
	dev := reg.Device(ramses.Address{Type: "32", Serial: "166025"})
	dev.SetHandler(HandlerFunc(func(*message.Message) error {
		calls++
		return nil
	}))

	if err := d.Process(msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm)); err != nil {
		t.Fatalf("Process(first) failed: %v", err)
	}
	if err := d.Process(msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 0002A8", testDtm.Add(time.Second))); err != nil {
		t.Fatalf("Process(changed) failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("handler called %d times, want 2 (value changed)", calls)
	}
}

func TestProcessSafeModeLogsAndContinues(t *testing.T) {
	reg := NewRegistry()
	logger := &testLogger{}
	d := New(reg, newIndex(t), logger, false)

	dev := reg.Device(ramses.Address{Type: "01", Serial: "145038"})
	dev.SetHandler(HandlerFunc(func(*message.Message) error {
		return errors.New("zone model out of sync")
	}))

	err := d.Process(msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm))
	if err != nil {
		t.Fatalf("Process() in safe mode returned %v, want nil", err)
	}
	if !logger.warnContaining("zone model out of sync") {
		t.Error("warning does not contain the handler error text")
	}
	if !logger.warnContaining("1F09") {
		t.Error("warning does not contain the offending frame")
	}
}

func TestProcessStrictModePropagates(t *testing.T) {
	reg := NewRegistry()
	d := New(reg, newIndex(t), &testLogger{}, true)

	dev := reg.Device(ramses.Address{Type: "01", Serial: "145038"})
	dev.SetHandler(HandlerFunc(func(*message.Message) error {
		return errors.New("zone model out of sync")
	}))

	err := d.Process(msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm))
	if !errors.Is(err, ErrDispatch) {
		t.Errorf("Process() in strict mode error = %v, want ErrDispatch", err)
	}
}

func TestProcessSafeModeAbsorbsPanic(t *testing.T) {
	reg := NewRegistry()
	logger := &testLogger{}
	d := New(reg, newIndex(t), logger, false)

	dev := reg.Device(ramses.Address{Type: "01", Serial: "145038"})
	dev.SetHandler(HandlerFunc(func(*message.Message) error {
		panic("handler bug")
	}))

	err := d.Process(msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm))
	if err != nil {
		t.Fatalf("Process() returned %v, want nil after recovered panic", err)
	}
	if !logger.warnContaining("handler bug") {
		t.Error("warning does not contain the panic text")
	}
}

func TestProcessRejectsNullDstForRequest(t *testing.T) {
	d := New(NewRegistry(), newIndex(t), &testLogger{}, true)

	err := d.Process(msgAt(t, "051 RQ --- 18:000730 --:------ 01:145038 2309 001 00", testDtm))
	if !errors.Is(err, ErrDispatch) {
		t.Errorf("Process(RQ to null) error = %v, want ErrDispatch", err)
	}
}

func TestProcessArrayContinuation(t *testing.T) {
	reg := NewRegistry()
	logger := &testLogger{}
	d := New(reg, newIndex(t), logger, false)

	start := msgAt(t, "045  I --- 01:145038 --:------ 01:145038 30C9 009 0007D0010834020898", testDtm)
	cont := msgAt(t, "045  I --- 01:145038 --:------ 01:145038 30C9 003 0307BC", testDtm.Add(time.Second))

	if err := d.Process(start); err != nil {
		t.Fatalf("Process(start) failed: %v", err)
	}
	if err := d.Process(cont); err != nil {
		t.Fatalf("Process(cont) failed: %v", err)
	}

	// Both fragments occupy distinct slots (different starting index).
	if _, ok := d.lastFragment["01:145038/30C9"]; !ok {
		t.Error("continuation state not tracked")
	}
}
