package index

import (
	"errors"
	"testing"
	"time"

	"github.com/calorhome/ramses-core/internal/message"
	"github.com/calorhome/ramses-core/internal/ramses"
)

var testDtm = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newIndex(t *testing.T) *MessageIndex {
	t.Helper()
	x, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
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

func TestAddEvictsSameSlot(t *testing.T) {
	x := newIndex(t)

	first := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm)
	second := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 0002A8", testDtm.Add(10*time.Second))

	evicted, err := x.Add(first)
	if err != nil {
		t.Fatalf("Add(first) failed: %v", err)
	}
	if evicted != nil {
		t.Errorf("Add(first) evicted %v, want nil", evicted)
	}

	evicted, err = x.Add(second)
	if err != nil {
		t.Fatalf("Add(second) failed: %v", err)
	}
	if evicted != first {
		t.Errorf("Add(second) evicted %v, want the first message", evicted)
	}

	all := x.All()
	if len(all) != 1 {
		t.Fatalf("All() returned %d messages, want 1", len(all))
	}
	if all[0] != second {
		t.Error("All() holds the evicted message, want the newer one")
	}
}

func TestAddKeepsDistinctSlots(t *testing.T) {
	x := newIndex(t)

	frames := []string{
		"045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F",
		"052 RP --- 01:145038 18:000730 --:------ 2309 003 0005DC",
		"052 RP --- 01:145038 18:000730 --:------ 2309 003 010866", // different zone
		"...  I --- 32:166025 --:------ 32:166025 1298 003 000294",
	}
	for i, f := range frames {
		if _, err := x.Add(msgAt(t, f, testDtm.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add(%q) failed: %v", f, err)
		}
	}

	if got := x.Len(); got != len(frames) {
		t.Errorf("Len() = %d, want %d", got, len(frames))
	}
}

func TestAddTimestampCollision(t *testing.T) {
	x := newIndex(t)

	// Same receive instant, different slots: both must survive, in
	// insertion order.
	a := msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm)
	b := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm)

	if _, err := x.Add(a); err != nil {
		t.Fatalf("Add(a) failed: %v", err)
	}
	if _, err := x.Add(b); err != nil {
		t.Fatalf("Add(b) failed: %v", err)
	}

	all := x.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d messages, want 2", len(all))
	}
	if all[0] != a || all[1] != b {
		t.Error("All() order does not match insertion order")
	}
}

// A failed insert must not leave the slot's previous occupant deleted.
func TestAddFailedInsertKeepsOccupant(t *testing.T) {
	x := newIndex(t)

	first := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm)
	if _, err := x.Add(first); err != nil {
		t.Fatalf("Add(first) failed: %v", err)
	}

	// Force the insert step to fail after the eviction delete.
	if _, err := x.db.Exec(`CREATE TRIGGER reject_insert BEFORE INSERT ON messages
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("creating trigger failed: %v", err)
	}

	second := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 0002A8", testDtm.Add(10*time.Second))
	if _, err := x.Add(second); !errors.Is(err, ErrIndex) {
		t.Fatalf("Add(second) error = %v, want ErrIndex", err)
	}

	if _, err := x.db.Exec(`DROP TRIGGER reject_insert`); err != nil {
		t.Fatalf("dropping trigger failed: %v", err)
	}

	if got := x.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	all := x.All()
	if len(all) != 1 || all[0] != first {
		t.Fatal("failed Add() lost the slot's previous occupant from the map")
	}
	if got, err := x.Contains(Filter{Code: "1298"}); err != nil || !got {
		t.Errorf("Contains() = (%v, %v), want (true, nil): row missing from table", got, err)
	}

	// With the failure gone the retry evicts normally.
	evicted, err := x.Add(second)
	if err != nil {
		t.Fatalf("Add(second) retry failed: %v", err)
	}
	if evicted != first {
		t.Errorf("retry evicted %v, want the first message", evicted)
	}
}

func TestContains(t *testing.T) {
	x := newIndex(t)
	reg := message.NewRegistry()
	err := reg.Register("1298", func(_ ramses.Verb, p []byte) (message.Fields, error) {
		return message.Fields{"co2_ppm": 660}, nil
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	pkt, err := ramses.ParsePacket("...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm)
	if err != nil {
		t.Fatalf("ParsePacket() failed: %v", err)
	}
	if _, err := x.Add(message.New(pkt, reg)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "by code", filter: Filter{Code: "1298"}, want: true},
		{name: "by source", filter: Filter{Src: "32:166025"}, want: true},
		{name: "by payload key", filter: Filter{PayloadKey: "co2"}, want: true},
		{name: "by code and ctx", filter: Filter{Code: "1298", Ctx: "00"}, want: true},
		{name: "absent code", filter: Filter{Code: "30C9"}, want: false},
		{name: "absent payload key", filter: Filter{PayloadKey: "temp"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Contains(tt.filter)
			if err != nil {
				t.Fatalf("Contains() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestQry(t *testing.T) {
	x := newIndex(t)

	sync1 := msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm)
	co2 := msgAt(t, "...  I --- 32:166025 --:------ 32:166025 1298 003 000294", testDtm.Add(time.Second))
	setp := msgAt(t, "052 RP --- 01:145038 18:000730 --:------ 2309 003 0005DC", testDtm.Add(2*time.Second))

	for _, m := range []*message.Message{setp, sync1, co2} {
		if _, err := x.Add(m); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	got, err := x.Qry(`SELECT dtm FROM messages WHERE src = ?`, "01:145038")
	if err != nil {
		t.Fatalf("Qry() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Qry() returned %d messages, want 2", len(got))
	}
	if got[0] != sync1 || got[1] != setp {
		t.Error("Qry() results not in timestamp order")
	}
}

func TestQryRejectsNonSelect(t *testing.T) {
	x := newIndex(t)

	for _, q := range []string{
		`DELETE FROM messages`,
		`INSERT INTO messages (dtm) VALUES (1)`,
		`UPDATE messages SET code = 'FFFF'`,
		`DROP TABLE messages`,
		`SELECT dtm FROM messages; DELETE FROM messages`,
	} {
		if _, err := x.Qry(q); !errors.Is(err, ErrNotSelect) {
			t.Errorf("Qry(%q) error = %v, want ErrNotSelect", q, err)
		}
		if _, err := x.QryField(q); !errors.Is(err, ErrNotSelect) {
			t.Errorf("QryField(%q) error = %v, want ErrNotSelect", q, err)
		}
	}
}

func TestQryRequiresDtmColumn(t *testing.T) {
	x := newIndex(t)
	if _, err := x.Qry(`SELECT code FROM messages`); !errors.Is(err, ErrIndex) {
		t.Errorf("Qry() without dtm column error = %v, want ErrIndex", err)
	}
}

func TestQryField(t *testing.T) {
	x := newIndex(t)

	for i, f := range []string{
		"045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F",
		"...  I --- 32:166025 --:------ 32:166025 1298 003 000294",
	} {
		if _, err := x.Add(msgAt(t, f, testDtm.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	t.Run("single column", func(t *testing.T) {
		got, err := x.QryField(`SELECT DISTINCT src FROM messages ORDER BY src`)
		if err != nil {
			t.Fatalf("QryField() failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("QryField() returned %d rows, want 2", len(got))
		}
		if got[0][0] != "01:145038" || got[1][0] != "32:166025" {
			t.Errorf("QryField() = %v", got)
		}
	})

	t.Run("multi column projection", func(t *testing.T) {
		got, err := x.QryField(`SELECT src, code FROM messages ORDER BY src`)
		if err != nil {
			t.Fatalf("QryField() failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("QryField() returned %d rows, want 2", len(got))
		}
		for _, row := range got {
			if len(row) != 2 {
				t.Fatalf("row has %d values, want 2: %v", len(row), row)
			}
		}
		if got[0][0] != "01:145038" || got[0][1] != "1F09" {
			t.Errorf("row 0 = %v, want [01:145038 1F09]", got[0])
		}
		if got[1][0] != "32:166025" || got[1][1] != "1298" {
			t.Errorf("row 1 = %v, want [32:166025 1298]", got[1])
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		got, err := x.QryField(`SELECT code, COUNT(*) FROM messages GROUP BY code ORDER BY code`)
		if err != nil {
			t.Fatalf("QryField() failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("QryField() returned %d rows, want 2", len(got))
		}
		if got[0][0] != "1298" || got[0][1] != int64(1) {
			t.Errorf("row 0 = %v, want [1298 1]", got[0])
		}
	})
}

func TestClr(t *testing.T) {
	x := newIndex(t)

	if _, err := x.Add(msgAt(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F", testDtm)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := x.Clr(); err != nil {
		t.Fatalf("Clr() failed: %v", err)
	}
	if got := x.Len(); got != 0 {
		t.Errorf("Len() after Clr() = %d, want 0", got)
	}
	if got, err := x.Contains(Filter{Code: "1F09"}); err != nil || got {
		t.Errorf("Contains() after Clr() = (%v, %v), want (false, nil)", got, err)
	}
}
