package message

import (
	"strconv"
	"time"
)

// Controllers emit the fragments of one array broadcast in a tight
// burst; anything further apart is a new broadcast cycle.
const arrayFragmentWindow = 3 * time.Second

// DetectArrayFragment reports whether cur continues the array broadcast
// that prev belongs to.
//
// A continuation must come from the same source on the same code and
// verb, arrive within the fragment window of prev, and pick up at the
// record index where prev left off. When either context key cannot be
// read as an index, timing and identity alone decide.
func DetectArrayFragment(prev, cur *Message) bool {
	if prev == nil || cur == nil {
		return false
	}
	if cur.pkt.Src != prev.pkt.Src || cur.pkt.Code != prev.pkt.Code || cur.pkt.Verb != prev.pkt.Verb {
		return false
	}

	gap := cur.pkt.Dtm.Sub(prev.pkt.Dtm)
	if gap < 0 || gap > arrayFragmentWindow {
		return false
	}

	prevIdx, prevOK := indexOf(prev.ctx)
	curIdx, curOK := indexOf(cur.ctx)
	if !prevOK || !curOK {
		return true
	}
	return curIdx == prevIdx+recordCount(prev)
}

// indexOf parses a context key as a record index. Domain ids are not
// indices and never continue an array.
func indexOf(ctx string) (int, bool) {
	if len(ctx) != 2 {
		return 0, false
	}
	n, err := strconv.ParseUint(ctx, 16, 8)
	if err != nil || n >= domainIDFloor {
		return 0, false
	}
	return int(n), true
}

// recordCount returns the number of records a fragment carries, or 1
// for codes without a known record layout.
func recordCount(m *Message) int {
	size, ok := arrayRecordSize[m.pkt.Code]
	if !ok || size == 0 || m.pkt.Len%size != 0 {
		return 1
	}
	return m.pkt.Len / size
}
