package index

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/calorhome/ramses-core/internal/message"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

const schema = `
CREATE TABLE messages (
    dtm  INTEGER PRIMARY KEY,
    verb TEXT NOT NULL,
    src  TEXT NOT NULL,
    dst  TEXT NOT NULL,
    code TEXT NOT NULL,
    ctx  TEXT NOT NULL,
    hdr  TEXT NOT NULL UNIQUE,
    plk  TEXT NOT NULL
);
CREATE INDEX idx_messages_verb ON messages (verb);
CREATE INDEX idx_messages_src ON messages (src);
CREATE INDEX idx_messages_dst ON messages (dst);
CREATE INDEX idx_messages_code ON messages (code);
CREATE INDEX idx_messages_ctx ON messages (ctx);
`

// MessageIndex is the queryable current-state view of the network.
type MessageIndex struct {
	mu   sync.Mutex
	db   *sql.DB
	msgs map[int64]*message.Message
}

// New creates an empty index backed by an in-memory database.
func New() (*MessageIndex, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrIndex, err)
	}

	// An in-memory database lives exactly as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrIndex, err)
	}

	return &MessageIndex{
		db:   db,
		msgs: make(map[int64]*message.Message),
	}, nil
}

// Add inserts a message, evicting and returning any previous occupant
// of the same logical slot. The returned message is nil when the slot
// was empty.
//
// The row key is the receive timestamp in nanoseconds; a colliding
// timestamp is advanced by one nanosecond until unique, preserving
// insertion order among same-instant arrivals.
func (x *MessageIndex) Add(msg *message.Message) (*message.Message, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	dtm := msg.Dtm().UnixNano()
	for {
		if _, taken := x.msgs[dtm]; !taken {
			break
		}
		dtm++
	}

	hdr := msg.Header()

	// Evict and insert commit together; a failed insert must leave the
	// previous occupant in place.
	tx, err := x.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrIndex, err)
	}
	defer tx.Rollback()

	var old int64
	hasOld := true
	err = tx.QueryRow(`SELECT dtm FROM messages WHERE hdr = ?`, hdr).Scan(&old)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		hasOld = false
	case err != nil:
		return nil, fmt.Errorf("%w: slot lookup: %v", ErrIndex, err)
	default:
		if _, err := tx.Exec(`DELETE FROM messages WHERE dtm = ?`, old); err != nil {
			return nil, fmt.Errorf("%w: evict: %v", ErrIndex, err)
		}
	}

	pkt := msg.Packet()
	_, err = tx.Exec(
		`INSERT INTO messages (dtm, verb, src, dst, code, ctx, hdr, plk) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dtm, strings.TrimSpace(string(pkt.Verb)), pkt.Src.String(), pkt.Dst.String(),
		pkt.Code, msg.Ctx(), hdr, msg.PayloadKeys(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert: %v", ErrIndex, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrIndex, err)
	}

	var evicted *message.Message
	if hasOld {
		evicted = x.msgs[old]
		delete(x.msgs, old)
	}
	x.msgs[dtm] = msg
	return evicted, nil
}

// Filter selects messages by metadata. Zero-value fields match
// anything; PayloadKey matches as a substring of the payload key list.
type Filter struct {
	Verb       string
	Src        string
	Dst        string
	Code       string
	Ctx        string
	PayloadKey string
}

// Contains reports whether at least one indexed message matches the
// filter.
func (x *MessageIndex) Contains(f Filter) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	where := []string{"1=1"}
	var args []any
	add := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	add("verb", strings.TrimSpace(f.Verb))
	add("src", f.Src)
	add("dst", f.Dst)
	add("code", f.Code)
	add("ctx", f.Ctx)
	if f.PayloadKey != "" {
		where = append(where, "plk LIKE ?")
		args = append(args, "%"+f.PayloadKey+"%")
	}

	query := "SELECT COUNT(*) FROM messages WHERE " + strings.Join(where, " AND ")
	var n int
	if err := x.db.QueryRow(query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: contains: %v", ErrIndex, err)
	}
	return n > 0, nil
}

// Qry runs a read-only SQL query against the metadata table and joins
// the matching rows back to their messages. The query must be a SELECT
// that includes the dtm column; results are ordered by timestamp
// ascending regardless of the query's own ordering.
func (x *MessageIndex) Qry(query string, args ...any) ([]*message.Message, error) {
	if err := requireSelect(query); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrIndex, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrIndex, err)
	}
	dtmCol := -1
	for i, c := range cols {
		if strings.EqualFold(c, "dtm") {
			dtmCol = i
			break
		}
	}
	if dtmCol < 0 {
		return nil, fmt.Errorf("%w: query must select the dtm column", ErrIndex)
	}

	var keys []int64
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrIndex, err)
		}
		dtm, ok := (*vals[dtmCol].(*any)).(int64)
		if !ok {
			return nil, fmt.Errorf("%w: dtm column is not an integer", ErrIndex)
		}
		keys = append(keys, dtm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrIndex, err)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]*message.Message, 0, len(keys))
	for _, k := range keys {
		if msg, ok := x.msgs[k]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// QryField runs a read-only query and returns the projected rows as
// raw column values, for aggregations and distinct-value listings that
// do not need whole messages. Each returned row holds one value per
// selected column.
func (x *MessageIndex) QryField(query string, args ...any) ([][]any, error) {
	if err := requireSelect(query); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrIndex, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrIndex, err)
	}

	var out [][]any
	for rows.Next() {
		ptrs := make([]any, len(cols))
		vals := make([]any, len(cols))
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrIndex, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrIndex, err)
	}
	return out, nil
}

// requireSelect enforces the read-only contract of the SQL surface.
func requireSelect(query string) error {
	q := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(q), "SELECT") {
		return fmt.Errorf("%w: %.40q", ErrNotSelect, query)
	}
	if strings.Contains(strings.TrimSuffix(q, ";"), ";") {
		return fmt.Errorf("%w: compound statement", ErrNotSelect)
	}
	return nil
}

// All returns every indexed message in timestamp order.
func (x *MessageIndex) All() []*message.Message {
	x.mu.Lock()
	defer x.mu.Unlock()

	keys := make([]int64, 0, len(x.msgs))
	for k := range x.msgs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*message.Message, len(keys))
	for i, k := range keys {
		out[i] = x.msgs[k]
	}
	return out
}

// Len returns the number of occupied slots.
func (x *MessageIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.msgs)
}

// Clr removes every message from the index.
func (x *MessageIndex) Clr() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrIndex, err)
	}
	x.msgs = make(map[int64]*message.Message)
	return nil
}

// Stop releases the backing database. The index is unusable afterwards.
func (x *MessageIndex) Stop() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIndex, err)
	}
	return nil
}
