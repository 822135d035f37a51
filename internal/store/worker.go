package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calorhome/ramses-core/internal/message"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// stopJoinTimeout bounds how long Stop waits for the worker goroutine
// to finish its final batch.
const stopJoinTimeout = 5 * time.Second

// record is a write-ready snapshot of a message. Snapshots are taken on
// the caller's goroutine so the worker never touches live messages.
type record struct {
	dtm     int64
	verb    string
	src     string
	dst     string
	code    string
	ctx     string
	hdr     string
	plk     string
	payload string
	raw     string
}

// queue entries: exactly one of the fields is set.
type entry struct {
	rec    *record
	marker chan struct{} // flush barrier, closed when reached
	stop   bool
}

// Worker persists messages on a dedicated goroutine.
type Worker struct {
	db     *sql.DB
	logger Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []entry
	limit   int
	dropped uint64
	stopped bool

	done chan struct{}
}

// Options tunes worker behaviour.
type Options struct {
	// QueueLimit caps the number of pending entries; zero means
	// unbounded.
	QueueLimit int
}

// NewWorker creates a worker writing to db and starts its goroutine.
// The messages table must already exist (migrations run at startup).
func NewWorker(db *sql.DB, logger Logger, opts Options) *Worker {
	w := &Worker{
		db:     db,
		logger: logger,
		limit:  opts.QueueLimit,
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit enqueues a message for persistence and returns immediately.
//
// With a queue limit configured, a full queue drops the submission and
// returns ErrQueueFull; the index and live consumers are unaffected.
func (w *Worker) Submit(msg *message.Message) error {
	pkt := msg.Packet()
	rec := &record{
		dtm:     msg.Dtm().UnixNano(),
		verb:    strings.TrimSpace(string(pkt.Verb)),
		src:     pkt.Src.String(),
		dst:     pkt.Dst.String(),
		code:    pkt.Code,
		ctx:     msg.Ctx(),
		hdr:     msg.Header(),
		plk:     msg.PayloadKeys(),
		payload: pkt.Payload,
		raw:     pkt.Serialize(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.limit > 0 && len(w.queue) >= w.limit {
		w.dropped++
		return ErrQueueFull
	}

	w.queue = append(w.queue, entry{rec: rec})
	w.cond.Signal()
	return nil
}

// Flush blocks until every entry submitted before the call has been
// written, or the timeout elapses.
func (w *Worker) Flush(timeout time.Duration) error {
	marker := make(chan struct{})

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.queue = append(w.queue, entry{marker: marker})
	w.cond.Signal()
	w.mu.Unlock()

	select {
	case <-marker:
		return nil
	case <-time.After(timeout):
		return ErrFlushTimeout
	}
}

// Dropped returns the number of submissions discarded due to the queue
// limit.
func (w *Worker) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Stop drains the queue and stops the worker goroutine. Submissions
// after Stop fail with ErrStopped. The wait for the final batch is
// bounded; on timeout Stop logs and returns without joining.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.queue = append(w.queue, entry{stop: true})
	w.cond.Signal()
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-time.After(stopJoinTimeout):
		w.logger.Error("storage worker did not stop in time", "timeout", stopJoinTimeout)
		return fmt.Errorf("%w: join timeout", ErrStopped)
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.cond.Wait()
		}
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()

		var recs []*record
		var markers []chan struct{}
		stopping := false
		for _, e := range batch {
			switch {
			case e.rec != nil:
				recs = append(recs, e.rec)
			case e.marker != nil:
				markers = append(markers, e.marker)
			case e.stop:
				stopping = true
			}
		}

		if len(recs) > 0 {
			if err := w.writeBatch(recs); err != nil {
				w.logger.Error("storage batch dropped",
					"error", err, "batch_size", len(recs))
			} else {
				w.logger.Debug("storage batch written", "batch_size", len(recs))
			}
		}

		// Markers resolve after the writes they were queued behind.
		for _, m := range markers {
			close(m)
		}

		if stopping {
			return
		}
	}
}

// writeBatch commits a batch of records in one transaction.
func (w *Worker) writeBatch(recs []*record) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO messages
		    (dtm, verb, src, dst, code, ctx, hdr, plk, payload, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(
			r.dtm, r.verb, r.src, r.dst, r.code,
			r.ctx, r.hdr, r.plk, r.payload, r.raw,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert dtm=%d: %w", r.dtm, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
