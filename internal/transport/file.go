package transport

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// FileReplay feeds a recorded packet log through the pipeline and
// signals a clean ConnectionLost on exhaustion. Writes are captured
// rather than sent anywhere.
//
// Each line is either a bare frame or a frame prefixed with an RFC 3339
// timestamp, in which case the recorded time is used as the receive
// timestamp.
type FileReplay struct {
	*base

	mu      sync.Mutex
	written []string
}

// NewFileReplay creates a replay transport over r and starts reading.
// Replay respects the inbound gate like any other variant, so a replay
// constructed paused discards lines until resumed; pass
// Options.Autostart to play the whole log.
func NewFileReplay(r io.Reader, protocol Protocol, logger Logger, opts Options) *FileReplay {
	f := &FileReplay{}
	f.base = newBase(protocol, logger, opts, f.capture)
	protocol.ConnectionMade(f)
	f.start()
	go f.replay(r)
	return f
}

func (f *FileReplay) capture(frame string) error {
	f.mu.Lock()
	f.written = append(f.written, frame)
	f.mu.Unlock()
	return nil
}

func (f *FileReplay) replay(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-f.closed:
			return
		default:
		}
		line, ts := splitTimestamp(scanner.Text())
		f.deliver(line, ts)
	}

	if err := scanner.Err(); err != nil {
		f.protocol.ConnectionLost(err)
		return
	}
	// Finite source: exhaustion is the normal end of stream.
	f.protocol.ConnectionLost(nil)
}

// splitTimestamp peels an optional leading RFC 3339 timestamp off a
// packet-log line.
func splitTimestamp(line string) (string, time.Time) {
	first, rest, found := strings.Cut(line, " ")
	if found && strings.Contains(first, "T") {
		if ts, err := time.Parse(time.RFC3339Nano, first); err == nil {
			return rest, ts
		}
	}
	return line, time.Now()
}

// Writes returns the frames written so far, oldest first.
func (f *FileReplay) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	copy(out, f.written)
	return out
}

// Close stops the replay and the write pump.
func (f *FileReplay) Close() error {
	f.close()
	return nil
}
