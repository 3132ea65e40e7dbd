package trace

import (
	"fmt"
	"io"
	"sync"
)

const defaultRingSize = 4096

// RingTracer retains the newest events of a run in a fixed buffer. At
// LevelError the command prints it only when the run fails.
type RingTracer struct {
	mu      sync.Mutex
	buf     []Event
	next    int // slot of the next event
	n       int // retained events
	dropped uint64
	level   Level
}

// NewRingTracer retains up to size events; size <= 0 picks a default.
func NewRingTracer(size int, level Level) *RingTracer {
	if size <= 0 {
		size = defaultRingSize
	}
	return &RingTracer{buf: make([]Event, size), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := *ev
	e.Seq = NextSeq()
	if t.n == len(t.buf) {
		t.dropped++
	} else {
		t.n++
	}
	t.buf[t.next] = e
	t.next = (t.next + 1) % len(t.buf)
}

// Snapshot copies the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, 0, t.n)
	first := (t.next - t.n + len(t.buf)) % len(t.buf)
	for i := range t.n {
		out = append(out, t.buf[(first+i)%len(t.buf)])
	}
	return out
}

// Dropped reports how many events were overwritten by newer ones.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Dump writes the retained events to w. Text dumps start with a line counting
// the events lost to wrap-around.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	if d := t.Dropped(); d > 0 && format == FormatText {
		if _, err := fmt.Fprintf(w, "... %d earlier events dropped\n", d); err != nil {
			return err
		}
	}
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

// Flush and Close are no-ops: nothing leaves the ring until Dump.
func (t *RingTracer) Flush() error { return nil }
func (t *RingTracer) Close() error { return nil }
