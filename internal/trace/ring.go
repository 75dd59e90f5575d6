package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last N events in memory. With a sink it works as a
// flight recorder for the language server: nothing is written while the
// server runs and the retained tail is dumped on Close.
type RingTracer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	count  int
	level  Level

	sink   io.Writer
	format Format
}

// NewRingTracer creates a RingTracer; capacity <= 0 selects 4096.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// DumpOnClose makes Close write the retained events to w.
func (t *RingTracer) DumpOnClose(w io.Writer, format Format) *RingTracer {
	t.sink, t.format = w, format
	return t
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	stored := *ev
	t.mu.Lock()
	stored.Seq = NextSeq()
	t.events[t.next] = stored
	t.next = (t.next + 1) % len(t.events)
	t.count = min(t.count+1, len(t.events))
	t.mu.Unlock()
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, 0, t.count)
	start := (t.next - t.count + len(t.events)) % len(t.events)
	for i := range t.count {
		out = append(out, t.events[(start+i)%len(t.events)])
	}
	return out
}

// Dump writes the retained events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op: events stay in memory until Close.
func (t *RingTracer) Flush() error {
	return nil
}

// Close dumps to the sink, if any, and closes it unless it is a standard
// stream.
func (t *RingTracer) Close() error {
	if t.sink == nil {
		return nil
	}
	err := t.Dump(t.sink, t.format)
	if c, ok := t.sink.(io.Closer); ok && !isStdStream(t.sink) {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	t.sink = nil
	return err
}

// Level returns the current tracing level.
func (t *RingTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *RingTracer) Enabled() bool {
	return t.level > LevelOff
}
