// Package feed holds the upstream side of the attack map: the debounced
// marker state the panel observes and the attack log.
package feed

import (
	"sync"
	"time"

	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/metrics"
)

// DefaultDebounce is the quiet window that closes an arrival.
const DefaultDebounce = time.Second

// Debouncer buffers events and hands them over as one arrival once no new
// event came in for the window. Every Add restarts the window.
type Debouncer struct {
	flushMu sync.Mutex // serialises deliveries
	mu      sync.Mutex
	clock   clock.Clock
	window  time.Duration
	buf     []model.AttackEvent
	timer   clock.Timer
	closed  bool
	deliver func([]model.AttackEvent)
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithDebounceClock replaces the wall clock.
func WithDebounceClock(c clock.Clock) DebounceOption {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewDebouncer creates a Debouncer calling deliver with each arrival. A
// window of zero delivers every event on its own, synchronously.
func NewDebouncer(window time.Duration, deliver func([]model.AttackEvent), opts ...DebounceOption) *Debouncer {
	d := &Debouncer{clock: clock.Real(), window: window, deliver: deliver}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add buffers ev and restarts the window.
func (d *Debouncer) Add(ev model.AttackEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.buf = append(d.buf, ev)
	if d.window <= 0 {
		d.mu.Unlock()
		d.fire()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.window, d.fire)
	d.mu.Unlock()
}

// Flush delivers the buffer now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

// Buffered is the number of events waiting for the window to close.
func (d *Debouncer) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

// Close stops the window and drops the buffer.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.buf = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	buf := d.buf
	d.buf = nil
	d.timer = nil
	closed := d.closed
	d.mu.Unlock()

	if closed || len(buf) == 0 {
		return
	}
	metrics.RecordFeedFlush(len(buf))
	d.deliver(buf)
}
