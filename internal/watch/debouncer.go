package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of change notifications per key into a single
// flush after a quiet window. Editors commonly emit several events for one
// logical save; without coalescing each would trigger its own rebuild.
type Debouncer struct {
	quiet time.Duration
	flush func(key string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer. flush is invoked from a timer goroutine
// once per key after quiet has elapsed without further triggers.
func NewDebouncer(quiet time.Duration, flush func(key string)) *Debouncer {
	if quiet <= 0 {
		quiet = 250 * time.Millisecond
	}
	return &Debouncer{
		quiet:  quiet,
		flush:  flush,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger records a change for key, resetting its quiet window.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.quiet, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		d.flush(key)
	})
}

// Stop cancels all pending flushes. Further triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
