// Package watcher reloads files when they change on disk.
package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a change is reported
const DefaultDebounce = 200 * time.Millisecond

// Debouncer collapses a burst of triggers into one callback run after the
// burst goes quiet.
type Debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
}

// NewDebouncer creates a debouncer; a non-positive wait uses DefaultDebounce
func NewDebouncer(wait time.Duration) *Debouncer {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &Debouncer{wait: wait}
}

// Trigger (re)starts the quiet period. Only the callback from the latest
// Trigger runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() {
		if !d.claim(gen) {
			return
		}
		fn()
	})
}

// claim reports whether gen is still the latest trigger. A stopped timer can
// still fire, so the generation is the source of truth.
func (d *Debouncer) claim(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return false
	}
	d.timer = nil
	d.pending = false
	return true
}

// Pending reports whether a callback is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops any scheduled callback
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Wait returns the quiet period
func (d *Debouncer) Wait() time.Duration {
	return d.wait
}
