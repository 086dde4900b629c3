package search

import (
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a query is issued
const DefaultDebounce = 300 * time.Millisecond

// Debouncer delays queries until input settles. Each Trigger cancels the
// pending timer and starts a new one; only a timer that runs to completion
// calls fire.
type Debouncer struct {
	delay time.Duration
	fire  func(query string)

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64 // Bumped on every Trigger/Stop; stale timers compare and bail
}

// NewDebouncer creates a debouncer. delay <= 0 uses DefaultDebounce.
func NewDebouncer(delay time.Duration, fire func(query string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fire: fire}
}

// Trigger schedules query. A blank query fires "" immediately.
func (d *Debouncer) Trigger(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	d.cancelLocked()
	if query == "" {
		d.mu.Unlock()
		d.fire("")
		return
	}

	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fire(query)
	})
	d.mu.Unlock()
}

// Stop cancels any pending query
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Pending reports whether a timer is waiting to fire
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) cancelLocked() {
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
