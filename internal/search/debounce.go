package search

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period before a query is evaluated.
const DefaultDelay = 300 * time.Millisecond

// Debouncer runs fn with the latest query once input has been quiet for the
// configured delay. At most one timer is pending at any time.
type Debouncer struct {
	fn      func(query string)
	timer   *time.Timer
	delay   time.Duration
	mu      sync.Mutex
	stopped bool
}

// NewDebouncer creates a debouncer. A non-positive delay uses DefaultDelay.
func NewDebouncer(delay time.Duration, fn func(query string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{fn: fn, delay: delay}
}

// Trigger (re)schedules evaluation of query, cancelling any pending one.
func (d *Debouncer) Trigger(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.timer == t && !d.stopped
		if current {
			d.timer = nil
		}
		d.mu.Unlock()

		if current {
			d.fn(query)
		}
	})
	d.timer = t
}

// Pending reports whether an evaluation is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending evaluation; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
