package daemon

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of change notifications into a single call.
// A call happens once no change arrived for the quiet window, and at the
// latest maxDelay after the first change of the burst.
type Debouncer struct {
	quiet    time.Duration
	maxDelay time.Duration
	fire     func(reason string)

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	first  time.Time
	reason string
	count  int
}

// NewDebouncer creates a debouncer calling fire with the last reason seen.
// A non-positive maxDelay defaults to ten quiet windows.
func NewDebouncer(quiet, maxDelay time.Duration, fire func(reason string)) *Debouncer {
	if maxDelay <= 0 {
		maxDelay = 10 * quiet
	}
	return &Debouncer{quiet: quiet, maxDelay: maxDelay, fire: fire}
}

// Trigger records a change and (re)arms the timer.
func (d *Debouncer) Trigger(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if d.count == 0 {
		d.first = now
	}
	d.count++
	d.reason = reason

	wait := d.quiet
	if deadline := d.first.Add(d.maxDelay); now.Add(wait).After(deadline) {
		wait = max(deadline.Sub(now), 0)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(wait, func() { d.flush(gen) })
}

func (d *Debouncer) flush(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.count == 0 {
		d.mu.Unlock()
		return
	}
	reason := d.reason
	d.count = 0
	d.timer = nil
	d.mu.Unlock()

	d.fire(reason)
}

// Stop discards any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.count = 0
}
