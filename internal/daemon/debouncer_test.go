package daemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *fireRecorder) fire(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *fireRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	rec := &fireRecorder{}
	d := NewDebouncer(30*time.Millisecond, time.Second, rec.fire)

	d.Trigger("/doc/a.tex")
	d.Trigger("/doc/b.tex")
	d.Trigger("/doc/c.tex")

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"/doc/c.tex"}, rec.get())
}

func TestDebouncer_MaxDelayBoundsSteadyStream(t *testing.T) {
	rec := &fireRecorder{}
	d := NewDebouncer(50*time.Millisecond, 120*time.Millisecond, rec.fire)
	defer d.Stop()

	stop := time.After(400 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
			d.Trigger("tick")
		}
	}
	assert.GreaterOrEqual(t, len(rec.get()), 2, "a steady stream must still fire")
}

func TestDebouncer_Stop(t *testing.T) {
	rec := &fireRecorder{}
	d := NewDebouncer(20*time.Millisecond, 0, rec.fire)
	d.Trigger("x")
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.get())
}
