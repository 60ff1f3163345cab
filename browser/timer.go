package browser

import (
	"sync"
	"time"
)

// idleTimer fires a callback after a period of inactivity. Touch pushes
// the deadline out by the full duration; Stop cancels permanently. A
// stopped timer never fires and cannot be restarted.
type idleTimer struct {
	mu      sync.Mutex
	d       time.Duration
	t       *time.Timer
	stopped bool
}

func newIdleTimer(d time.Duration, fire func()) *idleTimer {
	it := &idleTimer{d: d}
	it.t = time.AfterFunc(d, fire)
	return it
}

func (it *idleTimer) Touch() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.stopped {
		return
	}
	it.t.Reset(it.d)
}

func (it *idleTimer) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopped = true
	it.t.Stop()
}
