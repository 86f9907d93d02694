package async

import (
	"sync"
	"time"
)

// Timer runs delayed actions. Each action has a key; scheduling a key again
// replaces the pending action, and a pending action can be canceled by key.
type Timer struct {
	mu      sync.Mutex
	pending map[string]*timerEntry
	seq     uint64
	stopped bool
}

type timerEntry struct {
	t   *time.Timer
	seq uint64
	at  time.Time
}

func NewTimer() *Timer {
	return &Timer{pending: map[string]*timerEntry{}}
}

// Schedule runs f after delay unless canceled first. Returns false if the timer is stopped.
func (t *Timer) Schedule(key string, delay time.Duration, f func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	if e, ok := t.pending[key]; ok {
		e.t.Stop()
	}
	t.seq++
	seq := t.seq
	e := &timerEntry{seq: seq, at: time.Now().Add(delay)}
	e.t = time.AfterFunc(delay, func() {
		t.mu.Lock()
		cur, ok := t.pending[key]
		if !ok || cur.seq != seq {
			t.mu.Unlock()
			return
		}
		delete(t.pending, key)
		t.mu.Unlock()
		f()
	})
	t.pending[key] = e
	return true
}

// Cancel drops the pending action for key, returning whether one was pending.
func (t *Timer) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.pending[key]
	if !ok {
		return false
	}
	e.t.Stop()
	delete(t.pending, key)
	return true
}

// When returns the time at which the action for key fires.
func (t *Timer) When(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every pending action and refuses new ones.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for k, e := range t.pending {
		e.t.Stop()
		delete(t.pending, k)
	}
}
