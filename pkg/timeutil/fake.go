package timeutil

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually driven Clock for tests and replays.
// Callbacks scheduled with AfterFunc run synchronously inside Advance/Set,
// in due-time order, without the clock lock held.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending map[uint64]*fakeTimer
}

type fakeTimer struct {
	clock *FakeClock
	id    uint64
	at    time.Time
	fn    func()
}

// NewFakeClock returns a FakeClock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{
		now:     start,
		pending: make(map[uint64]*fakeTimer),
	}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has been advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{clock: c, id: c.seq, at: c.now.Add(d), fn: f}
	c.pending[t.id] = t
	return t
}

// Stop cancels the timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if _, ok := t.clock.pending[t.id]; !ok {
		return false
	}
	delete(t.clock.pending, t.id)
	return true
}

// Advance moves the clock forward by d and fires every timer that became due.
func (c *FakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock to t and fires every timer due at or before t.
// Timers scheduled by fired callbacks are considered too.
func (c *FakeClock) Set(t time.Time) {
	for {
		c.mu.Lock()
		due := c.dueLocked(t)
		if len(due) == 0 {
			c.now = t
			c.mu.Unlock()
			return
		}
		next := due[0]
		delete(c.pending, next.id)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

func (c *FakeClock) dueLocked(t time.Time) []*fakeTimer {
	due := make([]*fakeTimer, 0)
	for _, ft := range c.pending {
		if !ft.at.After(t) {
			due = append(due, ft)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
