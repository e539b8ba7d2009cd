package flow

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn once after d. Implementations may call fn on any
// goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// RealScheduler is backed by time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// TimerGroup tracks every outstanding timer of one run so they can be
// cancelled as a unit. A cancelled group refuses new timers.
type TimerGroup struct {
	mu        sync.Mutex
	sched     Scheduler
	timers    []Timer
	cancelled bool
}

func NewTimerGroup(s Scheduler) *TimerGroup {
	if s == nil {
		s = RealScheduler{}
	}
	return &TimerGroup{sched: s}
}

// After schedules fn unless the group is cancelled. fn is skipped if the
// group gets cancelled between the timer firing and fn running.
func (g *TimerGroup) After(d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled {
		return
	}
	t := g.sched.AfterFunc(d, func() {
		if g.Cancelled() {
			return
		}
		fn()
	})
	g.timers = append(g.timers, t)
}

func (g *TimerGroup) Cancel() {
	g.mu.Lock()
	timers := g.timers
	g.timers = nil
	g.cancelled = true
	g.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

func (g *TimerGroup) Cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// ManualClock is a deterministic Scheduler for tests. Callbacks run on the
// goroutine that calls Advance, in deadline order (ties in scheduling order).
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  uint64
	pending []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	id    uint64
	at    time.Duration
	fn    func()
	done  bool
}

func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{clock: c, id: c.nextID, at: c.now + d, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Now is the elapsed virtual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending counts timers that have neither fired nor been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves virtual time forward by d, firing due timers. Timers
// scheduled by callbacks fire too if they fall within the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at > c.now {
			c.now = next.at
		}
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

func (c *ManualClock) nextDueLocked(target time.Duration) *manualTimer {
	var due []*manualTimer
	for _, t := range c.pending {
		if !t.done && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].id < due[j].id
	})
	return due[0]
}

func (c *ManualClock) compactLocked() {
	live := c.pending[:0]
	for _, t := range c.pending {
		if !t.done {
			live = append(live, t)
		}
	}
	c.pending = live
}
