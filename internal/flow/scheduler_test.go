package flow

import (
	"testing"
	"time"
)

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	c := NewManualClock()
	var got []string
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	c.Advance(200 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	c.Advance(100 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("expected c last, got %v", got)
	}
	if c.Now() != 300*time.Millisecond {
		t.Fatalf("expected now=300ms, got %v", c.Now())
	}
}

func TestManualClock_ChainedTimersWithinWindow(t *testing.T) {
	t.Parallel()

	c := NewManualClock()
	fired := 0
	c.AfterFunc(100*time.Millisecond, func() {
		fired++
		c.AfterFunc(100*time.Millisecond, func() { fired++ })
	})
	c.Advance(250 * time.Millisecond)
	if fired != 2 {
		t.Fatalf("expected chained timer to fire, fired=%d", fired)
	}
}

func TestTimerGroup_CancelStopsEverything(t *testing.T) {
	t.Parallel()

	c := NewManualClock()
	g := NewTimerGroup(c)
	fired := 0
	for i := 1; i <= 3; i++ {
		g.After(time.Duration(i)*time.Second, func() { fired++ })
	}
	c.Advance(1500 * time.Millisecond)
	g.Cancel()
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers after cancel, got %d", c.Pending())
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("expected exactly one callback, got %d", fired)
	}

	g.After(time.Millisecond, func() { fired++ })
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("cancelled group accepted a new timer")
	}
}
