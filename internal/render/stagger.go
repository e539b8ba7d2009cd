package render

import (
	"sync"

	"secure-agent-cli/internal/flow"
)

// Stagger reveals result items one by one on the items' Delay schedule.
// Starting a new reveal, or calling Cancel, drops every pending reveal of the
// previous one.
type Stagger struct {
	sched flow.Scheduler

	mu    sync.Mutex
	group *flow.TimerGroup
}

func NewStagger(s flow.Scheduler) *Stagger {
	if s == nil {
		s = flow.RealScheduler{}
	}
	return &Stagger{sched: s}
}

// Run calls reveal(n) when the first n items should be visible. Items with
// zero delay are revealed synchronously before Run returns.
func (s *Stagger) Run(items []ResultItem, reveal func(n int)) {
	s.mu.Lock()
	if s.group != nil {
		s.group.Cancel()
	}
	g := flow.NewTimerGroup(s.sched)
	s.group = g
	s.mu.Unlock()

	for i, it := range items {
		n := i + 1
		if it.Delay <= 0 {
			reveal(n)
			continue
		}
		g.After(it.Delay, func() { reveal(n) })
	}
}

func (s *Stagger) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		s.group.Cancel()
		s.group = nil
	}
}
