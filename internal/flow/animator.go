package flow

import (
	"sync"
	"time"
)

type StageState int

const (
	StagePending StageState = iota
	StageActive
	StageCompleted
)

func (s StageState) String() string {
	switch s {
	case StageActive:
		return "active"
	case StageCompleted:
		return "completed"
	default:
		return "pending"
	}
}

func (s StageState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

type Stage struct {
	Key   string
	Label string
}

// DefaultStages mirror what the service does for one ask.
var DefaultStages = []Stage{
	{Key: "question", Label: "Question"},
	{Key: "retrieve", Label: "Retrieve"},
	{Key: "authorize", Label: "Check access"},
	{Key: "filter", Label: "Filter"},
	{Key: "answer", Label: "Answer"},
}

type Timing struct {
	// Step is the delay between consecutive stages becoming active.
	Step time.Duration
	// Settle is how long the last stage stays active before completing.
	Settle time.Duration
	// Pause separates loop iterations.
	Pause time.Duration
}

var DefaultTiming = Timing{
	Step:   800 * time.Millisecond,
	Settle: 1000 * time.Millisecond,
	Pause:  5000 * time.Millisecond,
}

type StageView struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	State StageState `json:"state"`
}

// Snapshot is an immutable copy of the animator's visible state.
type Snapshot struct {
	State State
	// Index is the active stage while Running, -1 otherwise.
	Index  int
	Loop   bool
	Stages []StageView
	// Runs counts Start calls including loop restarts; Completions counts
	// runs that reached the end on their own.
	Runs        int
	Completions int
	// Rev increases with every visible change.
	Rev uint64
}

// Observer receives a snapshot after every visible change. Calls are
// serialized and delivered in Rev order. An observer must not call back
// into Start, Stop or ForceComplete.
type Observer func(Snapshot)

// Animator advances a fixed sequence of stages on a timing schedule. It
// knows nothing about the work it is presenting.
type Animator struct {
	// notifyMu orders mutation+delivery; mu guards state.
	notifyMu sync.Mutex
	mu       sync.Mutex

	sched    Scheduler
	timing   Timing
	stages   []Stage
	states   []StageState
	observer Observer

	state       State
	index       int
	loop        bool
	gen         uint64
	group       *TimerGroup
	rev         uint64
	runs        int
	completions int
}

type Option func(*Animator)

func WithScheduler(s Scheduler) Option {
	return func(a *Animator) {
		if s != nil {
			a.sched = s
		}
	}
}

func WithTiming(t Timing) Option {
	return func(a *Animator) { a.timing = t }
}

func WithStages(stages []Stage) Option {
	return func(a *Animator) {
		if len(stages) > 0 {
			a.stages = append([]Stage(nil), stages...)
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Animator) { a.observer = o }
}

func NewAnimator(opts ...Option) *Animator {
	a := &Animator{
		sched:  RealScheduler{},
		timing: DefaultTiming,
		stages: append([]Stage(nil), DefaultStages...),
		index:  -1,
	}
	for _, o := range opts {
		o(a)
	}
	a.states = make([]StageState, len(a.stages))
	return a
}

// SetObserver replaces the observer. Safe to call at any time.
func (a *Animator) SetObserver(o Observer) {
	a.notifyMu.Lock()
	a.observer = o
	a.notifyMu.Unlock()
}

// Start resets every stage and begins a new run from stage 0. Any previous
// run, including a pending loop restart, is cancelled first.
func (a *Animator) Start(loop bool) {
	a.apply(func() { a.startLocked(loop) })
}

// Stop cancels the run and resets every stage to pending.
func (a *Animator) Stop() {
	a.apply(func() {
		a.cancelLocked()
		a.fillLocked(StagePending)
		a.state = Idle
		a.index = -1
		a.loop = false
	})
}

// ForceComplete marks every stage completed and cancels the run.
func (a *Animator) ForceComplete() {
	a.apply(func() {
		a.cancelLocked()
		a.fillLocked(StageCompleted)
		a.state = Stopped
		a.index = -1
		a.loop = false
	})
}

func (a *Animator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Animator) apply(fn func()) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	fn()
	a.rev++
	snap := a.snapshotLocked()
	obs := a.observer
	a.mu.Unlock()

	if obs != nil {
		obs(snap)
	}
}

// fire runs a timer transition only if it still belongs to the current run.
func (a *Animator) fire(gen uint64, fn func()) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	fn()
	a.rev++
	snap := a.snapshotLocked()
	obs := a.observer
	a.mu.Unlock()

	if obs != nil {
		obs(snap)
	}
}

func (a *Animator) startLocked(loop bool) {
	a.cancelLocked()
	gen := a.gen
	g := NewTimerGroup(a.sched)
	a.group = g

	a.fillLocked(StagePending)
	a.state = Running
	a.loop = loop
	a.index = 0
	a.states[0] = StageActive
	a.runs++

	last := len(a.stages) - 1
	for i := 1; i <= last; i++ {
		i := i
		g.After(a.timing.Step*time.Duration(i), func() {
			a.fire(gen, func() { a.advanceLocked(i) })
		})
	}
	end := a.timing.Step*time.Duration(last) + a.timing.Settle
	g.After(end, func() {
		a.fire(gen, a.completeLocked)
	})
	if loop {
		g.After(end+a.timing.Pause, func() {
			a.fire(gen, func() { a.startLocked(true) })
		})
	}
}

func (a *Animator) advanceLocked(i int) {
	if i > 0 {
		a.states[i-1] = StageCompleted
	}
	a.states[i] = StageActive
	a.index = i
}

func (a *Animator) completeLocked() {
	a.states[len(a.states)-1] = StageCompleted
	a.state = Stopped
	a.index = -1
	a.completions++
}

// cancelLocked bumps the generation so any callback already in flight is
// ignored, then stops the run's timers.
func (a *Animator) cancelLocked() {
	a.gen++
	if a.group != nil {
		a.group.Cancel()
		a.group = nil
	}
}

func (a *Animator) fillLocked(s StageState) {
	for i := range a.states {
		a.states[i] = s
	}
}

func (a *Animator) snapshotLocked() Snapshot {
	views := make([]StageView, len(a.stages))
	for i, st := range a.stages {
		views[i] = StageView{Key: st.Key, Label: st.Label, State: a.states[i]}
	}
	return Snapshot{
		State:       a.state,
		Index:       a.index,
		Loop:        a.loop,
		Stages:      views,
		Runs:        a.runs,
		Completions: a.completions,
		Rev:         a.rev,
	}
}

// AllIn reports whether every stage is in state s.
func (s Snapshot) AllIn(st StageState) bool {
	for _, v := range s.Stages {
		if v.State != st {
			return false
		}
	}
	return true
}

// ActiveCount is the number of active stages (0 or 1 for a valid snapshot).
func (s Snapshot) ActiveCount() int {
	n := 0
	for _, v := range s.Stages {
		if v.State == StageActive {
			n++
		}
	}
	return n
}
