package flow

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

var testTiming = Timing{Step: 800 * time.Millisecond, Settle: 1000 * time.Millisecond, Pause: 5000 * time.Millisecond}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func newTestAnimator(t *testing.T) (*Animator, *ManualClock, *recorder) {
	t.Helper()
	clock := NewManualClock()
	rec := &recorder{}
	a := NewAnimator(WithScheduler(clock), WithTiming(testTiming), WithObserver(rec.observe))
	return a, clock, rec
}

func states(s Snapshot) []StageState {
	out := make([]StageState, len(s.Stages))
	for i, v := range s.Stages {
		out[i] = v.State
	}
	return out
}

func assertStageInvariant(t *testing.T, s Snapshot) {
	t.Helper()
	if s.ActiveCount() > 1 {
		t.Fatalf("more than one active stage: %v", states(s))
	}
	if s.State != Running {
		return
	}
	for i, v := range s.Stages {
		switch {
		case i < s.Index && v.State != StageCompleted:
			t.Fatalf("stage %d left of active %d not completed: %v", i, s.Index, states(s))
		case i == s.Index && v.State != StageActive:
			t.Fatalf("stage %d should be active: %v", i, states(s))
		case i > s.Index && v.State != StagePending:
			t.Fatalf("stage %d right of active %d not pending: %v", i, s.Index, states(s))
		}
	}
}

func TestAnimator_InitialIdle(t *testing.T) {
	a, _, _ := newTestAnimator(t)
	s := a.Snapshot()
	if s.State != Idle || s.Index != -1 {
		t.Fatalf("expected idle, got %v index=%d", s.State, s.Index)
	}
	if !s.AllIn(StagePending) {
		t.Fatalf("expected all pending, got %v", states(s))
	}
}

func TestAnimator_StartAdvancesOnSchedule(t *testing.T) {
	a, clock, _ := newTestAnimator(t)
	a.Start(false)

	s := a.Snapshot()
	if s.State != Running || s.Index != 0 {
		t.Fatalf("expected running(0), got %v(%d)", s.State, s.Index)
	}
	assertStageInvariant(t, s)

	clock.Advance(799 * time.Millisecond)
	if got := a.Snapshot().Index; got != 0 {
		t.Fatalf("stage advanced early: index=%d", got)
	}
	clock.Advance(1 * time.Millisecond)
	s = a.Snapshot()
	if s.Index != 1 {
		t.Fatalf("expected index 1 at 800ms, got %d", s.Index)
	}
	assertStageInvariant(t, s)

	last := len(DefaultStages) - 1
	clock.Advance(testTiming.Step * time.Duration(last-1))
	s = a.Snapshot()
	if s.Index != last {
		t.Fatalf("expected last stage active, got %d", s.Index)
	}
	assertStageInvariant(t, s)

	clock.Advance(testTiming.Settle)
	s = a.Snapshot()
	if s.State != Stopped || !s.AllIn(StageCompleted) {
		t.Fatalf("expected all completed, got %v %v", s.State, states(s))
	}
}

func TestAnimator_NoLoopCompletesExactlyOnce(t *testing.T) {
	a, clock, rec := newTestAnimator(t)
	a.Start(false)
	clock.Advance(time.Minute)

	s := a.Snapshot()
	if s.Completions != 1 || s.Runs != 1 {
		t.Fatalf("expected 1 run/1 completion, got runs=%d completions=%d", s.Runs, s.Completions)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
	lastCompleted := 0
	for _, snap := range rec.all() {
		if snap.Stages[len(snap.Stages)-1].State == StageCompleted {
			lastCompleted++
		}
	}
	if lastCompleted != 1 {
		t.Fatalf("expected last stage completed in exactly one snapshot, got %d", lastCompleted)
	}
}

func TestAnimator_StopResetsAndSilencesTimers(t *testing.T) {
	a, clock, rec := newTestAnimator(t)
	a.Start(true)
	clock.Advance(1700 * time.Millisecond)
	a.Stop()

	s := a.Snapshot()
	if s.State != Idle || !s.AllIn(StagePending) {
		t.Fatalf("expected idle/all pending, got %v %v", s.State, states(s))
	}
	n := len(rec.all())
	clock.Advance(time.Hour)
	if got := len(rec.all()); got != n {
		t.Fatalf("transitions after stop: %d new snapshots", got-n)
	}
	if !a.Snapshot().AllIn(StagePending) {
		t.Fatalf("stages changed after stop")
	}
}

func TestAnimator_StopDuringLoopPause(t *testing.T) {
	a, clock, _ := newTestAnimator(t)
	a.Start(true)
	end := testTiming.Step*time.Duration(len(DefaultStages)-1) + testTiming.Settle
	clock.Advance(end + 2*time.Second)
	if s := a.Snapshot(); s.State != Stopped || !s.AllIn(StageCompleted) {
		t.Fatalf("expected completed pause, got %v %v", s.State, states(s))
	}
	a.Stop()
	clock.Advance(time.Hour)
	s := a.Snapshot()
	if s.Runs != 1 {
		t.Fatalf("loop restarted after stop: runs=%d", s.Runs)
	}
	if !s.AllIn(StagePending) {
		t.Fatalf("expected all pending, got %v", states(s))
	}
}

func TestAnimator_LoopRepeatsWithoutOverlap(t *testing.T) {
	a, clock, rec := newTestAnimator(t)
	a.Start(true)

	period := testTiming.Step*time.Duration(len(DefaultStages)-1) + testTiming.Settle + testTiming.Pause
	for i := 0; i < 4; i++ {
		clock.Advance(period)
	}
	s := a.Snapshot()
	if s.Runs != 5 {
		t.Fatalf("expected 5 runs after 4 periods, got %d", s.Runs)
	}
	if s.Completions != 4 {
		t.Fatalf("expected 4 completions, got %d", s.Completions)
	}
	for _, snap := range rec.all() {
		assertStageInvariant(t, snap)
	}
	a.Stop()
}

func TestAnimator_RestartIgnoresLateCallbacks(t *testing.T) {
	a, clock, rec := newTestAnimator(t)
	a.Start(false)
	clock.Advance(400 * time.Millisecond)
	a.Stop()
	a.Start(false)

	// The first run's 800ms timer would fire now; the second run is only
	// 400ms in and must still be on stage 0.
	clock.Advance(400 * time.Millisecond)
	if got := a.Snapshot().Index; got != 0 {
		t.Fatalf("late callback corrupted restarted run: index=%d", got)
	}
	clock.Advance(400 * time.Millisecond)
	if got := a.Snapshot().Index; got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	for _, snap := range rec.all() {
		assertStageInvariant(t, snap)
	}
}

func TestAnimator_ForceComplete(t *testing.T) {
	a, clock, _ := newTestAnimator(t)
	a.Start(true)
	clock.Advance(900 * time.Millisecond)
	a.ForceComplete()

	s := a.Snapshot()
	if s.State != Stopped || !s.AllIn(StageCompleted) {
		t.Fatalf("expected all completed, got %v %v", s.State, states(s))
	}
	clock.Advance(time.Hour)
	if got := a.Snapshot(); got.Runs != 1 || !got.AllIn(StageCompleted) {
		t.Fatalf("force-completed run changed later: runs=%d %v", got.Runs, states(got))
	}
}

func TestAnimator_RandomStartStopSequences(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		a, clock, rec := newTestAnimator(t)
		for op := 0; op < 12; op++ {
			switch rng.Intn(4) {
			case 0:
				a.Start(rng.Intn(2) == 0)
			case 1:
				a.Stop()
				if !a.Snapshot().AllIn(StagePending) {
					t.Fatalf("iter %d: not all pending after stop", iter)
				}
			case 2:
				a.ForceComplete()
			default:
				clock.Advance(time.Duration(rng.Intn(3000)) * time.Millisecond)
			}
		}
		a.Stop()
		n := len(rec.all())
		clock.Advance(time.Hour)
		if len(rec.all()) != n {
			t.Fatalf("iter %d: transitions after final stop", iter)
		}
		for _, snap := range rec.all() {
			assertStageInvariant(t, snap)
		}
	}
}

func TestAnimator_SnapshotRevIncreases(t *testing.T) {
	a, clock, rec := newTestAnimator(t)
	a.Start(false)
	clock.Advance(time.Minute)
	var prev uint64
	for _, s := range rec.all() {
		if s.Rev <= prev {
			t.Fatalf("rev not increasing: %d after %d", s.Rev, prev)
		}
		prev = s.Rev
	}
}
