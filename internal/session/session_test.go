package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"secure-agent-cli/internal/api"
	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/model"
	"secure-agent-cli/internal/render"
)

type fakeRemote struct {
	mu       sync.Mutex
	users    []model.Identity
	docs     []model.Document
	usersErr error
	perms    map[string][]model.AccessEntry
	permErr  error

	queries  []string
	replies  map[string]model.QueryResult
	queryErr error
	// gates block Query for a question until the channel is closed.
	gates   map[string]chan struct{}
	entered chan string
}

func (f *fakeRemote) Users(context.Context) ([]model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, f.usersErr
}

func (f *fakeRemote) Documents(context.Context) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, nil
}

func (f *fakeRemote) Permissions(_ context.Context, id string) (model.PermissionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permErr != nil {
		return model.PermissionSnapshot{}, f.permErr
	}
	return model.NewPermissionSnapshot(id, f.perms[id], nil), nil
}

func (f *fakeRemote) Query(_ context.Context, id, q string) (model.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gates[q]
	entered := f.entered
	res := f.replies[q]
	err := f.queryErr
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- q
		}
		<-gate
	}
	return res, err
}

func (f *fakeRemote) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type event struct {
	kind   string
	submit SubmitState
	seq    uint64
	result render.ResultView
	panel  render.PanelView
	sel    SelectionView
	alert  string
	n      int
}

type recordingView struct {
	mu     sync.Mutex
	events []event
	flows  []flow.Snapshot
}

func (v *recordingView) add(e event) {
	v.mu.Lock()
	v.events = append(v.events, e)
	v.mu.Unlock()
}

func (v *recordingView) Selection(s SelectionView)          { v.add(event{kind: "selection", sel: s}) }
func (v *recordingView) SubmitState(s SubmitState)          { v.add(event{kind: "submit", submit: s}) }
func (v *recordingView) PermissionPanel(p render.PanelView) { v.add(event{kind: "panel", panel: p}) }
func (v *recordingView) ClearResult()                       { v.add(event{kind: "clear"}) }
func (v *recordingView) Result(seq uint64, r render.ResultView) {
	v.add(event{kind: "result", seq: seq, result: r})
}
func (v *recordingView) Reveal(seq uint64, n int) { v.add(event{kind: "reveal", seq: seq, n: n}) }
func (v *recordingView) Alert(msg string)         { v.add(event{kind: "alert", alert: msg}) }
func (v *recordingView) Flow(s flow.Snapshot) {
	v.mu.Lock()
	v.flows = append(v.flows, s)
	v.mu.Unlock()
}

func (v *recordingView) of(kind string) []event {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []event
	for _, e := range v.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (v *recordingView) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.events)
}

func (v *recordingView) lastSubmit(t *testing.T) SubmitState {
	t.Helper()
	ss := v.of("submit")
	if len(ss) == 0 {
		t.Fatalf("no submit state emitted")
	}
	return ss[len(ss)-1].submit
}

func aliceRemote() *fakeRemote {
	return &fakeRemote{
		users: []model.Identity{
			{ID: "user:alice", Name: "Alice", Role: "Engineer", Groups: []string{"eng"}},
			{ID: "user:bob", Name: "Bob", Role: "Sales", Groups: []string{"sales"}},
		},
		docs: []model.Document{
			{ID: "1", Title: "Roadmap", Folder: "engineering"},
			{ID: "2", Title: "Targets", Folder: "sales"},
		},
		perms: map[string][]model.AccessEntry{
			"user:alice": {{ID: "1", Folder: "engineering", Title: "Roadmap"}},
		},
		replies: map[string]model.QueryResult{
			"Q": {
				Answer:       "The roadmap focuses on microservices.",
				AllowedCount: 1,
				TotalCount:   2,
				Documents: []model.ResultDocument{
					{ID: "1", Title: "Roadmap", Allowed: true, Score: 0.9},
					{ID: "2", Title: "Targets", Allowed: false, Score: 0.4},
				},
			},
		},
	}
}

func newTestSession(t *testing.T, remote *fakeRemote) (*Session, *recordingView, *flow.ManualClock) {
	t.Helper()
	view := &recordingView{}
	clock := flow.NewManualClock()
	s := New(Options{Remote: remote, View: view, Scheduler: clock})
	t.Cleanup(s.Close)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, view, clock
}

func TestStart_PaintsPickerWithSubmitDisabled(t *testing.T) {
	_, view, _ := newTestSession(t, aliceRemote())

	sels := view.of("selection")
	if len(sels) != 1 || len(sels[0].sel.Identities) != 2 || !sels[0].sel.Enabled {
		t.Fatalf("unexpected initial selection: %+v", sels)
	}
	if view.lastSubmit(t).Enabled {
		t.Fatalf("submit must be disabled before an identity is selected")
	}
}

func TestStart_CatalogFailureDegrades(t *testing.T) {
	remote := aliceRemote()
	remote.usersErr = errors.New("connection refused")
	view := &recordingView{}
	s := New(Options{Remote: remote, View: view, Scheduler: flow.NewManualClock()})
	defer s.Close()

	err := s.Start(context.Background())
	var le *LoadError
	if !errors.As(err, &le) || le.Op != "catalog" {
		t.Fatalf("expected catalog LoadError, got %v", err)
	}
	sels := view.of("selection")
	if len(sels) != 1 || sels[0].sel.Enabled || len(sels[0].sel.Identities) != 0 {
		t.Fatalf("expected disabled empty picker, got %+v", sels)
	}
	if err := s.SelectIdentity(context.Background(), "user:alice"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestSelectIdentity_RendersPermissionPanel(t *testing.T) {
	remote := aliceRemote()
	remote.docs = []model.Document{{ID: "1", Title: "Roadmap", Folder: "engineering"}}
	s, view, _ := newTestSession(t, remote)

	if err := s.SelectIdentity(context.Background(), "user:alice"); err != nil {
		t.Fatalf("select: %v", err)
	}

	sels := view.of("selection")
	last := sels[len(sels)-1].sel
	selected := 0
	for _, it := range last.Identities {
		if it.Selected {
			selected++
			if it.ID != "user:alice" {
				t.Fatalf("wrong identity selected: %s", it.ID)
			}
		}
	}
	if selected != 1 {
		t.Fatalf("expected exactly one selected identity, got %d", selected)
	}
	if !view.lastSubmit(t).Enabled {
		t.Fatalf("submit should be enabled after selection")
	}

	panels := view.of("panel")
	if len(panels) != 1 {
		t.Fatalf("expected one panel repaint, got %d", len(panels))
	}
	eng, _ := panels[0].panel.Group("engineering")
	if len(eng.Docs) != 1 || eng.Docs[0].Title != "Roadmap" || !eng.Docs[0].Accessible {
		t.Fatalf("unexpected engineering group: %+v", eng)
	}
	for _, g := range panels[0].panel.Groups {
		if g.Key != "engineering" && len(g.Docs) > 0 {
			t.Fatalf("folder %s should be empty", g.Key)
		}
	}
}

func TestSelectIdentity_PermissionFailureKeepsStale(t *testing.T) {
	remote := aliceRemote()
	s, view, _ := newTestSession(t, remote)
	ctx := context.Background()

	if err := s.SelectIdentity(ctx, "user:alice"); err != nil {
		t.Fatalf("select: %v", err)
	}
	remote.mu.Lock()
	remote.permErr = errors.New("503")
	remote.mu.Unlock()

	err := s.SelectIdentity(ctx, "user:alice")
	var le *LoadError
	if !errors.As(err, &le) || le.Op != "permissions" {
		t.Fatalf("expected permissions LoadError, got %v", err)
	}
	panels := view.of("panel")
	eng, _ := panels[len(panels)-1].panel.Group("engineering")
	if !eng.Docs[0].Accessible {
		t.Fatalf("stale snapshot should still render")
	}
	if len(view.of("alert")) != 0 {
		t.Fatalf("load failures must not alert")
	}

	// Bob was never fetched: the panel renders with nothing accessible.
	if err := s.SelectIdentity(ctx, "user:bob"); err == nil {
		t.Fatalf("expected error for bob")
	}
	panels = view.of("panel")
	bob := panels[len(panels)-1].panel
	if bob.HasSnapshot {
		t.Fatalf("expected absent snapshot for bob")
	}
}

func TestSubmit_PreconditionsAreSilentNoOps(t *testing.T) {
	s, view, _ := newTestSession(t, aliceRemote())
	ctx := context.Background()
	before := view.count()

	if _, err := s.Submit(ctx, "", "Q"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := s.SelectIdentity(ctx, "user:alice"); err != nil {
		t.Fatalf("select: %v", err)
	}
	afterSelect := view.count()
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := s.Submit(ctx, "user:alice", q); err != nil {
			t.Fatalf("expected nil error for %q, got %v", q, err)
		}
	}
	if got := s.flowSnapshot(); got.State != flow.Idle {
		t.Fatalf("animator started on a no-op submit")
	}
	if s.Busy() {
		t.Fatalf("busy after a no-op submit")
	}
	if view.count() != afterSelect || afterSelect <= before {
		t.Fatalf("no-op submit emitted view events")
	}
}

func TestSubmit_SuccessRendersResult(t *testing.T) {
	remote := aliceRemote()
	s, view, clock := newTestSession(t, remote)
	ctx := context.Background()
	if err := s.SelectIdentity(ctx, "user:alice"); err != nil {
		t.Fatalf("select: %v", err)
	}

	v, err := s.Ask(ctx, "Q")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Summary != "1 / 2" {
		t.Fatalf("summary: got %q", v.Summary)
	}
	if got := v.Denied(); got != 1 {
		t.Fatalf("expected exactly one denied item, got %d", got)
	}

	results := view.of("result")
	if len(results) != 1 || results[0].result.Summary != "1 / 2" {
		t.Fatalf("unexpected result events: %+v", results)
	}
	if !s.flowSnapshot().AllIn(flow.StageCompleted) {
		t.Fatalf("expected all stages completed after success")
	}
	if st := view.lastSubmit(t); !st.Enabled || st.Busy {
		t.Fatalf("submit should be re-enabled, got %+v", st)
	}

	// Disable + busy, then clear, before the response.
	sawBusy := false
	view.mu.Lock()
	for _, e := range view.events {
		if e.kind == "submit" && e.submit.Busy && !e.submit.Enabled {
			sawBusy = true
		}
		if e.kind == "clear" && !sawBusy {
			t.Errorf("result cleared before submit was disabled")
		}
	}
	view.mu.Unlock()
	if !sawBusy {
		t.Fatalf("expected a busy/disabled submit state")
	}

	// First item is revealed immediately, second after the stagger step.
	if got := view.of("reveal"); len(got) != 1 || got[0].n != 1 {
		t.Fatalf("expected first item revealed, got %+v", got)
	}
	clock.Advance(render.StaggerStep)
	if got := view.of("reveal"); len(got) != 2 || got[1].n != 2 {
		t.Fatalf("expected second item revealed, got %+v", got)
	}
}

func TestSubmit_FailureAlertsAndResets(t *testing.T) {
	remote := aliceRemote()
	remote.queryErr = &api.StatusError{Method: "POST", Path: "/api/query", Code: 500, Detail: "index unavailable"}
	s, view, _ := newTestSession(t, remote)
	ctx := context.Background()
	if err := s.SelectIdentity(ctx, "user:alice"); err != nil {
		t.Fatalf("select: %v", err)
	}

	_, err := s.Ask(ctx, "Q")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	alerts := view.of("alert")
	if len(alerts) != 1 || alerts[0].alert != "Query failed: index unavailable" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
	if !s.flowSnapshot().AllIn(flow.StagePending) {
		t.Fatalf("expected all stages pending after failure")
	}
	if st := view.lastSubmit(t); !st.Enabled || st.Busy {
		t.Fatalf("submit left disabled after failure: %+v", st)
	}
	if len(view.of("result")) != 0 {
		t.Fatalf("no result should render on failure")
	}
}

func TestSubmit_NetworkFailure(t *testing.T) {
	remote := aliceRemote()
	remote.queryErr = errors.New("dial tcp 127.0.0.1:8000: connection refused")
	s, view, _ := newTestSession(t, remote)
	ctx := context.Background()
	_ = s.SelectIdentity(ctx, "user:alice")

	if _, err := s.Ask(ctx, "Q"); err == nil {
		t.Fatalf("expected error")
	}
	if len(view.of("alert")) != 1 {
		t.Fatalf("expected an alert")
	}
	if !s.SubmitEnabled() {
		t.Fatalf("submit should be re-enabled")
	}
}

func TestSubmit_StaleResponseDiscarded(t *testing.T) {
	remote := aliceRemote()
	gate := make(chan struct{})
	remote.gates = map[string]chan struct{}{"A": gate}
	remote.entered = make(chan string)
	remote.replies["A"] = model.QueryResult{Answer: "from A", TotalCount: 1, Documents: []model.ResultDocument{{ID: "1"}}}
	remote.replies["B"] = model.QueryResult{Answer: "from B", AllowedCount: 1, TotalCount: 1, Documents: []model.ResultDocument{{ID: "1", Allowed: true}}}

	s, view, _ := newTestSession(t, remote)
	ctx := context.Background()
	_ = s.SelectIdentity(ctx, "user:alice")

	errA := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "user:alice", "A")
		errA <- err
	}()
	<-remote.entered

	vb, err := s.Submit(ctx, "user:alice", "B")
	if err != nil || vb.Answer != "from B" {
		t.Fatalf("B: %v %+v", err, vb)
	}

	close(gate)
	if err := <-errA; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected A superseded, got %v", err)
	}

	results := view.of("result")
	if len(results) != 1 || results[0].result.Answer != "from B" {
		t.Fatalf("only B should render, got %+v", results)
	}
	if cur, ok := s.Result(); !ok || cur.Answer != "from B" {
		t.Fatalf("current result should be B, got %+v", cur)
	}
	if !s.flowSnapshot().AllIn(flow.StageCompleted) {
		t.Fatalf("A's late response must not touch B's animation")
	}
}

func TestSelectDuringQuery_DoesNotCancel(t *testing.T) {
	remote := aliceRemote()
	gate := make(chan struct{})
	remote.gates = map[string]chan struct{}{"Q": gate}
	remote.entered = make(chan string)
	s, view, _ := newTestSession(t, remote)
	ctx := context.Background()
	_ = s.SelectIdentity(ctx, "user:alice")

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, "Q")
		done <- err
	}()
	<-remote.entered

	if err := s.SelectIdentity(ctx, "user:bob"); err != nil {
		t.Fatalf("select bob: %v", err)
	}
	if s.SubmitEnabled() {
		t.Fatalf("submit must stay disabled while a query is in flight")
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("query should complete: %v", err)
	}
	if len(view.of("result")) != 1 {
		t.Fatalf("expected the in-flight result to render")
	}
	if s.Selected() != "user:bob" || !s.SubmitEnabled() {
		t.Fatalf("expected bob selected and submit enabled")
	}
	if remote.queryCount() != 1 {
		t.Fatalf("selection must not issue queries")
	}
}

func TestToggleDemo(t *testing.T) {
	s, _, clock := newTestSession(t, aliceRemote())

	if !s.ToggleDemo() {
		t.Fatalf("expected demo loop to start")
	}
	if snap := s.flowSnapshot(); snap.State != flow.Running || !snap.Loop {
		t.Fatalf("expected looping run, got %+v", snap)
	}
	clock.Advance(20 * time.Second)
	if s.flowSnapshot().Runs < 2 {
		t.Fatalf("expected the loop to restart")
	}
	if s.ToggleDemo() {
		t.Fatalf("expected demo loop to stop")
	}
	if !s.flowSnapshot().AllIn(flow.StagePending) {
		t.Fatalf("expected stages reset after stopping the demo")
	}
}

func TestClose_StopsTimers(t *testing.T) {
	s, view, clock := newTestSession(t, aliceRemote())
	ctx := context.Background()
	_ = s.SelectIdentity(ctx, "user:alice")
	if _, err := s.Ask(ctx, "Q"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	s.Close()
	reveals := len(view.of("reveal"))
	clock.Advance(time.Minute)
	if len(view.of("reveal")) != reveals {
		t.Fatalf("reveals continued after close")
	}
	if _, err := s.Ask(ctx, "Q"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func (s *Session) flowSnapshot() flow.Snapshot { return s.flow.Snapshot() }
