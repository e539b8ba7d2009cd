package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"secure-agent-cli/internal/catalog"
	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/model"
	"secure-agent-cli/internal/perm"
	"secure-agent-cli/internal/render"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Remote is the document-access service as the session sees it.
type Remote interface {
	catalog.Source
	perm.Source
	Query(ctx context.Context, identityID, question string) (model.QueryResult, error)
}

type Options struct {
	Remote Remote
	View   View
	Log    *zap.Logger

	// Scheduler drives the flow animation and result stagger. Nil means
	// real timers.
	Scheduler flow.Scheduler
	Timing    *flow.Timing
	Stages    []flow.Stage
}

// Session is the client's view-state: catalog, permission snapshots, the
// selected identity and the query in flight. It is built once at startup,
// mutated only through its methods and torn down with Close.
type Session struct {
	id      string
	remote  Remote
	view    View
	log     *zap.Logger
	catalog *catalog.Cache
	perms   *perm.Cache
	flow    *flow.Animator
	stagger *render.Stagger

	mu            sync.Mutex
	selected      string
	submitEnabled bool
	busy          bool
	demo          bool
	closed        bool
	querySeq      uint64
	selectSeq     uint64
	result        *render.ResultView
	panel         *render.PanelView

	// latest mirrors querySeq for stagger callbacks, which run without mu.
	latest atomic.Uint64
}

func New(opts Options) *Session {
	view := opts.View
	if view == nil {
		view = NopView{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	log = log.With(zap.String("session", id))

	flowOpts := []flow.Option{
		flow.WithScheduler(opts.Scheduler),
		flow.WithStages(opts.Stages),
		flow.WithObserver(view.Flow),
	}
	if opts.Timing != nil {
		flowOpts = append(flowOpts, flow.WithTiming(*opts.Timing))
	}

	return &Session{
		id:      id,
		remote:  opts.Remote,
		view:    view,
		log:     log,
		catalog: catalog.New(),
		perms:   perm.NewCache(opts.Remote, log),
		flow:    flow.NewAnimator(flowOpts...),
		stagger: render.NewStagger(opts.Scheduler),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Catalog() *catalog.Cache { return s.catalog }
func (s *Session) Permissions() *perm.Cache { return s.perms }
func (s *Session) Animator() *flow.Animator { return s.flow }

// Start loads the catalog and paints the identity picker. A failed load is
// returned as *LoadError but leaves the session usable: with no identities
// the picker is disabled.
func (s *Session) Start(ctx context.Context) error {
	errs := s.catalog.Load(ctx, s.remote, s.log)

	s.mu.Lock()
	s.view.Selection(s.selectionLocked())
	s.view.SubmitState(s.submitStateLocked())
	s.mu.Unlock()

	if err := errs.Err(); err != nil {
		return &LoadError{Op: "catalog", Err: err}
	}
	return nil
}

// SelectIdentity makes id the current identity, then refreshes its
// permission snapshot and repaints the permission panel. It does not touch a
// query in flight.
func (s *Session) SelectIdentity(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.catalog.Identity(id); !ok {
		s.mu.Unlock()
		return ErrUnknownIdentity
	}
	s.selected = id
	if !s.busy {
		s.submitEnabled = true
	}
	s.selectSeq++
	seq := s.selectSeq
	s.view.Selection(s.selectionLocked())
	s.view.SubmitState(s.submitStateLocked())
	s.mu.Unlock()

	s.log.Debug("identity selected", zap.String("module", "session"), zap.String("identity", id))

	_, fetchErr := s.perms.Fetch(ctx, id)
	if errors.Is(fetchErr, perm.ErrStale) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.selectSeq {
		// A newer selection owns the panel now.
		return nil
	}
	var snap *model.PermissionSnapshot
	if cur, ok := s.perms.Get(id); ok {
		snap = &cur
	}
	panel := render.PermissionPanel(id, snap, s.catalog.Documents())
	s.panel = &panel
	s.view.PermissionPanel(panel)

	if fetchErr != nil {
		return &LoadError{Op: "permissions", Err: fetchErr}
	}
	return nil
}

// Ask submits question for the currently selected identity.
func (s *Session) Ask(ctx context.Context, question string) (render.ResultView, error) {
	return s.Submit(ctx, s.Selected(), question)
}

// Submit runs one ask end to end. With no identity or a blank question it
// does nothing and returns a zero view and nil error.
//
// Every call is numbered; if a newer Submit was issued while this one was
// waiting on the service, this call's response is dropped and ErrSuperseded
// returned.
func (s *Session) Submit(ctx context.Context, identityID, question string) (render.ResultView, error) {
	identityID = strings.TrimSpace(identityID)
	question = strings.TrimSpace(question)
	if identityID == "" || question == "" {
		return render.ResultView{}, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return render.ResultView{}, ErrClosed
	}
	s.querySeq++
	seq := s.querySeq
	s.latest.Store(seq)
	s.busy = true
	s.submitEnabled = false
	s.demo = false
	s.result = nil
	s.stagger.Cancel()
	s.view.SubmitState(s.submitStateLocked())
	s.view.ClearResult()
	s.flow.Start(false)
	s.mu.Unlock()

	log := s.log.With(zap.String("module", "session"), zap.String("identity", identityID), zap.Uint64("seq", seq))
	log.Info("query submitted")

	res, err := s.remote.Query(ctx, identityID, question)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.querySeq || s.closed {
		log.Debug("discard superseded query response")
		return render.ResultView{}, ErrSuperseded
	}
	s.busy = false
	s.submitEnabled = s.selected != ""

	if err != nil {
		log.Warn("query failed", zap.Error(err))
		s.flow.Stop()
		s.view.Alert(alertText(err))
		s.view.SubmitState(s.submitStateLocked())
		return render.ResultView{}, &QueryError{IdentityID: identityID, Err: err}
	}

	v := render.Result(res)
	s.result = &v
	s.flow.ForceComplete()
	s.view.Result(seq, v)
	s.view.SubmitState(s.submitStateLocked())
	s.stagger.Run(v.Items, func(n int) {
		if s.latest.Load() != seq {
			return
		}
		s.view.Reveal(seq, n)
	})
	log.Info("query rendered", zap.Int("allowed", res.AllowedCount), zap.Int("total", res.TotalCount))
	return v, nil
}

// ToggleDemo starts the looping presentation animation while nothing is in
// flight, or stops it. It reports whether the loop is now running.
func (s *Session) ToggleDemo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.busy {
		return false
	}
	if s.demo {
		s.demo = false
		s.flow.Stop()
		return false
	}
	s.demo = true
	s.flow.Start(true)
	return true
}

// Close stops every timer the session owns. Later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.latest.Store(0)
	s.stagger.Cancel()
	s.flow.Stop()
	s.log.Debug("session closed", zap.String("module", "session"))
}

func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) SubmitEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitEnabled
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Result is the currently displayed result, if any.
func (s *Session) Result() (render.ResultView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return render.ResultView{}, false
	}
	return *s.result, true
}

// Panel is the last painted permission panel, if any.
func (s *Session) Panel() (render.PanelView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panel == nil {
		return render.PanelView{}, false
	}
	return *s.panel, true
}

func (s *Session) selectionLocked() SelectionView {
	ids := s.catalog.Identities()
	items := make([]IdentityItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, IdentityItem{Identity: id, Selected: id.ID == s.selected})
	}
	return SelectionView{Identities: items, SelectedID: s.selected, Enabled: len(items) > 0}
}

func (s *Session) submitStateLocked() SubmitState {
	return SubmitState{Enabled: s.submitEnabled, Busy: s.busy}
}
