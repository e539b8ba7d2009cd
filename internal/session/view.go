package session

import (
	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/model"
	"secure-agent-cli/internal/render"
)

type IdentityItem struct {
	model.Identity
	Selected bool `json:"selected"`
}

// SelectionView is the identity picker. At most one item is Selected.
type SelectionView struct {
	Identities []IdentityItem `json:"identities"`
	SelectedID string         `json:"selectedId,omitempty"`
	// Enabled is false when the catalog has no identities.
	Enabled bool `json:"enabled"`
}

type SubmitState struct {
	Enabled bool `json:"enabled"`
	Busy    bool `json:"busy"`
}

// View receives render instructions from the session. Most methods are
// called while the session holds its lock; Flow and Reveal also arrive from
// timer goroutines. Implementations must be safe for concurrent use and must
// not call back into the session: hand the instruction to the UI loop instead.
type View interface {
	Selection(SelectionView)
	SubmitState(SubmitState)
	PermissionPanel(render.PanelView)
	ClearResult()
	// Result carries the query sequence number; Reveal(seq, n) follows as
	// items are staged into view.
	Result(seq uint64, v render.ResultView)
	Reveal(seq uint64, n int)
	Alert(message string)
	Flow(flow.Snapshot)
}

// NopView ignores everything. Embed it to implement only part of View.
type NopView struct{}

func (NopView) Selection(SelectionView) {}
func (NopView) SubmitState(SubmitState) {}
func (NopView) PermissionPanel(render.PanelView) {}
func (NopView) ClearResult() {}
func (NopView) Result(uint64, render.ResultView) {}
func (NopView) Reveal(uint64, int) {}
func (NopView) Alert(string) {}
func (NopView) Flow(flow.Snapshot) {}
