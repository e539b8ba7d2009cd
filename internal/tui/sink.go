package tui

import (
	"sync"

	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/render"
	"secure-agent-cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages the session's view instructions become inside the program.
type (
	selectionMsg   session.SelectionView
	submitStateMsg session.SubmitState
	panelMsg       render.PanelView
	clearResultMsg struct{}
	resultMsg      struct {
		seq  uint64
		view render.ResultView
	}
	revealMsg struct {
		seq uint64
		n   int
	}
	alertMsg string
	flowMsg  flow.Snapshot
)

// channelView is the session.View of the TUI. It never touches model state:
// every instruction is queued and picked up by waitForView on the program's
// side, so the session lock is never held while Update runs.
type channelView struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

var _ session.View = (*channelView)(nil)

func newChannelView(buffer int) *channelView {
	return &channelView{ch: make(chan tea.Msg, buffer), done: make(chan struct{})}
}

func (v *channelView) send(msg tea.Msg) {
	select {
	case v.ch <- msg:
	case <-v.done:
	}
}

// close unblocks pending and future sends. Messages still queued are dropped.
func (v *channelView) close() {
	v.once.Do(func() { close(v.done) })
}

func (v *channelView) Selection(s session.SelectionView) { v.send(selectionMsg(s)) }
func (v *channelView) SubmitState(s session.SubmitState) { v.send(submitStateMsg(s)) }
func (v *channelView) PermissionPanel(p render.PanelView) { v.send(panelMsg(p)) }
func (v *channelView) ClearResult() { v.send(clearResultMsg{}) }
func (v *channelView) Result(seq uint64, r render.ResultView) {
	v.send(resultMsg{seq: seq, view: r})
}
func (v *channelView) Reveal(seq uint64, n int) { v.send(revealMsg{seq: seq, n: n}) }
func (v *channelView) Alert(message string) { v.send(alertMsg(message)) }
func (v *channelView) Flow(s flow.Snapshot) { v.send(flowMsg(s)) }

// waitForView delivers the next queued instruction. Update re-arms it after
// every view message so exactly one waiter is outstanding.
func waitForView(v *channelView) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-v.ch:
			return msg
		case <-v.done:
			return nil
		}
	}
}
