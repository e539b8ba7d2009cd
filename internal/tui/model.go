package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/render"
	"secure-agent-cli/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

type focusArea int

const (
	focusIdentities focusArea = iota
	focusQuestion
)

// Results of session operations, which run as commands off the UI loop.
type (
	startedMsg  struct{ err error }
	selectedMsg struct {
		id  string
		err error
	}
	submittedMsg   struct{ err error }
	demoToggledMsg struct{ running bool }
)

// presetQuestions are the scenario questions cycled with ctrl+p. Each one
// retrieves documents from a different folder.
var presetQuestions = []string{
	"What is the engineering roadmap for 2025?",
	"What are the sales targets this year?",
	"What is the remote work policy?",
	"What is the merger strategy?",
}

const (
	sidebarWidth = 38
	// header, stage bar, input, alert/status and the help line.
	chromeLines = 8
)

// appModel mirrors what the session last told the view. It never reads
// session state directly.
type appModel struct {
	ctx    context.Context
	sess   *session.Session
	view   *channelView
	log    *zap.Logger
	apiURL string

	width  int
	height int
	focus  focusArea
	cursor int

	loading   bool
	selection session.SelectionView
	submit    session.SubmitState
	panel     *render.PanelView
	result    *render.ResultView
	resultSeq uint64
	revealed  int
	alert     string
	status    string
	flow      flow.Snapshot
	demo      bool
	preset    int

	input   textinput.Model
	spin    spinner.Model
	results viewport.Model
}

func newAppModel(ctx context.Context, sess *session.Session, view *channelView, opts Options) appModel {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	in := textinput.New()
	in.Placeholder = "Ask a question…"
	in.Prompt = "› "
	in.CharLimit = 500

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(colorAccent)))

	m := appModel{
		ctx:     ctx,
		sess:    sess,
		view:    view,
		log:     log.With(zap.String("module", "tui")),
		apiURL:  opts.APIURL,
		loading: true,
		flow:    sess.Animator().Snapshot(),
		input:   in,
		spin:    sp,
		results: viewport.New(60, 10),
	}
	m.layout()
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(waitForView(m.view), m.spin.Tick, m.startCmd())
}

func (m appModel) startCmd() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg { return startedMsg{err: sess.Start(ctx)} }
}

func (m appModel) selectCmd(id string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg { return selectedMsg{id: id, err: sess.SelectIdentity(ctx, id)} }
}

func (m appModel) submitCmd(identityID, question string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		_, err := sess.Submit(ctx, identityID, question)
		return submittedMsg{err: err}
	}
}

func (m appModel) toggleDemoCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg { return demoToggledMsg{running: sess.ToggleDemo()} }
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case startedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = "Could not load the catalog from " + m.apiURL
			m.log.Warn("catalog load failed", zap.Error(msg.err))
		}
		return m, nil

	case selectedMsg:
		var le *session.LoadError
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.As(msg.err, &le):
			m.status = "Permissions unavailable for " + msg.id
			m.log.Warn("permission fetch failed", zap.String("identity", msg.id), zap.Error(msg.err))
		}
		return m, nil

	case submittedMsg:
		// Failures were already raised through Alert.
		if msg.err != nil && !errors.Is(msg.err, session.ErrSuperseded) {
			m.log.Debug("submit finished with error", zap.Error(msg.err))
		}
		return m, nil

	case demoToggledMsg:
		m.demo = msg.running
		return m, nil

	case selectionMsg:
		m.selection = session.SelectionView(msg)
		m.clampCursor()
	case submitStateMsg:
		m.submit = session.SubmitState(msg)
		if m.submit.Busy {
			m.demo = false
		}
	case panelMsg:
		p := render.PanelView(msg)
		m.panel = &p
	case clearResultMsg:
		m.result = nil
		m.revealed = 0
		m.alert = ""
		m.refreshResults()
	case resultMsg:
		v := msg.view
		m.result = &v
		m.resultSeq = msg.seq
		m.revealed = 0
		m.refreshResults()
		if v.ScrollIntoView {
			m.results.GotoTop()
		}
	case revealMsg:
		if m.result != nil && msg.seq == m.resultSeq && msg.n > m.revealed {
			m.revealed = min(msg.n, len(m.result.Items))
			m.refreshResults()
		}
	case alertMsg:
		m.alert = string(msg)
	case flowMsg:
		if s := flow.Snapshot(msg); s.Rev >= m.flow.Rev {
			m.flow = s
		}
	default:
		return m, nil
	}
	// A view message was consumed: wait for the next one.
	return m, waitForView(m.view)
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "shift+tab":
		return m.toggleFocus()
	case "ctrl+l":
		return m, m.toggleDemoCmd()
	case "ctrl+p":
		return m.nextPreset()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	if m.focus == focusIdentities {
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "up", "k":
			m.cursor--
			m.clampCursor()
		case "down", "j":
			m.cursor++
			m.clampCursor()
		case "enter", " ":
			if !m.selection.Enabled || len(m.selection.Identities) == 0 {
				return m, nil
			}
			id := m.selection.Identities[m.cursor].ID
			m.focus = focusQuestion
			return m, tea.Batch(m.selectCmd(id), m.input.Focus())
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.focus = focusIdentities
		m.input.Blur()
		return m, nil
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if !m.submit.Enabled || q == "" || m.selection.SelectedID == "" {
			return m, nil
		}
		return m, m.submitCmd(m.selection.SelectedID, q)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// nextPreset fills the question input with the next scenario question.
func (m appModel) nextPreset() (tea.Model, tea.Cmd) {
	m.input.SetValue(presetQuestions[m.preset%len(presetQuestions)])
	m.input.CursorEnd()
	m.preset++
	m.focus = focusQuestion
	return m, m.input.Focus()
}

func (m appModel) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusQuestion {
		m.focus = focusIdentities
		m.input.Blur()
		return m, nil
	}
	m.focus = focusQuestion
	return m, m.input.Focus()
}

func (m *appModel) clampCursor() {
	n := len(m.selection.Identities)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m appModel) mainWidth() int {
	w := m.width - sidebarWidth - 1
	if w < 30 {
		w = 30
	}
	return w
}

func (m *appModel) layout() {
	w := m.mainWidth()
	m.input.Width = w - 4
	m.results.Width = w
	h := m.height - chromeLines
	if h < 3 {
		h = 3
	}
	m.results.Height = h
	m.refreshResults()
}

func (m *appModel) refreshResults() {
	m.results.SetContent(m.resultContent(m.mainWidth()))
}

func (m appModel) View() string {
	side := stylePane().Width(sidebarWidth - 2).Render(m.sidebarView(sidebarWidth - 4))
	main := m.mainView(m.mainWidth())
	return lipgloss.JoinHorizontal(lipgloss.Top, side, " ", main) + "\n" + m.helpLine()
}

func (m appModel) sidebarView(w int) string {
	var b strings.Builder
	b.WriteString(styleHeading().Render("Identities"))
	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(styleMuted().Render("  loading…"))
		b.WriteString("\n")
	case !m.selection.Enabled:
		b.WriteString(styleMuted().Render("  no identities available"))
		b.WriteString("\n")
	}
	for i, it := range m.selection.Identities {
		mark := "○"
		if it.Selected {
			mark = "●"
		}
		prefix := "  "
		if m.focus == focusIdentities && i == m.cursor {
			prefix = "› "
		}
		line := truncate(prefix+mark+" "+it.Name+" "+styleMuted().Render(it.Role), w)
		if m.focus == focusIdentities && i == m.cursor {
			line = styleSelected().Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styleHeading().Render("Permissions"))
	b.WriteString("\n")
	b.WriteString(panelLines(m.panel, w))
	return strings.TrimRight(b.String(), "\n")
}

func panelLines(p *render.PanelView, w int) string {
	if p == nil {
		return styleMuted().Render("  select an identity")
	}
	var b strings.Builder
	if !p.HasSnapshot {
		b.WriteString(styleDenied().Render("  permissions unavailable"))
		b.WriteString("\n")
	}
	for _, g := range p.Groups {
		b.WriteString(truncate(fmt.Sprintf("%s (%d/%d)", g.Label, g.Accessible(), len(g.Docs)), w))
		b.WriteString("\n")
		if len(g.Docs) == 0 {
			b.WriteString(styleMuted().Render("  (empty)"))
			b.WriteString("\n")
		}
		for _, d := range g.Docs {
			if d.Accessible {
				b.WriteString(styleAllowed().Render("  ✓ ") + truncate(d.Title, w-4))
			} else {
				b.WriteString(styleMuted().Render("  ✗ " + truncate(d.Title, w-4)))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m appModel) mainView(w int) string {
	var b strings.Builder

	header := styleAccent().Render("secagent") + styleMuted().Render("  "+m.apiURL)
	if m.demo {
		header += styleMuted().Render("  · demo loop")
	}
	b.WriteString(truncate(header, w))
	b.WriteString("\n")
	b.WriteString(truncate(m.stageBar(), w))
	b.WriteString("\n\n")

	asking := styleMuted().Render("Select an identity to ask a question")
	if id := m.selectedIdentity(); id != nil {
		asking = "Asking as " + styleHeading().Render(id.Name) + styleMuted().Render(" ("+id.ID+")")
	}
	if m.submit.Busy {
		asking += "  " + m.spin.View() + styleMuted().Render(" querying…")
	}
	b.WriteString(truncate(asking, w))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	switch {
	case m.alert != "":
		b.WriteString(styleAlert().Render(truncate(m.alert, w-2)))
	case m.status != "":
		b.WriteString(styleMuted().Render(truncate(m.status, w)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.results.View())
	return b.String()
}

func (m appModel) selectedIdentity() *session.IdentityItem {
	for i := range m.selection.Identities {
		if m.selection.Identities[i].ID == m.selection.SelectedID {
			return &m.selection.Identities[i]
		}
	}
	return nil
}

func (m appModel) stageBar() string {
	stages := m.flow.Stages
	if len(stages) == 0 {
		for _, st := range flow.DefaultStages {
			stages = append(stages, flow.StageView{Key: st.Key, Label: st.Label})
		}
	}
	parts := make([]string, 0, len(stages))
	for _, st := range stages {
		switch st.State {
		case flow.StageActive:
			parts = append(parts, styleAccent().Render("● "+st.Label))
		case flow.StageCompleted:
			parts = append(parts, styleAllowed().Render("✓ "+st.Label))
		default:
			parts = append(parts, styleMuted().Render("○ "+st.Label))
		}
	}
	return strings.Join(parts, styleMuted().Render(" → "))
}

func (m appModel) resultContent(w int) string {
	if m.result == nil {
		if m.submit.Busy {
			return styleMuted().Render("Waiting for the service…")
		}
		return styleMuted().Render("No answer yet.")
	}
	r := m.result

	var b strings.Builder
	b.WriteString(styleHeading().Render("Answer"))
	b.WriteString("\n")
	b.WriteString(renderAnswer(r.Answer, w))
	b.WriteString("\n\n")
	b.WriteString(styleHeading().Render("Documents") + "  " + styleMuted().Render(r.Summary+" allowed"))
	b.WriteString("\n")
	for _, it := range r.Items[:m.revealed] {
		b.WriteString(resultItemLines(it, w))
	}
	if m.revealed < len(r.Items) {
		b.WriteString(styleMuted().Render("  …"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func resultItemLines(it render.ResultItem, w int) string {
	var b strings.Builder
	meta := styleMuted().Render(fmt.Sprintf("  %s · %.2f", it.Category, it.Score))
	if it.Marker == render.MarkerAllowed {
		b.WriteString(styleAllowed().Render("✓ ") + truncate(it.Title, w-24) + meta)
	} else {
		b.WriteString(styleDenied().Render("✗ ") + truncate(it.Title, w-24) + meta)
	}
	b.WriteString("\n")
	switch {
	case it.Error != "":
		b.WriteString(styleDenied().Render(truncate("  access check failed: "+it.Error, w)))
	case it.Marker == render.MarkerDenied:
		b.WriteString(styleDenied().Render("  access denied"))
	case it.Text != "":
		b.WriteString(styleMuted().Render(truncate("  "+it.Text, w)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m appModel) helpLine() string {
	return styleMuted().Render("tab focus · ↑/↓ identity · enter select/ask · pgup/pgdn scroll · ctrl+p preset · ctrl+l demo · ctrl+c quit")
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return xansi.Truncate(s, w, "…")
}
