package tui

import (
	"context"
	"errors"

	"secure-agent-cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Remote session.Remote
	Log    *zap.Logger
	// APIURL is shown in the header.
	APIURL string
	// Theme is the configured palette: light, dark, auto or empty.
	Theme string
}

// Run starts the interactive client and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference(opts.Theme)

	view := newChannelView(64)
	sess := session.New(session.Options{Remote: opts.Remote, View: view, Log: opts.Log})
	defer sess.Close()
	defer view.close()

	m := newAppModel(ctx, sess, view, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
