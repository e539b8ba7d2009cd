package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"secure-agent-cli/internal/flow"
	"secure-agent-cli/internal/model"
	"secure-agent-cli/internal/render"
	"secure-agent-cli/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type askOutput struct {
	Identity model.Identity    `json:"identity"`
	Question string            `json:"question"`
	Result   render.ResultView `json:"result"`
	Panel    *render.PanelView `json:"panel,omitempty"`
}

func (o askOutput) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asked as %s (%s): %s\n\n", o.Identity.Name, o.Identity.ID, o.Question)
	b.WriteString(strings.TrimSpace(o.Result.Answer))
	fmt.Fprintf(&b, "\n\nDocuments (%s allowed)\n", o.Result.Summary)
	for _, it := range o.Result.Items {
		cat := it.Category
		if cat == "" {
			cat = "-"
		}
		fmt.Fprintf(&b, "  %-7s %.2f  %-11s %s", it.Marker, it.Score, cat, it.Title)
		if it.Error != "" {
			fmt.Fprintf(&b, "  (%s)", it.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// progressView prints stage transitions and keeps the last alert.
type progressView struct {
	session.NopView

	mu       sync.Mutex
	w        io.Writer
	progress bool
	last     map[string]flow.StageState
	alert    string
}

func newProgressView(w io.Writer, progress bool) *progressView {
	return &progressView{w: w, progress: progress, last: map[string]flow.StageState{}}
}

func (v *progressView) Flow(s flow.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, st := range s.Stages {
		prev, seen := v.last[st.Key]
		v.last[st.Key] = st.State
		if !v.progress || st.State == flow.StagePending || (seen && prev == st.State) {
			continue
		}
		fmt.Fprintf(v.w, "[%s] %s\n", st.State, st.Label)
	}
}

func (v *progressView) Alert(msg string) {
	v.mu.Lock()
	v.alert = msg
	v.mu.Unlock()
}

func (v *progressView) lastAlert() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alert
}

func newAskCmd(app *App) *cobra.Command {
	var as string
	var progress bool
	var withPanel bool

	cmd := &cobra.Command{
		Use:   "ask --as <identity> <question...>",
		Short: "Ask one question as an identity and print the filtered result",
		Example: strings.TrimSpace(`
secagent ask --as alan "What is the engineering roadmap?"
secagent ask --as user:tsukada --progress --format text What are the sales targets?
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return writeErr(cmd, errors.New("ask: question is empty"))
			}
			if strings.TrimSpace(as) == "" {
				return writeErr(cmd, errors.New("ask: missing --as <identity>"))
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			log := app.logger(cmd)
			ctx := cmd.Context()

			view := newProgressView(cmd.ErrOrStderr(), progress)
			sess := session.New(session.Options{Remote: c, View: view, Log: log})
			defer sess.Close()

			if err := sess.Start(ctx); err != nil && len(sess.Catalog().Identities()) == 0 {
				return writeErr(cmd, err)
			}
			ident, err := resolveIdentity(sess.Catalog().Identities(), as)
			if err != nil {
				return writeErr(cmd, err)
			}

			var le *session.LoadError
			if err := sess.SelectIdentity(ctx, ident.ID); err != nil && !errors.As(err, &le) {
				return writeErr(cmd, err)
			}

			res, err := sess.Submit(ctx, ident.ID, question)
			if err != nil {
				if msg := view.lastAlert(); msg != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
					return err
				}
				return writeErr(cmd, err)
			}
			log.Debug("ask complete", zap.String("module", "cli"), zap.String("identity", ident.ID), zap.String("summary", res.Summary))

			out := askOutput{Identity: ident, Question: question, Result: res}
			if withPanel {
				if p, ok := sess.Panel(); ok {
					out.Panel = &p
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{"session": sess.ID(), "allowed": res.AllowedCount, "total": res.TotalCount},
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", envOr("SECAGENT_IDENTITY", ""), "Identity id or name to ask as")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print flow stage transitions to stderr")
	cmd.Flags().BoolVar(&withPanel, "panel", false, "Include the identity's folder permission panel")
	return cmd
}
