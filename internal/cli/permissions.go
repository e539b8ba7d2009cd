package cli

import (
	"errors"
	"fmt"
	"strings"

	"secure-agent-cli/internal/api"
	"secure-agent-cli/internal/model"
	"secure-agent-cli/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type permissionsOutput struct {
	Identity            model.Identity      `json:"identity"`
	Groups              []string            `json:"groups"`
	AccessibleDocuments []model.AccessEntry `json:"accessibleDocuments"`
	Panel               render.PanelView    `json:"panel"`
}

func (o permissionsOutput) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)  groups: %s\n", o.Identity.Name, o.Identity.ID, o.Identity.Role, strings.Join(o.Groups, ","))
	b.WriteString(panelText(o.Panel))
	return b.String()
}

// panelText renders folders with a check for accessible documents.
func panelText(p render.PanelView) string {
	var b strings.Builder
	for _, g := range p.Groups {
		fmt.Fprintf(&b, "\n%s (%d/%d)\n", g.Label, g.Accessible(), len(g.Docs))
		if len(g.Docs) == 0 {
			b.WriteString("  (empty)\n")
		}
		for _, d := range g.Docs {
			mark := "x"
			if d.Accessible {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %s %s\n", mark, d.Title)
		}
	}
	return b.String()
}

func newPermissionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions <identity>",
		Short: "Show which documents an identity may access, grouped by folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			ids, err := c.Users(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			ident, err := resolveIdentity(ids, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}

			snap, err := c.Permissions(ctx, ident.ID)
			if err != nil {
				var se *api.StatusError
				if errors.As(err, &se) && se.NotFound() {
					return writeErr(cmd, errNotFound("identity", ident.ID))
				}
				return writeErr(cmd, err)
			}
			docs, err := c.Documents(ctx)
			if err != nil {
				// The panel is still useful without the catalog: log and draw it empty.
				app.logger(cmd).Warn("load documents failed", zap.String("module", "cli"), zap.Error(err))
			}

			entries := snap.Entries
			if entries == nil {
				entries = []model.AccessEntry{}
			}
			groups := snap.Groups
			if groups == nil {
				groups = []string{}
			}
			return writeOut(cmd, app, map[string]any{
				"data": permissionsOutput{
					Identity:            ident,
					Groups:              groups,
					AccessibleDocuments: entries,
					Panel:               render.PermissionPanel(ident.ID, &snap, docs),
				},
				"meta": map[string]any{"accessible": len(entries), "total": len(docs)},
			})
		},
	}
}
