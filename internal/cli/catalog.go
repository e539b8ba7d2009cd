package cli

import (
	"fmt"
	"strings"

	"secure-agent-cli/internal/model"

	"github.com/spf13/cobra"
)

type identityList []model.Identity

func (l identityList) Text() string {
	var b strings.Builder
	for _, id := range l {
		fmt.Fprintf(&b, "%-14s %-10s %-8s %s\n", id.ID, id.Name, id.Role, strings.Join(id.Groups, ","))
	}
	return b.String()
}

type documentList []model.Document

func (l documentList) Text() string {
	var b strings.Builder
	for _, d := range l {
		lang := d.Lang
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(&b, "%-4s %-12s %-3s %s\n", d.ID, d.FolderKey(), lang, d.Title)
	}
	return b.String()
}

func newUsersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "users",
		Aliases: []string{"identities"},
		Short:   "List the identities a question can be asked as",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ids, err := c.Users(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if ids == nil {
				ids = []model.Identity{}
			}
			return writeOut(cmd, app, map[string]any{
				"data": identityList(ids),
				"meta": map[string]any{"count": len(ids), "api": c.BaseURL()},
			})
		},
	}
}

func newDocumentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List every document in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			docs, err := c.Documents(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if docs == nil {
				docs = []model.Document{}
			}
			return writeOut(cmd, app, map[string]any{
				"data": documentList(docs),
				"meta": map[string]any{"count": len(docs), "api": c.BaseURL()},
			})
		},
	}
}
