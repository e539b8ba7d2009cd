package cli

import (
	"errors"
	"strings"

	"secure-agent-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the client configuration (~/.secagent/config.json)",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetAPICmd(app))
	cmd.AddCommand(newConfigSetThemeCmd(app))
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved config and the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := store.ConfigPath()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": app.cfg,
				"meta": map[string]any{
					"path": path,
					"effective": map[string]any{
						"api":     app.API,
						"format":  app.Format,
						"logFile": app.LogFile,
					},
				},
			})
		},
	}
}

func newConfigSetAPICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-api <url>",
		Short: "Save the default service base URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := store.NormalizeAPIURL(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg := app.cfg
			if cfg == nil {
				cfg = &store.Config{}
			}
			cfg.APIURL = u
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	}
}

func newConfigSetThemeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-theme <light|dark|auto>",
		Short: "Force the TUI palette instead of detecting the terminal background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := strings.ToLower(strings.TrimSpace(args[0]))
			switch theme {
			case "light", "dark", "auto":
			default:
				return writeErr(cmd, errors.New("theme must be light, dark or auto"))
			}
			cfg := app.cfg
			if cfg == nil {
				cfg = &store.Config{}
			}
			if cfg.TUI == nil {
				cfg.TUI = &store.TUIConfig{}
			}
			cfg.TUI.Theme = theme
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	}
}
