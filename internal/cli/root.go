package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"secure-agent-cli/internal/api"
	"secure-agent-cli/internal/format"
	"secure-agent-cli/internal/logging"
	"secure-agent-cli/internal/store"
	"secure-agent-cli/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	API        string
	Format     string
	PrettyJSON bool
	LogFile    string
	LogLevel   string
	Timeout    time.Duration

	cfg *store.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "secagent",
		Short:        "Ask questions as an identity and see which documents it may read",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  secagent

  # Scriptable commands
  secagent users
  secagent permissions alan

  # One-shot ask (shortcut: secagent user:alan "What is on the roadmap?")
  secagent ask --as alan "What is on the roadmap?"

  # Run the local demo service
  secagent serve
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.resolve(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			_ = app.log.Sync()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.API, "api", envOr("SECAGENT_API", ""), "Document-access service base URL (default from config, else "+api.DefaultBaseURL+")")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SECAGENT_FORMAT", ""), "Output format (json|text)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("SECAGENT_LOG_FILE", ""), "Write structured logs to this file (rotated)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("SECAGENT_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 30*time.Second, "HTTP timeout for service calls")

	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newDocumentsCmd(app))
	cmd.AddCommand(newPermissionsCmd(app))
	cmd.AddCommand(newAskCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// resolve fills unset settings: flags win over env (the flag defaults), env
// wins over the config file, and the file wins over built-in defaults.
func (app *App) resolve(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg

	if strings.TrimSpace(app.API) == "" {
		app.API = cfg.APIURL
	}
	if strings.TrimSpace(app.API) == "" {
		app.API = api.DefaultBaseURL
	}
	if strings.TrimSpace(app.Format) == "" {
		app.Format = cfg.Format
	}
	if strings.TrimSpace(app.Format) == "" {
		app.Format = "json"
	}
	if strings.TrimSpace(app.LogFile) == "" {
		app.LogFile = cfg.LogFile
	}
	if strings.TrimSpace(app.LogLevel) == "" {
		app.LogLevel = cfg.LogLevel
	}
	return nil
}

// logger is the scriptable-command logger: warnings on stderr, plus the log
// file when one is configured.
func (app *App) logger(cmd *cobra.Command) *zap.Logger {
	if app.log == nil {
		app.log = logging.New(logging.Options{
			File:    app.LogFile,
			Console: cmd.ErrOrStderr(),
			Level:   app.LogLevel,
		})
	}
	return app.log
}

func (app *App) client() (*api.Client, error) {
	timeout := app.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return api.New(app.API, api.WithHTTPClient(&http.Client{Timeout: timeout}))
}

func runTUI(cmd *cobra.Command, app *App) error {
	logFile := app.LogFile
	if logFile == "" {
		if p, err := store.DefaultLogFile(); err == nil {
			logFile = p
		}
	}
	// The TUI owns the terminal: file logging only.
	app.log = logging.New(logging.Options{File: logFile, Level: app.LogLevel})

	c, err := app.client()
	if err != nil {
		return writeErr(cmd, err)
	}
	theme := ""
	if app.cfg != nil && app.cfg.TUI != nil {
		theme = app.cfg.TUI.Theme
	}
	return tui.Run(cmd.Context(), tui.Options{
		Remote: c,
		Log:    app.log,
		APIURL: c.BaseURL(),
		Theme:  theme,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
