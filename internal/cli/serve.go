package cli

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"secure-agent-cli/internal/demo"
	"secure-agent-cli/internal/logging"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local demo document-access service",
		Long: strings.TrimSpace(`
Run a local implementation of the document-access service, seeded with the
demo company: four identities, seven documents in four folders and folder
grants by group.

Point the client at it with --api or SECAGENT_API (the default address matches).
`),
		Example: strings.TrimSpace(`
secagent serve
secagent serve --addr 127.0.0.1:9000
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}

			level := app.LogLevel
			if level == "" {
				level = "info"
			}
			log := logging.New(logging.Options{File: app.LogFile, Console: cmd.ErrOrStderr(), Level: level})
			app.log = log

			ctx := cmd.Context()
			st, err := demo.OpenStore(ctx, demo.DefaultSeed())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"secagent --api " + url},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "secagent demo service running at %s\n", url)

			return demo.NewServer(st, log).Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Bind address (host:port or :port)")
	return cmd
}
