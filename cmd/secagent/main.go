package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"secure-agent-cli/internal/cli"
)

func isIdentityID(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "user:") {
		return false
	}
	return len(s) > len("user:")
}

func rewriteDirectAskArgs(argv []string) []string {
	// Convenience: `secagent user:alan <question...>` works like
	// `secagent ask --as user:alan <question...>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	//
	// IMPORTANT: Users often pass persistent flags first (e.g. `secagent --api ... user:alan`),
	// so we must find the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--api":       true,
		"--format":    true,
		"--log-file":  true,
		"--log-level": true,
		"--timeout":   true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	splice := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "ask", "--as", argv[i])
		out = append(out, argv[i+1:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isIdentityID(argv[i+1]) {
				out := make([]string, 0, len(argv)+2)
				out = append(out, argv[:i]...)
				out = append(out, "ask", "--as", argv[i+1], "--")
				out = append(out, argv[i+2:]...)
				return out
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			// --flag=value form
			if strings.Contains(a, "=") {
				continue
			}
			if boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
				continue
			}
			continue
		}

		// First positional token.
		if isIdentityID(a) {
			return splice(i)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectAskArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
