package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/agent"
	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
)

var askFlags struct {
	sessionID string
	format    string
}

var askCmd = &cobra.Command{
	Use:   "ask [flags] QUERY...",
	Short: "Run a single turn",
	Long: `Run one turn for QUERY and print its events.

With --format json every event is printed as one JSON object per line, in
the order produced: audit entries, stream chunks, then the response or error.

Examples:
  atlas ask "Which projects used Kubernetes?"
  atlas ask --session 5f0c... --format json "Tell me about Acme"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askFlags.sessionID, "session", "s", "", "resume this session id")
	askCmd.Flags().StringVarP(&askFlags.format, "format", "f", "text", "output format: text, json")
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(askFlags.format)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, config.MustGetConfig())
	if err != nil {
		return cli.NewCommandError("ask", err)
	}
	defer a.close()

	r := cli.NewRenderer(cmd.OutOrStdout(), format)
	sess := a.orchestrator.Resume(ctx, askFlags.sessionID)

	var failed *agent.ErrorInfo
	for ev := range a.orchestrator.Think(ctx, sess, strings.Join(args, " ")) {
		if err := r.Render(ev); err != nil {
			return err
		}
		if ev.Type == agent.EventError {
			failed = ev.Error
		}
	}
	if failed != nil {
		return cli.NewCommandError("ask", errors.New(failed.Message))
	}
	return ctx.Err()
}
