package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"atlas-g/protocol/pkg/agent"
	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
)

const shutdownTimeout = 5 * time.Second

var chatFlags struct {
	sessionID   string
	format      string
	metricsAddr string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Start an interactive session with the agent.

Each line is one query. The audit trail of every turn is printed as it is
produced, followed by the streamed draft and the validated response.
Type /quit or send EOF to leave; the session is persisted after every turn.

Examples:
  # New session
  atlas chat

  # Resume a session and expose Prometheus metrics
  atlas chat --session 5f0c... --metrics-addr :9090`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatFlags.sessionID, "session", "s", "", "resume this session id")
	chatCmd.Flags().StringVarP(&chatFlags.format, "format", "f", "text", "output format: text, json")
	chatCmd.Flags().StringVar(&chatFlags.metricsAddr, "metrics-addr", "", "override metrics listen address")
}

func runChat(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseFormat(chatFlags.format)
	if err != nil {
		return err
	}
	cfg := config.MustGetConfig()
	if chatFlags.metricsAddr != "" {
		cfg.Telemetry.Metrics.Address = chatFlags.metricsAddr
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("chat", err)
	}
	defer a.close()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.Address != "" {
		g.Go(func() error { return serveMetrics(ctx, a, cfg.Telemetry.Metrics.Address) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Watch(ctx) })
	}
	g.Go(func() error {
		defer stop()
		return converse(ctx, a.orchestrator, chatFlags.sessionID, cmd.InOrStdin(), cli.NewRenderer(cmd.OutOrStdout(), format))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewCommandError("chat", err)
	}
	return nil
}

// converse runs one turn per input line until EOF, /quit, a concluded
// session or cancellation.
func converse(ctx context.Context, o *agent.Orchestrator, sessionID string, in io.Reader, r *cli.Renderer) error {
	sess := o.Resume(ctx, sessionID)
	fmt.Fprintf(r.Writer(), "session %s\n", sess.ID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		concluded := false
		for ev := range o.Think(ctx, sess, line) {
			if err := r.Render(ev); err != nil {
				return err
			}
			if ev.Type == agent.EventResponse && ev.Response.SessionTerminated {
				concluded = true
			}
		}
		if concluded {
			return nil
		}
	}
}

func serveMetrics(ctx context.Context, a *app, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics endpoint listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
