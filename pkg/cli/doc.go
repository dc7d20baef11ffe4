/*
Package cli holds the terminal helpers shared by the atlas commands.

Rendering turns:

A Renderer prints the events of one turn as they arrive, either as
human-readable text or as one JSON object per line:

	r := cli.NewRenderer(os.Stdout, cli.FormatText)
	for ev := range orchestrator.Think(ctx, sess, query) {
		if err := r.Render(ev); err != nil {
			return err
		}
	}

Signals:

SignalContext returns a context cancelled on SIGINT or SIGTERM, so an
in-flight turn is abandoned cleanly and its session still persisted.

Errors:

ConfigError and CommandError carry the exit code reported by ExitCode.
*/
package cli
