package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
	"atlas-g/protocol/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas-G - governance-gated professional record agent",
	Long: `Atlas-G answers questions about one person's professional record through
a Thought-Action loop gated by a compliance pipeline:

  - Heuristic threat scanning and LLM intent classification
  - Strike-based policy decisions with decay for legitimate vetting
  - Sentence-level claim validation against a trusted document
  - Hallucination traps, PII scanning and an ordered audit trail
  - Per-turn evidence records for later review`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// initialize loads the process configuration and installs the logger.
func initialize(*cobra.Command, []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	cfg := config.MustGetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	patterns := make([]logging.RedactPattern, 0, len(cfg.RedactPatterns))
	for _, p := range cfg.RedactPatterns {
		patterns = append(patterns, logging.RedactPattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
		})
	}
	return logging.New(logging.Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactPII:      cfg.RedactPII,
		RedactPatterns: patterns,
	})
}
