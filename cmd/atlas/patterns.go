package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
	"atlas-g/protocol/pkg/governance/heuristics"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Validate and exercise heuristic pattern tables",
}

var patternsLintCmd = &cobra.Command{
	Use:   "lint [FILE]",
	Short: "Compile a pattern file and report its contents",
	Long: `Compile every regex in a pattern file and report the tables it defines.

Without FILE the configured governance.patterns_file is checked, or the
built-in tables when none is configured.

Examples:
  atlas patterns lint patterns.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: lintPatterns,
}

var patternsTestCmd = &cobra.Command{
	Use:   "test QUERY...",
	Short: "Run the heuristic scanner and PII scan over a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  testPatterns,
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.AddCommand(patternsLintCmd, patternsTestCmd)
}

func patternsPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.MustGetConfig().Governance.PatternsFile
}

func lintPatterns(cmd *cobra.Command, args []string) error {
	path := patternsPath(args)
	lib, err := loadLibrary(path)
	if err != nil {
		return cli.NewCommandError("patterns lint", err)
	}
	if path == "" {
		path = "(built-in)"
	}

	t := lib.Tables()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s: %d patterns compiled\n", path, t.PatternCount())
	for _, g := range t.ThreatGroups {
		fmt.Fprintf(out, "  threat group %-20s -> %-24s priority %4d, %d patterns\n", g.Name, g.Category, g.Priority, len(g.Patterns))
	}
	fmt.Fprintf(out, "  hallucination traps %d, assertion markers %d, pii %d\n",
		len(t.HallucinationTraps), len(t.AssertionMarkers), len(t.PII))
	return nil
}

func testPatterns(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary(config.MustGetConfig().Governance.PatternsFile)
	if err != nil {
		return cli.NewCommandError("patterns test", err)
	}
	scanner := heuristics.NewScanner(lib, slog.Default())
	q := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if hit, ok := scanner.Scan(q); ok {
		fmt.Fprintf(out, "threat: %s (group %s, pattern %s)\n", hit.Category, hit.Group, hit.PatternID)
	} else {
		fmt.Fprintln(out, "threat: none, query goes to the classifier")
	}
	if pii := scanner.DetectPII(q); len(pii) > 0 {
		fmt.Fprintf(out, "pii: %s\n", strings.Join(pii, ", "))
	}
	return nil
}
