package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/evidence/export"
	"atlas-g/protocol/pkg/evidence/query"
	"atlas-g/protocol/pkg/governance"
)

var evidenceFlags struct {
	timeRange string
	sessionID string
	outcome   string
	category  string
	decision  string
	limit     int
	offset    int
	order     string
	format    string
	output    string
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query and prune turn evidence",
	Long: `Query, export and prune the per-turn evidence records.

Every turn leaves one record: the query hash, category, policy decision,
strike counts before and after, outcome, claim counts and the full audit
log.

Subcommands:
  query   - Query evidence records with filters
  prune   - Apply the retention policy once`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Long: `Query evidence records with filters.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-01-01T00:00:00Z/2026-01-02T00:00:00Z"

Examples:
  # Blocked turns of one session
  atlas evidence query --session 5f0c... --outcome blocked

  # Everything refused by policy, as CSV
  atlas evidence query --decision WARN --format csv --output refused.csv`,
	RunE: queryEvidence,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	RunE:  pruneEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidencePruneCmd)

	f := evidenceQueryCmd.Flags()
	f.StringVar(&evidenceFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	f.StringVar(&evidenceFlags.sessionID, "session", "", "filter by session id")
	f.StringVar(&evidenceFlags.outcome, "outcome", "", "filter by outcome (answered, refused, blocked, trap_blocked, ...)")
	f.StringVar(&evidenceFlags.category, "category", "", "filter by query category")
	f.StringVar(&evidenceFlags.decision, "decision", "", "filter by policy decision (PASS, WARN, BLOCK)")
	f.IntVar(&evidenceFlags.limit, "limit", query.DefaultLimit, "max results")
	f.IntVar(&evidenceFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&evidenceFlags.order, "order", "desc", "sort order on start time: asc, desc")
	f.StringVar(&evidenceFlags.format, "format", "json", "output format: json, jsonl, csv")
	f.StringVarP(&evidenceFlags.output, "output", "o", "", "output file (default: stdout)")
}

func queryEvidence(cmd *cobra.Command, _ []string) error {
	q, err := buildEvidenceQuery()
	if err != nil {
		return err
	}
	exporter, err := newExporter(evidenceFlags.format)
	if err != nil {
		return err
	}

	store, err := openEvidence(config.MustGetConfig().Evidence)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if evidenceFlags.output != "" {
		f, err := os.Create(evidenceFlags.output)
		if err != nil {
			return cli.NewCommandError("evidence query", err)
		}
		defer f.Close()
		w = f
	}
	if err := exporter.Export(cmd.Context(), records, w); err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	if evidenceFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ %d records written to %s\n", len(records), evidenceFlags.output)
	}
	return nil
}

func buildEvidenceQuery() (*evidence.Query, error) {
	q := &evidence.Query{
		SessionID: evidenceFlags.sessionID,
		Outcome:   evidence.Outcome(strings.ToLower(evidenceFlags.outcome)),
		Decision:  governance.ComplianceStatus(strings.ToUpper(evidenceFlags.decision)),
		Limit:     evidenceFlags.limit,
		Offset:    evidenceFlags.offset,
		SortOrder: evidenceFlags.order,
	}
	if evidenceFlags.category != "" {
		qt, err := governance.ParseQueryType(evidenceFlags.category)
		if err != nil {
			return nil, err
		}
		q.Category = qt
	}
	if evidenceFlags.timeRange != "" {
		start, end, err := parseTimeRange(evidenceFlags.timeRange)
		if err != nil {
			return nil, err
		}
		q.StartTime, q.EndTime = &start, &end
	}

	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeRange(s string) (time.Time, time.Time, error) {
	from, to, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range %q (want start/end)", s)
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(from))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(to))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	return start, end, nil
}

func newExporter(format string) (evidence.Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return export.NewJSONExporter(true), nil
	case "jsonl":
		return &export.JSONExporter{Lines: true}, nil
	case "csv":
		return export.NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use json, jsonl or csv)", format)
	}
}

func pruneEvidence(cmd *cobra.Command, _ []string) error {
	cfg := config.MustGetConfig().Evidence
	store, err := openEvidence(cfg)
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	defer store.Close()

	deleted, err := newPruner(store, cfg.Retention).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records\n", deleted)
	return nil
}
