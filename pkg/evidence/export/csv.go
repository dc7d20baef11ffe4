package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"atlas-g/protocol/pkg/evidence"
)

// CSVExporter exports turn records as CSV. The audit log is reduced to its
// entry count and PII ids are joined with ";".
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Header returns the CSV column names.
func (e *CSVExporter) Header() []string {
	return []string{
		"id", "session_id", "started_at", "completed_at", "recorded_at",
		"query", "query_hash",
		"category", "heuristic_group", "failed_open", "decision", "reason", "pii_detected", "context_domain",
		"violations_before", "violations_after",
		"outcome", "facts_verified", "claims_filtered", "trap_triggered", "response_hash", "lead_id",
		"provider", "generation_latency_ms", "audit_entries", "error",
	}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.TurnRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(e.Header()); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return evidence.NewExportError("csv", i, err)
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(record *evidence.TurnRecord) []string {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}

	return []string{
		record.ID,
		record.SessionID,
		formatTime(record.StartedAt),
		formatTime(record.CompletedAt),
		formatTime(record.RecordedAt),
		record.Query,
		record.QueryHash,
		string(record.Category),
		record.HeuristicGroup,
		strconv.FormatBool(record.FailedOpen),
		string(record.Decision),
		record.Reason,
		strings.Join(record.PIIDetected, ";"),
		record.ContextDomain,
		strconv.Itoa(record.ViolationsBefore),
		strconv.Itoa(record.ViolationsAfter),
		string(record.Outcome),
		strconv.Itoa(record.FactsVerified),
		strconv.Itoa(record.ClaimsFiltered),
		strconv.FormatBool(record.TrapTriggered),
		record.ResponseHash,
		record.LeadID,
		record.Provider,
		strconv.FormatInt(record.GenerationLatency.Milliseconds(), 10),
		strconv.Itoa(len(record.AuditLog)),
		record.Error,
	}
}
