package evidence

import (
	"context"
	"io"
	"time"

	"atlas-g/protocol/pkg/governance"
)

// Outcome summarises how a turn ended.
type Outcome string

const (
	// OutcomeAnswered is a turn that produced a validated response.
	OutcomeAnswered Outcome = "answered"

	// OutcomeRefused is a turn that ended with a WARN refusal.
	OutcomeRefused Outcome = "refused"

	// OutcomeBlocked is a turn blocked by policy before generation.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeTrapBlocked is a turn whose generated text tripped a
	// hallucination trap.
	OutcomeTrapBlocked Outcome = "trap_blocked"

	// OutcomeLeadCaptured is a structured submission that was captured.
	OutcomeLeadCaptured Outcome = "lead_captured"

	// OutcomeLeadFailed is a structured submission whose capture failed.
	OutcomeLeadFailed Outcome = "lead_failed"

	// OutcomeError is a turn that ended with a generation error.
	OutcomeError Outcome = "error"

	// OutcomeCancelled is a turn abandoned by the caller.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeRateLimited is a turn refused because the session exceeded its
	// turn budget.
	OutcomeRateLimited Outcome = "rate_limited"
)

// Outcomes lists every outcome.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeAnswered, OutcomeRefused, OutcomeBlocked, OutcomeTrapBlocked,
		OutcomeLeadCaptured, OutcomeLeadFailed, OutcomeError, OutcomeCancelled,
		OutcomeRateLimited,
	}
}

// Valid reports whether o is a defined outcome.
func (o Outcome) Valid() bool {
	for _, v := range Outcomes() {
		if v == o {
			return true
		}
	}
	return false
}

// TurnRecord is the immutable evidence for one turn.
type TurnRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	// Query is the inbound text truncated to the recorder's field limit;
	// QueryHash is the SHA-256 of the full text.
	Query     string `json:"query"`
	QueryHash string `json:"query_hash"`

	Category       governance.QueryType        `json:"category"`
	HeuristicGroup string                      `json:"heuristic_group,omitempty"`
	FailedOpen     bool                        `json:"failed_open"`
	Decision       governance.ComplianceStatus `json:"decision"`
	Reason         string                      `json:"reason"`
	PIIDetected    []string                    `json:"pii_detected,omitempty"`
	ContextDomain  string                      `json:"context_domain,omitempty"`

	ViolationsBefore int `json:"violations_before"`
	ViolationsAfter  int `json:"violations_after"`

	Outcome        Outcome `json:"outcome"`
	FactsVerified  int     `json:"facts_verified"`
	ClaimsFiltered int     `json:"claims_filtered"`
	TrapTriggered  bool    `json:"trap_triggered"`
	ResponseHash   string  `json:"response_hash,omitempty"`
	LeadID         string  `json:"lead_id,omitempty"`

	Provider          string        `json:"provider,omitempty"`
	GenerationLatency time.Duration `json:"generation_latency"`

	AuditLog []governance.AuditLogEntry `json:"audit_log"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	RecordedAt  time.Time `json:"recorded_at"`

	Error string `json:"error,omitempty"`
}

// Clone returns a deep copy of r.
func (r *TurnRecord) Clone() *TurnRecord {
	out := *r
	if r.PIIDetected != nil {
		out.PIIDetected = append([]string(nil), r.PIIDetected...)
	}
	if r.AuditLog != nil {
		out.AuditLog = append([]governance.AuditLogEntry(nil), r.AuditLog...)
	}
	return &out
}

// Query selects turn records. Zero-valued fields do not filter.
type Query struct {
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive, on StartedAt
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive, on StartedAt

	SessionID string                      `json:"session_id,omitempty"`
	Outcome   Outcome                     `json:"outcome,omitempty"`
	Category  governance.QueryType        `json:"category,omitempty"`
	Decision  governance.ComplianceStatus `json:"decision,omitempty"`

	// IDs restricts the query to specific records.
	IDs []string `json:"ids,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder is "asc" or "desc" on StartedAt. Default "desc".
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage persists turn records.
type Storage interface {
	// Store persists a record. Records are never updated after storage.
	Store(ctx context.Context, record *TurnRecord) error

	// Query returns the records matching query.
	Query(ctx context.Context, query *Query) ([]*TurnRecord, error)

	// Count returns the number of records matching query, ignoring paging.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes the records matching query, ignoring paging, and
	// returns how many were removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Exporter writes records in an interchange format.
type Exporter interface {
	Export(ctx context.Context, records []*TurnRecord, w io.Writer) error
}
