package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/governance"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id, session string, offset time.Duration, outcome evidence.Outcome) *evidence.TurnRecord {
	started := baseTime.Add(offset)
	return &evidence.TurnRecord{
		ID:                id,
		SessionID:         session,
		Query:             "What did you build at Acme?",
		QueryHash:         "abc123",
		Category:          governance.QueryResumeDeepDive,
		Decision:          governance.StatusPass,
		Reason:            "Authorized Query",
		PIIDetected:       []string{"email"},
		ContextDomain:     "FinTech",
		ViolationsBefore:  1,
		ViolationsAfter:   0,
		Outcome:           outcome,
		FactsVerified:     2,
		ClaimsFiltered:    1,
		Provider:          "gemini",
		GenerationLatency: 1500 * time.Millisecond,
		AuditLog: []governance.AuditLogEntry{
			{Timestamp: started, Action: "IDENTIFYING INTENT", Status: governance.StatusPending, Details: "Classifying"},
		},
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
		RecordedAt:  started.Add(3 * time.Second),
	}
}

func backends(t *testing.T) map[string]evidence.Storage {
	t.Helper()

	sqliteStore, err := NewSQLiteStorage(&SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "evidence.db"),
		WALMode:     true,
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}

	return map[string]evidence.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqliteStore,
	}
}

func seed(t *testing.T, s evidence.Storage) {
	t.Helper()
	records := []*evidence.TurnRecord{
		testRecord("r1", "s1", 0, evidence.OutcomeAnswered),
		testRecord("r2", "s1", time.Minute, evidence.OutcomeRefused),
		testRecord("r3", "s2", 2*time.Minute, evidence.OutcomeAnswered),
		testRecord("r4", "s2", 3*time.Minute, evidence.OutcomeBlocked),
	}
	records[3].Decision = governance.StatusBlock
	records[3].Category = governance.QuerySecurityProbe
	records[3].Error = "blocked"
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) failed: %v", r.ID, err)
		}
	}
}

func ids(records []*evidence.TurnRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			want := testRecord("r1", "s1", 0, evidence.OutcomeAnswered)
			if err := s.Store(ctx, want); err != nil {
				t.Fatalf("Store() failed: %v", err)
			}

			got, err := s.Query(ctx, &evidence.Query{IDs: []string{"r1"}})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 record, got %d", len(got))
			}
			if diff := cmp.Diff(want, got[0]); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	start := baseTime.Add(30 * time.Second)
	end := baseTime.Add(150 * time.Second)

	tests := []struct {
		name  string
		query evidence.Query
		want  []string
	}{
		{"all desc", evidence.Query{}, []string{"r4", "r3", "r2", "r1"}},
		{"all asc", evidence.Query{SortOrder: "asc"}, []string{"r1", "r2", "r3", "r4"}},
		{"session", evidence.Query{SessionID: "s1", SortOrder: "asc"}, []string{"r1", "r2"}},
		{"outcome", evidence.Query{Outcome: evidence.OutcomeAnswered}, []string{"r3", "r1"}},
		{"category", evidence.Query{Category: governance.QuerySecurityProbe}, []string{"r4"}},
		{"decision", evidence.Query{Decision: governance.StatusBlock}, []string{"r4"}},
		{"time range", evidence.Query{StartTime: &start, EndTime: &end, SortOrder: "asc"}, []string{"r2", "r3"}},
		{"ids", evidence.Query{IDs: []string{"r1", "r4"}, SortOrder: "asc"}, []string{"r1", "r4"}},
		{"paging", evidence.Query{Limit: 2, Offset: 1, SortOrder: "asc"}, []string{"r2", "r3"}},
		{"offset past end", evidence.Query{Offset: 10}, []string{}},
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					q := tt.query
					got, err := s.Query(context.Background(), &q)
					if err != nil {
						t.Fatalf("Query() failed: %v", err)
					}
					if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
						t.Errorf("ids mismatch (-want +got):\n%s", diff)
					}
				})
			}
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			n, err := s.Count(ctx, &evidence.Query{SessionID: "s2", Limit: 1})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if n != 2 {
				t.Errorf("expected count 2 ignoring limit, got %d", n)
			}

			cutoff := baseTime.Add(90 * time.Second)
			deleted, err := s.Delete(ctx, &evidence.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete() failed: %v", err)
			}
			if deleted != 2 {
				t.Errorf("expected 2 deleted, got %d", deleted)
			}

			remaining, err := s.Count(ctx, &evidence.Query{})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if remaining != 2 {
				t.Errorf("expected 2 remaining, got %d", remaining)
			}
		})
	}
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	s, err := NewSQLiteStorage(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "dup.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	defer s.Close()

	rec := testRecord("dup", "s", 0, evidence.OutcomeAnswered)
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("first Store() failed: %v", err)
	}
	err = s.Store(context.Background(), rec)
	var storageErr *evidence.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError on duplicate id, got %v", err)
	}
	if storageErr.Operation != "store" {
		t.Errorf("expected operation store, got %q", storageErr.Operation)
	}
}

func TestMemoryStorage_IsolatesCopies(t *testing.T) {
	s := NewMemoryStorage()
	rec := testRecord("r1", "s1", 0, evidence.OutcomeAnswered)
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	rec.PIIDetected[0] = "mutated"
	got, _ := s.Query(context.Background(), &evidence.Query{})
	if got[0].PIIDetected[0] != "email" {
		t.Error("stored record shares memory with the caller")
	}
	if s.Size() != 1 {
		t.Errorf("expected size 1, got %d", s.Size())
	}
}
