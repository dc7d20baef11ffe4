package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(&Config{Enabled: true}, nil)

	c.RecordTurn("answered", 2*time.Second)
	c.RecordTurn("answered", time.Second)
	c.RecordTurn("blocked", 10*time.Millisecond)
	c.RecordPolicyDecision("SECURITY_PROBE", "BLOCK")
	c.RecordHeuristicHit("jailbreak")
	c.RecordClassifierFallback()
	c.RecordClaims(3, 1)
	c.RecordHallucinationTrap()
	c.RecordSessionStoreError("save")
	c.RecordLeadCaptured()
	c.RecordEvidenceWrite(nil)
	c.RecordEvidenceWrite(errors.New("disk full"))
	c.ObserveGeneration("gemini", "stream", 500*time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"answered turns", testutil.ToFloat64(c.turns.WithLabelValues("answered")), 2},
		{"blocked turns", testutil.ToFloat64(c.turns.WithLabelValues("blocked")), 1},
		{"policy decisions", testutil.ToFloat64(c.policyDecisions.WithLabelValues("SECURITY_PROBE", "BLOCK")), 1},
		{"heuristic hits", testutil.ToFloat64(c.heuristicHits.WithLabelValues("jailbreak")), 1},
		{"fallbacks", testutil.ToFloat64(c.classifierFailure), 1},
		{"verified claims", testutil.ToFloat64(c.claims.WithLabelValues("verified")), 3},
		{"filtered claims", testutil.ToFloat64(c.claims.WithLabelValues("filtered")), 1},
		{"traps", testutil.ToFloat64(c.traps), 1},
		{"store errors", testutil.ToFloat64(c.storeErrors.WithLabelValues("save")), 1},
		{"leads", testutil.ToFloat64(c.leads), 1},
		{"evidence ok", testutil.ToFloat64(c.evidenceWrites.WithLabelValues("ok")), 1},
		{"evidence error", testutil.ToFloat64(c.evidenceWrites.WithLabelValues("error")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.turnDuration); n != 1 {
		t.Errorf("expected 1 turn duration series, got %d", n)
	}
	if n := testutil.CollectAndCount(c.generationDuration); n != 1 {
		t.Errorf("expected 1 generation duration series, got %d", n)
	}
}

func TestCollector_NilAndDisabled(t *testing.T) {
	var nilCollector *Collector
	nilCollector.RecordTurn("answered", time.Second)
	nilCollector.RecordClaims(1, 1)
	nilCollector.RecordEvidenceWrite(nil)
	if nilCollector.Registry() != nil {
		t.Error("nil collector must have no registry")
	}

	disabled := NewCollector(&Config{Enabled: false}, nil)
	disabled.RecordLeadCaptured()
	if got := testutil.ToFloat64(disabled.leads); got != 0 {
		t.Errorf("disabled collector recorded %v leads", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(&Config{Enabled: true, Namespace: "test"}, nil)
	c.RecordHeuristicHit("code_execution")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_agent_heuristic_hits_total{group="code_execution"} 1`) {
		t.Errorf("metric not exposed:\n%s", rec.Body.String())
	}
}
