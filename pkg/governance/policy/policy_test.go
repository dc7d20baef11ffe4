package policy

import (
	"strings"
	"testing"

	"atlas-g/protocol/pkg/governance"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		category   governance.QueryType
		violations int
		status     governance.ComplianceStatus
		reason     string
	}{
		{"security probe first offence", governance.QuerySecurityProbe, 0, governance.StatusBlock, ReasonJailbreak},
		{"unethical first offence", governance.QueryUnethicalRequest, 0, governance.StatusBlock, ReasonUnethical},
		{"off topic clean", governance.QueryOffTopic, 0, governance.StatusWarn, "Out of Scope: OFF_TOPIC"},
		{"off topic repeated", governance.QueryOffTopic, 1, governance.StatusBlock, "Repeated Violation: OFF_TOPIC"},
		{"tool use clean", governance.QueryToolUseAttempt, 0, governance.StatusWarn, "Out of Scope: TOOL_USE_ATTEMPT"},
		{"code execution repeated", governance.QueryCodeExecutionAttempt, 3, governance.StatusBlock, "Repeated Violation: CODE_EXECUTION_ATTEMPT"},
		{"resume with strikes", governance.QueryResumeDeepDive, 5, governance.StatusPass, ReasonAuthorized},
		{"contact request", governance.QueryContactRequest, 0, governance.StatusPass, ReasonAuthorized},
		{"unknown fails closed", governance.QueryType("MYSTERY"), 0, governance.StatusBlock, ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.category, tt.violations)
			if d.Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, d.Status)
			}
			if d.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, d.Reason)
			}
		})
	}
}

func TestDecide_EveryCategoryHandled(t *testing.T) {
	for _, qt := range governance.QueryTypes() {
		d := Decide(qt, 0)
		if d.Reason == ReasonUnknown {
			t.Errorf("category %s fell through to the unknown branch", qt)
		}
		if !d.Status.Valid() || d.Status == governance.StatusPending {
			t.Errorf("category %s produced status %q", qt, d.Status)
		}
	}
}

func TestStrikeMonotonicity(t *testing.T) {
	violations := 0

	first := Decide(governance.QueryOffTopic, violations)
	if first.Status != governance.StatusWarn {
		t.Fatalf("expected first decision WARN, got %s", first.Status)
	}
	violations = Strike(violations)
	if violations != 1 {
		t.Fatalf("expected 1 violation after WARN, got %d", violations)
	}

	second := Decide(governance.QueryToolUseAttempt, violations)
	if second.Status != governance.StatusBlock {
		t.Fatalf("expected second decision BLOCK, got %s", second.Status)
	}
	if !strings.HasPrefix(second.Reason, "Repeated Violation") {
		t.Errorf("unexpected reason %q", second.Reason)
	}
	violations = Strike(violations)
	if violations != 2 {
		t.Errorf("expected 2 violations after BLOCK, got %d", violations)
	}
}

func TestDecayFloor(t *testing.T) {
	violations := 2
	for i := 0; i < 10; i++ {
		violations = Decay(violations)
		if violations < 0 {
			t.Fatalf("violation count went negative after %d decays", i+1)
		}
	}
	if violations != 0 {
		t.Errorf("expected count to settle at 0, got %d", violations)
	}
}

func TestTrap(t *testing.T) {
	if got := Trap(0); got != 2 {
		t.Errorf("Trap(0) = %d, want 2", got)
	}
	if got := Trap(-4); got != 2 {
		t.Errorf("Trap(-4) = %d, want 2", got)
	}
}

func TestIsVetting(t *testing.T) {
	vetting := map[governance.QueryType]bool{
		governance.QueryResumeDeepDive:   true,
		governance.QueryTechnicalInquiry: true,
	}
	for _, qt := range governance.QueryTypes() {
		if got := IsVetting(qt); got != vetting[qt] {
			t.Errorf("IsVetting(%s) = %v, want %v", qt, got, vetting[qt])
		}
	}
}
