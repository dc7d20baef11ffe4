// Package policy implements the strike-based Policy Engine.
//
// Decide is a pure function of a query category and the session's current
// violation count. The arithmetic helpers in this package are the only code
// that changes a violation count.
package policy

import (
	"fmt"

	"atlas-g/protocol/pkg/governance"
)

const (
	// StrikePenalty is added for every WARN or BLOCK decision.
	StrikePenalty = 1

	// TrapPenalty is added when generated text trips a hallucination trap.
	TrapPenalty = 2

	// DecayReward is removed after a successful vetting turn.
	DecayReward = 1
)

// Reasons attached to decisions.
const (
	ReasonJailbreak  = "Critical Security Violation: Jailbreak Attempt"
	ReasonUnethical  = "Safety Violation: Unethical/Illegal Request"
	ReasonAuthorized = "Authorized Query"
	ReasonUnknown    = "Unrecognized Category"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Status governance.ComplianceStatus
	Reason string
}

// Decide maps a category and the current violation count to a decision.
// Unknown categories fail closed.
func Decide(qt governance.QueryType, violations int) Decision {
	switch qt {
	case governance.QuerySecurityProbe:
		return Decision{Status: governance.StatusBlock, Reason: ReasonJailbreak}

	case governance.QueryUnethicalRequest:
		return Decision{Status: governance.StatusBlock, Reason: ReasonUnethical}

	case governance.QueryToolUseAttempt,
		governance.QueryCodeExecutionAttempt,
		governance.QueryOffTopic:
		if violations >= 1 {
			return Decision{
				Status: governance.StatusBlock,
				Reason: fmt.Sprintf("Repeated Violation: %s", qt),
			}
		}
		return Decision{
			Status: governance.StatusWarn,
			Reason: fmt.Sprintf("Out of Scope: %s", qt),
		}

	case governance.QueryResumeDeepDive,
		governance.QueryTechnicalInquiry,
		governance.QueryProjectAudit,
		governance.QueryEmploymentVerification,
		governance.QueryGeneralChat,
		governance.QueryAvailabilityInquiry,
		governance.QueryContactRequest,
		governance.QueryIntegrationInquiry,
		governance.QueryCertificationInquiry,
		governance.QueryComplianceInquiry:
		return Decision{Status: governance.StatusPass, Reason: ReasonAuthorized}
	}

	return Decision{Status: governance.StatusBlock, Reason: ReasonUnknown}
}

// Strike returns the violation count after a WARN or BLOCK decision.
func Strike(violations int) int {
	return clamp(violations) + StrikePenalty
}

// Trap returns the violation count after a hallucination-trap hit.
func Trap(violations int) int {
	return clamp(violations) + TrapPenalty
}

// Decay returns the violation count after a successful vetting turn,
// floored at zero.
func Decay(violations int) int {
	return clamp(violations - DecayReward)
}

// IsVetting reports whether a successful turn in category qt earns decay.
func IsVetting(qt governance.QueryType) bool {
	switch qt {
	case governance.QueryResumeDeepDive, governance.QueryTechnicalInquiry:
		return true
	case governance.QueryProjectAudit,
		governance.QueryEmploymentVerification,
		governance.QueryGeneralChat,
		governance.QueryAvailabilityInquiry,
		governance.QueryContactRequest,
		governance.QueryIntegrationInquiry,
		governance.QueryCertificationInquiry,
		governance.QueryComplianceInquiry,
		governance.QueryToolUseAttempt,
		governance.QueryCodeExecutionAttempt,
		governance.QueryOffTopic,
		governance.QuerySecurityProbe,
		governance.QueryUnethicalRequest:
		return false
	}
	return false
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
