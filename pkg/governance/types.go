package governance

import (
	"fmt"
	"strings"
	"time"
)

// ComplianceStatus is the outcome of a compliance check.
type ComplianceStatus string

const (
	// StatusPass means the check succeeded.
	StatusPass ComplianceStatus = "PASS"

	// StatusWarn means the query is out of scope but not malicious (strike one).
	StatusWarn ComplianceStatus = "WARN"

	// StatusBlock means the query is malicious or a repeated violation.
	StatusBlock ComplianceStatus = "BLOCK"

	// StatusPending marks a stage that has started but not concluded.
	StatusPending ComplianceStatus = "PENDING"
)

// Valid reports whether s is one of the defined statuses.
func (s ComplianceStatus) Valid() bool {
	switch s {
	case StatusPass, StatusWarn, StatusBlock, StatusPending:
		return true
	}
	return false
}

// QueryType is the closed classification assigned to an inbound query before
// any generation occurs.
type QueryType string

// Permitted categories.
const (
	QueryResumeDeepDive         QueryType = "RESUME_DEEP_DIVE"
	QueryTechnicalInquiry       QueryType = "TECHNICAL_INQUIRY"
	QueryProjectAudit           QueryType = "PROJECT_AUDIT"
	QueryEmploymentVerification QueryType = "EMPLOYMENT_VERIFICATION"
	QueryGeneralChat            QueryType = "GENERAL_CHAT"
	QueryAvailabilityInquiry    QueryType = "AVAILABILITY_INQUIRY"
	QueryContactRequest         QueryType = "CONTACT_REQUEST"
	QueryIntegrationInquiry     QueryType = "INTEGRATION_INQUIRY"
	QueryCertificationInquiry   QueryType = "CERTIFICATION_INQUIRY"
	QueryComplianceInquiry      QueryType = "COMPLIANCE_INQUIRY"
)

// Restricted categories (two strikes).
const (
	QueryToolUseAttempt       QueryType = "TOOL_USE_ATTEMPT"
	QueryCodeExecutionAttempt QueryType = "CODE_EXECUTION_ATTEMPT"
	QueryOffTopic             QueryType = "OFF_TOPIC"
)

// Critical categories (zero tolerance).
const (
	QuerySecurityProbe    QueryType = "SECURITY_PROBE"
	QueryUnethicalRequest QueryType = "UNETHICAL_REQUEST"
)

// allQueryTypes lists every category in declaration order. The classifier
// relies on this order when a response mentions more than one category.
var allQueryTypes = []QueryType{
	QueryResumeDeepDive,
	QueryTechnicalInquiry,
	QueryProjectAudit,
	QueryEmploymentVerification,
	QueryGeneralChat,
	QueryAvailabilityInquiry,
	QueryContactRequest,
	QueryIntegrationInquiry,
	QueryCertificationInquiry,
	QueryComplianceInquiry,
	QueryToolUseAttempt,
	QueryCodeExecutionAttempt,
	QueryOffTopic,
	QuerySecurityProbe,
	QueryUnethicalRequest,
}

// QueryTypes returns every category in declaration order.
func QueryTypes() []QueryType {
	out := make([]QueryType, len(allQueryTypes))
	copy(out, allQueryTypes)
	return out
}

// ParseQueryType converts a string into a QueryType. Matching is
// case-insensitive; surrounding whitespace is ignored.
func ParseQueryType(s string) (QueryType, error) {
	candidate := QueryType(strings.ToUpper(strings.TrimSpace(s)))
	for _, qt := range allQueryTypes {
		if qt == candidate {
			return qt, nil
		}
	}
	return "", fmt.Errorf("unknown query type %q", s)
}

// Valid reports whether q is one of the defined categories.
func (q QueryType) Valid() bool {
	for _, qt := range allQueryTypes {
		if qt == q {
			return true
		}
	}
	return false
}

// AuditLogEntry is a single immutable record in a turn's audit trail.
type AuditLogEntry struct {
	Timestamp time.Time        `json:"timestamp"`
	Action    string           `json:"action"`
	Status    ComplianceStatus `json:"status"`
	Details   string           `json:"details"`
}

// Audit action labels emitted by the compliance pipeline.
const (
	ActionIdentifyingIntent  = "IDENTIFYING INTENT"
	ActionHeuristicHit       = "HEURISTIC SCAN"
	ActionIntentIdentified   = "INTENT IDENTIFIED"
	ActionIntentFallback     = "INTENT FALLBACK"
	ActionPolicyEnforcement  = "POLICY ENFORCEMENT"
	ActionPIIScan            = "PII SCAN"
	ActionAccessGranted      = "ACCESS GRANTED"
	ActionContextRouting     = "CONTEXT ROUTING"
	ActionGenerating         = "GENERATING RESPONSE"
	ActionClaimValidation    = "CLAIM VALIDATION"
	ActionGovernanceLayer    = "GOVERNANCE LAYER"
	ActionHallucinationTrap  = "HALLUCINATION TRAP"
	ActionGovernanceDecay    = "GOVERNANCE DECAY"
	ActionLeadCaptured       = "LEAD CAPTURED"
	ActionLeadCaptureFailed  = "LEAD CAPTURE FAILED"
	ActionResponseComplete   = "RESPONSE COMPLETE"
	ActionGenerationFailed   = "GENERATION FAILED"
	ActionSubmissionReceived = "SUBMISSION RECEIVED"
	ActionRateLimit          = "RATE LIMIT"
)
