package governance

import (
	"fmt"
	"math"
	"time"
)

// RefusalResponse returns the polite refusal used when a turn ends with WARN.
func RefusalResponse(qt QueryType) string {
	switch qt {
	case QueryToolUseAttempt:
		return "I cannot browse the web or execute external tools. I can only provide information from my verified internal knowledge base."
	case QueryCodeExecutionAttempt:
		return "I cannot execute code or scripts. I am happy to discuss architecture, but execution environments are restricted."
	case QueryUnethicalRequest:
		return "I cannot engage with requests of this nature. Please keep inquiries focused on professional topics."
	case QueryOffTopic,
		QueryResumeDeepDive, QueryTechnicalInquiry, QueryProjectAudit,
		QueryEmploymentVerification, QueryGeneralChat, QueryAvailabilityInquiry,
		QueryContactRequest, QueryIntegrationInquiry, QueryCertificationInquiry,
		QueryComplianceInquiry, QuerySecurityProbe:
		return "That query is outside my defined scope. Please ask about professional experience, projects or skills."
	}
	return "That query is outside my defined scope."
}

// SecurityAlertResponse is the fixed message returned when a turn is blocked
// by policy.
func SecurityAlertResponse() string {
	return "[CRITICAL SECURITY ALERT]\n\n" +
		"SYSTEM LOCKDOWN INITIATED.\n" +
		"Malicious intent detected. Compliance protocols have flagged this session.\n" +
		"Access to this agent is suspended.\n"
}

// HallucinationAlertResponse is returned when generated text trips a
// hallucination trap.
func HallucinationAlertResponse() string {
	return "SECURITY ALERT: Deviation from verified facts detected. Hallucination attempt blocked."
}

// UnverifiableResponse replaces a reply whose every claim was filtered.
func UnverifiableResponse() string {
	return "I can only share details that are verifiable against my trusted record, and none of the drafted claims could be verified."
}

// RateLimitResponse is returned when a session exceeds its turn budget.
func RateLimitResponse(retryAfter time.Duration) string {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("You are sending messages faster than I can verify them. Please wait %ds and try again.", secs)
}
