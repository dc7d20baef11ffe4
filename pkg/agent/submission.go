package agent

import (
	"fmt"
	"strings"
)

// Markers recognised in queries and generated text.
const (
	// SubmissionMarker prefixes a structured contact form submission.
	SubmissionMarker = "[CONTACT FORM SUBMISSION]"

	// ContactTrigger is emitted by the model to ask the client to show the
	// contact form. It is removed from the response content.
	ContactTrigger = "[TRIGGER_CONTACT_FORM]"
)

// Submission is a parsed contact form submission.
type Submission struct {
	Name    string
	Email   string
	Message string
}

// ParseSubmission extracts the Name, Email and Note lines of a structured
// submission. ok is false when query does not carry the marker.
func ParseSubmission(query string) (sub Submission, ok bool) {
	if !strings.Contains(query, SubmissionMarker) {
		return Submission{}, false
	}

	sub = Submission{Name: "Unknown", Email: "Unknown", Message: "No message"}
	for _, line := range strings.Split(query, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Name:"):
			sub.Name = fieldValue(line, "Name:", sub.Name)
		case strings.HasPrefix(line, "Email:"):
			sub.Email = fieldValue(line, "Email:", sub.Email)
		case strings.HasPrefix(line, "Note:"):
			sub.Message = fieldValue(line, "Note:", sub.Message)
		}
	}
	return sub, true
}

func fieldValue(line, prefix, fallback string) string {
	if v := strings.TrimSpace(strings.TrimPrefix(line, prefix)); v != "" {
		return v
	}
	return fallback
}

func acknowledgement(name, leadID, subject string) string {
	return fmt.Sprintf("Thank you, %s. Your transmission has been securely logged (Lead ID: %s) and I have notified %s directly. "+
		"We will be in touch soon regarding your inquiry.\n\n"+
		"This session is now concluding. You may close the terminal at your convenience.",
		name, leadID, subject)
}

func uplinkApology(subject string) string {
	return fmt.Sprintf("I apologize, but there was an internal error during the uplink process. Please contact %s directly.", subject)
}

// stripTrigger removes every contact trigger token from text.
func stripTrigger(text string) string {
	if !strings.Contains(text, ContactTrigger) {
		return text
	}
	return strings.TrimSpace(strings.ReplaceAll(text, ContactTrigger, ""))
}
