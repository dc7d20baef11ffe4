package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the follow-up status of a lead.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusContacted Status = "CONTACTED"
	StatusClosed    Status = "CLOSED"
)

// DefaultSource tags leads captured by the agent.
const DefaultSource = "ATLAS_G_PROTOCOL"

// Lead is a captured contact-form submission.
type Lead struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	Source    string    `json:"source"`
}

// Capturer persists a lead and returns its id.
type Capturer interface {
	Capture(ctx context.Context, name, email, message string) (string, error)
}

// Notifier announces a captured lead. sent is false when the notification
// was skipped or failed.
type Notifier interface {
	Notify(ctx context.Context, lead Lead) (sent bool, err error)
}

// NewLeadID returns an id of the form LEAD-XXXXXXXX.
func NewLeadID() string {
	return "LEAD-" + strings.ToUpper(uuid.NewString()[:8])
}

// Error wraps a lead capture or notification failure.
type Error struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("leads %s failed: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}
