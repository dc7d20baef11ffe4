package governance

import (
	"fmt"
	"time"
)

// Context carries the state of a single governed turn. It is created when a
// query arrives and discarded when the turn ends; only its audit log outlives
// it, copied into the turn's outgoing events and evidence record.
//
// A Context is owned by one turn and is not safe for concurrent use.
type Context struct {
	// SessionID identifies the conversation the turn belongs to.
	SessionID string

	// Query is the raw inbound text.
	Query string

	// ViolationCount is the session's strike count when the turn started.
	ViolationCount int

	// QueryType is the resolved category. It is empty until classification.
	QueryType QueryType

	// VerifiedFacts holds sentences accepted by claim validation.
	VerifiedFacts []string

	// BlockedClaims holds sentences rejected by claim validation.
	BlockedClaims []string

	auditLog []AuditLogEntry
	now      func() time.Time
}

// NewContext creates a turn context for the given session and query.
func NewContext(sessionID, query string, violationCount int) *Context {
	return &Context{
		SessionID:      sessionID,
		Query:          query,
		ViolationCount: violationCount,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AddLog appends an entry to the audit log and returns it.
// Entries are never modified once appended.
func (c *Context) AddLog(action string, status ComplianceStatus, details string) AuditLogEntry {
	entry := AuditLogEntry{
		Timestamp: c.now(),
		Action:    action,
		Status:    status,
		Details:   details,
	}
	c.auditLog = append(c.auditLog, entry)
	return entry
}

// AddLogf is AddLog with a formatted details string.
func (c *Context) AddLogf(action string, status ComplianceStatus, format string, args ...any) AuditLogEntry {
	return c.AddLog(action, status, fmt.Sprintf(format, args...))
}

// AuditLog returns a copy of the audit log in creation order.
func (c *Context) AuditLog() []AuditLogEntry {
	out := make([]AuditLogEntry, len(c.auditLog))
	copy(out, c.auditLog)
	return out
}

// AuditLen returns the number of audit entries recorded so far.
func (c *Context) AuditLen() int {
	return len(c.auditLog)
}

// AuditSince returns a copy of the entries appended at or after index i.
func (c *Context) AuditSince(i int) []AuditLogEntry {
	if i < 0 {
		i = 0
	}
	if i >= len(c.auditLog) {
		return nil
	}
	out := make([]AuditLogEntry, len(c.auditLog)-i)
	copy(out, c.auditLog[i:])
	return out
}
