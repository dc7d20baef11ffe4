package agent

import (
	"encoding/json"
	"fmt"

	"atlas-g/protocol/pkg/governance"
)

// EventType identifies the payload of an Event.
type EventType string

const (
	EventAudit    EventType = "audit"
	EventStream   EventType = "stream"
	EventResponse EventType = "response"
	EventError    EventType = "error"
)

// Event is one message of a turn's outgoing stream. Exactly one of the
// payload fields is set, matching Type.
type Event struct {
	Type EventType

	Audit    *governance.AuditLogEntry
	Stream   *StreamChunk
	Response *Response
	Error    *ErrorInfo
}

// StreamChunk is a piece of generated text, forwarded in arrival order.
type StreamChunk struct {
	Chunk     string `json:"chunk"`
	SessionID string `json:"session_id"`
}

// Response is the terminal payload of a successful or refused turn.
type Response struct {
	Content           string `json:"content"`
	Blocked           bool   `json:"blocked"`
	ViolationCount    int    `json:"violation_count"`
	FactsVerified     int    `json:"facts_verified"`
	ClaimsFiltered    int    `json:"claims_filtered"`
	ContactRequested  bool   `json:"contact_requested"`
	SessionTerminated bool   `json:"session_terminated"`
}

// ErrorInfo is the terminal payload of a failed turn.
type ErrorInfo struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Terminal reports whether e ends the turn.
func (e Event) Terminal() bool {
	return e.Type == EventResponse || e.Type == EventError
}

// MarshalJSON encodes the event as {"type": ..., "data": ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Type {
	case EventAudit:
		data = e.Audit
	case EventStream:
		data = e.Stream
	case EventResponse:
		data = e.Response
	case EventError:
		data = e.Error
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Data any       `json:"data"`
	}{e.Type, data})
}

func auditEvent(entry governance.AuditLogEntry) Event {
	return Event{Type: EventAudit, Audit: &entry}
}

func streamEvent(sessionID, chunk string) Event {
	return Event{Type: EventStream, Stream: &StreamChunk{Chunk: chunk, SessionID: sessionID}}
}

func responseEvent(r Response) Event {
	return Event{Type: EventResponse, Response: &r}
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Error: &ErrorInfo{Message: msg, Recoverable: true}}
}
