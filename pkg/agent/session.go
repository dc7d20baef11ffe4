package agent

import (
	"time"

	"github.com/google/uuid"

	"atlas-g/protocol/pkg/session"
)

// Session is the per-conversation state mutated by the Orchestrator.
// A Session must not be used by two turns at once; callers serialize turns
// per session id.
type Session struct {
	ID             string
	CreatedAt      time.Time
	State          session.State
	ContextDomain  string
	ViolationCount int
	ThoughtChain   []session.ThoughtStep
}

// NewSession creates an idle session. An empty id gets a random UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		State:     session.StateIdle,
	}
}

// FromSnapshot restores a session from its persisted form.
func FromSnapshot(snap *session.Snapshot) *Session {
	s := &Session{
		ID:             snap.ID,
		CreatedAt:      snap.CreatedAt,
		State:          snap.State,
		ContextDomain:  snap.ContextDomain,
		ViolationCount: snap.ViolationCount,
	}
	if snap.ThoughtChain != nil {
		s.ThoughtChain = append([]session.ThoughtStep(nil), snap.ThoughtChain...)
	}
	if !s.State.Valid() {
		s.State = session.StateIdle
	}
	if s.ViolationCount < 0 {
		s.ViolationCount = 0
	}
	return s
}

// Snapshot returns the persisted form of the session.
func (s *Session) Snapshot(now time.Time) *session.Snapshot {
	snap := &session.Snapshot{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      now,
		State:          s.State,
		ContextDomain:  s.ContextDomain,
		ViolationCount: s.ViolationCount,
	}
	if s.ThoughtChain != nil {
		snap.ThoughtChain = append([]session.ThoughtStep(nil), s.ThoughtChain...)
	}
	return snap
}

// addThought appends step and drops the oldest steps beyond limit.
// A limit of zero or less keeps every step.
func (s *Session) addThought(step session.ThoughtStep, limit int) {
	s.ThoughtChain = append(s.ThoughtChain, step)
	if limit > 0 && len(s.ThoughtChain) > limit {
		s.ThoughtChain = append([]session.ThoughtStep(nil), s.ThoughtChain[len(s.ThoughtChain)-limit:]...)
	}
}
