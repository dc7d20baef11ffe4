package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle       State = "IDLE"
	StateThinking   State = "THINKING"
	StateActing     State = "ACTING"
	StateResponding State = "RESPONDING"
	StateBlocked    State = "BLOCKED"
)

// Valid reports whether s is a defined state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateThinking, StateActing, StateResponding, StateBlocked:
		return true
	}
	return false
}

// ThoughtStep is one entry in a session's reasoning chain.
type ThoughtStep struct {
	Thought     string    `json:"thought"`
	Action      string    `json:"action,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	ID             string        `json:"session_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	State          State         `json:"state"`
	ContextDomain  string        `json:"context_domain,omitempty"`
	ViolationCount int           `json:"violation_count"`
	ThoughtChain   []ThoughtStep `json:"thought_chain,omitempty"`
}

// Store loads and saves session snapshots.
type Store interface {
	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// Save upserts snap under id with merge semantics.
	Save(ctx context.Context, id string, snap *Snapshot) error

	// Delete removes id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// ErrNotFound is returned by Load when no snapshot exists.
var ErrNotFound = errors.New("session not found")

var errStoreClosed = errors.New("store closed")

// StoreError wraps a backend failure.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("session store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(backend, op string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: op, Cause: cause}
}

// Merge applies update on top of existing following the store's merge rules
// and returns a new snapshot. existing may be nil.
func Merge(existing, update *Snapshot) *Snapshot {
	out := &Snapshot{}
	if existing != nil {
		*out = *existing
		out.ThoughtChain = cloneChain(existing.ThoughtChain)
	}
	if update == nil {
		return out
	}

	if update.ID != "" {
		out.ID = update.ID
	}
	out.State = update.State
	out.ViolationCount = update.ViolationCount
	out.UpdatedAt = update.UpdatedAt

	if out.CreatedAt.IsZero() {
		out.CreatedAt = update.CreatedAt
	}
	if update.ContextDomain != "" {
		out.ContextDomain = update.ContextDomain
	}
	if update.ThoughtChain != nil {
		out.ThoughtChain = cloneChain(update.ThoughtChain)
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = out.UpdatedAt
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.ThoughtChain = cloneChain(s.ThoughtChain)
	return &out
}

func cloneChain(in []ThoughtStep) []ThoughtStep {
	if in == nil {
		return nil
	}
	out := make([]ThoughtStep, len(in))
	copy(out, in)
	return out
}
