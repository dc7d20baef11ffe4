package session

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Snapshot
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Snapshot)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, newStoreError("memory", "load", errStoreClosed)
	}
	snap, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, id string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newStoreError("memory", "save", errStoreClosed)
	}
	merged := Merge(m.sessions[id], snap)
	merged.ID = id
	m.sessions[id] = merged
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newStoreError("memory", "delete", errStoreClosed)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = nil
	return nil
}
