// Package storage provides evidence storage backends.
package storage

import (
	"context"
	"sync"

	"atlas-g/protocol/pkg/evidence"
)

// MemoryStorage implements evidence.Storage with an in-memory map.
// It is intended for tests and for runs without a configured database.
type MemoryStorage struct {
	records map[string]*evidence.TurnRecord
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.TurnRecord),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record.Clone()
	return nil
}

// Query returns copies of the matching records, sorted and paged.
func (s *MemoryStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.TurnRecord, error) {
	s.mu.RLock()
	results := []*evidence.TurnRecord{}
	for _, record := range s.records {
		if matches(record, query) {
			results = append(results, record.Clone())
		}
	}
	s.mu.RUnlock()

	sortRecords(results, query.SortOrder)

	start := query.Offset
	if start > len(results) {
		return []*evidence.TurnRecord{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matches(record, query) {
			count++
		}
	}
	return count, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matches(record, query) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close discards all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*evidence.TurnRecord)
	return nil
}

// Size returns the number of records held.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
