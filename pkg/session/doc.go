// Package session persists conversation snapshots between turns.
//
// The Store interface has merge semantics: Save always writes State,
// ViolationCount and UpdatedAt, but writes CreatedAt, ContextDomain and
// ThoughtChain only when they carry a value, so a partial snapshot never
// erases fields written by an earlier turn.
//
// Backends:
//
//   - MemoryStore: process-local map, for tests and single-shot CLI use.
//   - SQLiteStore: github.com/mattn/go-sqlite3 with an UPSERT per save.
//   - RedisStore: github.com/redis/go-redis/v9 hashes with an optional TTL.
//
// Load returns ErrNotFound for an unknown id. Backend failures are wrapped
// in *StoreError.
package session
