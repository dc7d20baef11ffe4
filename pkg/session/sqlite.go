package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	state           TEXT NOT NULL,
	context_domain  TEXT,
	violation_count INTEGER NOT NULL DEFAULT 0,
	thought_chain   TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// upsertSession writes the always-present fields and keeps stored optional
// fields when the new value is NULL.
const upsertSession = `
INSERT INTO sessions (id, created_at, updated_at, state, context_domain, violation_count, thought_chain)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	updated_at      = excluded.updated_at,
	state           = excluded.state,
	violation_count = excluded.violation_count,
	context_domain  = COALESCE(excluded.context_domain, sessions.context_domain),
	thought_chain   = COALESCE(excluded.thought_chain, sessions.thought_chain)
`

const selectSession = `
SELECT id, created_at, updated_at, state, context_domain, violation_count, thought_chain
FROM sessions WHERE id = ?
`

// SQLiteConfig configures the SQLite session store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	BusyTimeout time.Duration

	// WALMode enables Write-Ahead Logging.
	WALMode bool
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/sessions.db",
		BusyTimeout: 5 * time.Second,
		WALMode:     true,
	}
}

// SQLiteStore persists snapshots in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database at config.Path and creates the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStoreError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "session.store.sqlite"),
	}

	if err := s.initialize(config); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite session store initialized", "path", config.Path, "wal_mode", config.WALMode)
	return s, nil
}

func (s *SQLiteStore) initialize(config *SQLiteConfig) error {
	if config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStoreError("sqlite", "enable_wal", err)
		}
	}
	if config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
			return newStoreError("sqlite", "set_busy_timeout", err)
		}
	}
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return newStoreError("sqlite", "create_schema", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	var (
		snap      Snapshot
		createdAt string
		updatedAt string
		state     string
		domain    sql.NullString
		chain     sql.NullString
	)

	err := s.db.QueryRowContext(ctx, selectSession, id).Scan(
		&snap.ID, &createdAt, &updatedAt, &state, &domain, &snap.ViolationCount, &chain,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newStoreError("sqlite", "load", err)
	}

	snap.State = State(state)
	snap.ContextDomain = domain.String
	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, newStoreError("sqlite", "decode_created_at", err)
	}
	if snap.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, newStoreError("sqlite", "decode_updated_at", err)
	}
	if chain.Valid && chain.String != "" {
		if err := json.Unmarshal([]byte(chain.String), &snap.ThoughtChain); err != nil {
			return nil, newStoreError("sqlite", "decode_thought_chain", err)
		}
	}

	return &snap, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, id string, snap *Snapshot) error {
	if snap == nil {
		return newStoreError("sqlite", "save", fmt.Errorf("nil snapshot"))
	}

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	var domain any
	if snap.ContextDomain != "" {
		domain = snap.ContextDomain
	}

	var chain any
	if snap.ThoughtChain != nil {
		data, err := json.Marshal(snap.ThoughtChain)
		if err != nil {
			return newStoreError("sqlite", "encode_thought_chain", err)
		}
		chain = string(data)
	}

	_, err := s.db.ExecContext(ctx, upsertSession,
		id,
		createdAt.UTC().Format(time.RFC3339Nano),
		updatedAt.UTC().Format(time.RFC3339Nano),
		string(snap.State),
		domain,
		snap.ViolationCount,
		chain,
	)
	if err != nil {
		return newStoreError("sqlite", "save", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return newStoreError("sqlite", "delete", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return newStoreError("sqlite", "close", err)
	}
	s.logger.Info("SQLite session store closed")
	return nil
}
