package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/governance"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements evidence.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, enables WAL mode if configured and
// creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store inserts record. Storing an existing id is an error.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.TurnRecord) error {
	pii, err := json.Marshal(record.PIIDetected)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	audit, err := json.Marshal(record.AuditLog)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}

	var errorVal any
	if record.Error != "" {
		errorVal = record.Error
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO turns ("+turnColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.SessionID, record.Query, record.QueryHash,
		string(record.Category), record.HeuristicGroup, record.FailedOpen, string(record.Decision), record.Reason, string(pii), record.ContextDomain,
		record.ViolationsBefore, record.ViolationsAfter,
		string(record.Outcome), record.FactsVerified, record.ClaimsFiltered, record.TrapTriggered, record.ResponseHash, record.LeadID,
		record.Provider, record.GenerationLatency.Milliseconds(), string(audit),
		toNanos(record.StartedAt), toNanos(record.CompletedAt), toNanos(record.RecordedAt), errorVal,
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the matching records, sorted and paged.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.TurnRecord, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT " + turnColumns + " FROM turns"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY started_at %s, id %s", order, order)

	// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
	limit := -1
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.TurnRecord{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM turns"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes the matching records and returns how many were removed.
func (s *SQLiteStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM turns"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

func scanRow(row *sql.Rows) (*evidence.TurnRecord, error) {
	var (
		record                                   evidence.TurnRecord
		category, decision, outcome              string
		heuristicGroup, reason, contextDomain    sql.NullString
		responseHash, leadID, provider, errorVal sql.NullString
		pii, audit                               sql.NullString
		latencyMs                                sql.NullInt64
		startedAt, completedAt, recordedAt       int64
	)

	err := row.Scan(
		&record.ID, &record.SessionID, &record.Query, &record.QueryHash,
		&category, &heuristicGroup, &record.FailedOpen, &decision, &reason, &pii, &contextDomain,
		&record.ViolationsBefore, &record.ViolationsAfter,
		&outcome, &record.FactsVerified, &record.ClaimsFiltered, &record.TrapTriggered, &responseHash, &leadID,
		&provider, &latencyMs, &audit,
		&startedAt, &completedAt, &recordedAt, &errorVal,
	)
	if err != nil {
		return nil, err
	}

	record.Category = governance.QueryType(category)
	record.Decision = governance.ComplianceStatus(decision)
	record.Outcome = evidence.Outcome(outcome)
	record.HeuristicGroup = heuristicGroup.String
	record.Reason = reason.String
	record.ContextDomain = contextDomain.String
	record.ResponseHash = responseHash.String
	record.LeadID = leadID.String
	record.Provider = provider.String
	record.Error = errorVal.String
	record.GenerationLatency = time.Duration(latencyMs.Int64) * time.Millisecond
	record.StartedAt = fromNanos(startedAt)
	record.CompletedAt = fromNanos(completedAt)
	record.RecordedAt = fromNanos(recordedAt)

	if pii.Valid && pii.String != "" && pii.String != "null" {
		if err := json.Unmarshal([]byte(pii.String), &record.PIIDetected); err != nil {
			return nil, fmt.Errorf("decode pii_detected: %w", err)
		}
	}
	if audit.Valid && audit.String != "" && audit.String != "null" {
		if err := json.Unmarshal([]byte(audit.String), &record.AuditLog); err != nil {
			return nil, fmt.Errorf("decode audit_log: %w", err)
		}
	}
	return &record, nil
}
