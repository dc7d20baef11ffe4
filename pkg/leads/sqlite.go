package leads

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists leads in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// SQLiteConfig configures the lead store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens the lead database and creates its schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &Error{Operation: "open", Cause: err}
	}
	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "leads.store"),
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leads (
		id         TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		message    TEXT NOT NULL,
		status     TEXT NOT NULL,
		source     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return &Error{Operation: "create_schema", Cause: err}
	}
	return nil
}

// Capture implements Capturer.
func (s *SQLiteStore) Capture(ctx context.Context, name, email, message string) (string, error) {
	lead, err := s.CaptureLead(ctx, name, email, message)
	if err != nil {
		return "", err
	}
	return lead.ID, nil
}

// CaptureLead persists a new lead and returns the full record.
func (s *SQLiteStore) CaptureLead(ctx context.Context, name, email, message string) (*Lead, error) {
	lead := &Lead{
		ID:        NewLeadID(),
		Timestamp: s.now(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Message:   strings.TrimSpace(message),
		Status:    StatusNew,
		Source:    DefaultSource,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, created_at, name, email, message, status, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Timestamp.UnixNano(), lead.Name, lead.Email, lead.Message, string(lead.Status), lead.Source,
	)
	if err != nil {
		return nil, &Error{Operation: "capture", Cause: err}
	}

	s.logger.Info("lead captured", "lead_id", lead.ID)
	return lead, nil
}

// Get returns the lead with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, name, email, message, status, source FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		return nil, &Error{Operation: "get", Cause: err}
	}
	return lead, nil
}

// List returns up to limit leads, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, name, email, message, status, source FROM leads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &Error{Operation: "list", Cause: err}
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, &Error{Operation: "list", Cause: err}
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Operation: "list", Cause: err}
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*Lead, error) {
	var (
		lead   Lead
		nanos  int64
		status string
	)
	if err := row.Scan(&lead.ID, &nanos, &lead.Name, &lead.Email, &lead.Message, &status, &lead.Source); err != nil {
		return nil, err
	}
	lead.Timestamp = time.Unix(0, nanos).UTC()
	lead.Status = Status(status)
	return &lead, nil
}
