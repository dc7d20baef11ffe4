package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the turn evidence tables. Timestamps are stored as unix
// nanoseconds so that range filters and ordering are exact.
const Schema = `
CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,

    query TEXT NOT NULL,
    query_hash TEXT NOT NULL,

    category TEXT NOT NULL,
    heuristic_group TEXT,
    failed_open INTEGER NOT NULL DEFAULT 0,
    decision TEXT NOT NULL,
    reason TEXT,
    pii_detected TEXT,
    context_domain TEXT,

    violations_before INTEGER NOT NULL,
    violations_after INTEGER NOT NULL,

    outcome TEXT NOT NULL,
    facts_verified INTEGER NOT NULL DEFAULT 0,
    claims_filtered INTEGER NOT NULL DEFAULT 0,
    trap_triggered INTEGER NOT NULL DEFAULT 0,
    response_hash TEXT,
    lead_id TEXT,

    provider TEXT,
    generation_latency_ms INTEGER,

    audit_log TEXT,

    started_at INTEGER NOT NULL,
    completed_at INTEGER,
    recorded_at INTEGER NOT NULL,

    error TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_started_at ON turns(started_at);
CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
CREATE INDEX IF NOT EXISTS idx_turns_outcome ON turns(outcome);
CREATE INDEX IF NOT EXISTS idx_turns_category ON turns(category);
CREATE INDEX IF NOT EXISTS idx_turns_decision ON turns(decision);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const turnColumns = `id, session_id, query, query_hash,
	category, heuristic_group, failed_open, decision, reason, pii_detected, context_domain,
	violations_before, violations_after,
	outcome, facts_verified, claims_filtered, trap_triggered, response_hash, lead_id,
	provider, generation_latency_ms, audit_log,
	started_at, completed_at, recorded_at, error`
