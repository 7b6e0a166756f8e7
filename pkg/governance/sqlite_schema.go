package governance

// SchemaVersion is the current governance database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the governance database
// schema. Proposals carry their full document as a JSON payload with the
// lifecycle fields mirrored into columns for filtering; applications are
// append-only.
const Schema = `
CREATE TABLE IF NOT EXISTS proposals (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposals_symbol ON proposals(symbol);
CREATE INDEX IF NOT EXISTS idx_proposals_symbol_status ON proposals(symbol, status);
CREATE INDEX IF NOT EXISTS idx_proposals_created ON proposals(created_at);

CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    proposal_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    applied_by TEXT NOT NULL,
    reason TEXT NOT NULL,
    previous_policy_hash TEXT NOT NULL,
    new_policy_hash TEXT NOT NULL,
    rollback_of TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_applications_symbol ON applications(symbol);
CREATE INDEX IF NOT EXISTS idx_applications_applied ON applications(symbol, applied_at);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version LIMIT 1`
