package policy

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the policy database schema.
const Schema = `
-- Policy versions table. The active policy for a symbol is the row with
-- the highest version; history is never rewritten.
CREATE TABLE IF NOT EXISTS policies (
    symbol TEXT NOT NULL,
    version INTEGER NOT NULL,
    content TEXT NOT NULL,
    hash TEXT NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,

    PRIMARY KEY (symbol, version)
);

CREATE INDEX IF NOT EXISTS idx_policies_symbol ON policies(symbol);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version LIMIT 1`
