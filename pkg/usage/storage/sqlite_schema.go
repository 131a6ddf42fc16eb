package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the usage table and its indexes. The table is append-only;
// nothing in the proxy ever updates a row after insert.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id            TEXT PRIMARY KEY,
    identity      TEXT NOT NULL,
    method        TEXT NOT NULL,
    path          TEXT NOT NULL,
    outcome       TEXT NOT NULL CHECK (outcome IN ('authorized', 'denied')),
    remote_addr   TEXT NOT NULL DEFAULT '',
    user_agent    TEXT NOT NULL DEFAULT '',
    timestamp     TIMESTAMP NOT NULL,
    recorded_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_identity ON usage_records(identity);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_outcome ON usage_records(outcome);

CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `
INSERT OR IGNORE INTO schema_version (version) VALUES (?);
`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `
SELECT COALESCE(MAX(version), 0) FROM schema_version;
`
