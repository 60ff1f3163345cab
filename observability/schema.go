package observability

import "database/sql"

// Schema is the complete DDL for the audit database. Init(db) applies it;
// the constant is exported so deployments with their own schema management
// can embed it instead.
const Schema = `
-- Session lifecycle events
CREATE TABLE IF NOT EXISTS session_events (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    session_id TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    data TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_session_events_session_time
    ON session_events(session_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_session_events_type
    ON session_events(event_type, timestamp DESC);

-- Daemon heartbeats
CREATE TABLE IF NOT EXISTS daemon_heartbeats (
    heartbeat_id TEXT PRIMARY KEY,
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    goroutines_count INTEGER,
    memory_alloc_mb REAL,
    memory_sys_mb REAL,
    gc_count INTEGER
);
CREATE INDEX IF NOT EXISTS idx_daemon_heartbeats_time
    ON daemon_heartbeats(timestamp DESC);
`

// Init applies the schema. Idempotent.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
