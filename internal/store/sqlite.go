// Package store provides SQLite-backed persistence for the Openboard
// workflow engine.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	name            TEXT PRIMARY KEY,
	session_type    TEXT NOT NULL DEFAULT 'feature',
	state_id        TEXT NOT NULL DEFAULT 'gather-goals',
	status          TEXT NOT NULL DEFAULT 'running',
	state_version   INTEGER NOT NULL DEFAULT 1,
	current_item    INTEGER NOT NULL DEFAULT 0,
	current_batch   INTEGER NOT NULL DEFAULT 0,
	batches_json    TEXT NOT NULL DEFAULT '[]',
	completed_json  TEXT NOT NULL DEFAULT '[]',
	pending_json    TEXT NOT NULL DEFAULT '[]',
	last_event_seq  INTEGER NOT NULL DEFAULT 0,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS work_items (
	session TEXT NOT NULL,
	number  INTEGER NOT NULL,
	type    TEXT NOT NULL,
	status  TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY (session, number)
);

CREATE TABLE IF NOT EXISTS documents (
	session     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	item_number INTEGER NOT NULL DEFAULT 0,
	content     TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session, kind, item_number)
);

CREATE TABLE IF NOT EXISTS workflow_events (
	id           TEXT PRIMARY KEY,
	session      TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	state_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(session, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_events_session_seq ON workflow_events(session, seq_no);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
