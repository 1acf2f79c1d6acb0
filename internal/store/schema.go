// Package store is the SQLite-backed record store for notes, link edges,
// papers and journal entries, with optional FTS5 full-text search over notes.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Link edges carry no foreign keys: edges may outlive either endpoint, and
// the same pair may appear more than once.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	slug          TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '{"type":"doc"}',
	body          TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	explicit_tags TEXT NOT NULL DEFAULT '[]',
	folder        TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_slug ON notes(slug);
CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);

CREATE TABLE IF NOT EXISTS note_links (
	id             TEXT PRIMARY KEY,
	source_note_id TEXT NOT NULL,
	target_note_id TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_note_links_source ON note_links(source_note_id);
CREATE INDEX IF NOT EXISTS idx_note_links_target ON note_links(target_note_id);
`

// Paper and journal relations are plain join tables keyed by the pair, so a
// repeated link is a no-op. Rows are removed with their paper or entry.
const trackerSchemaSQL = `
CREATE TABLE IF NOT EXISTS papers (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	authors          TEXT NOT NULL DEFAULT '[]',
	year             INTEGER,
	venue            TEXT NOT NULL DEFAULT '',
	pdf_url          TEXT NOT NULL DEFAULT '',
	abstract         TEXT NOT NULL DEFAULT '',
	key_contribution TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'queue',
	rating           INTEGER,
	tags             TEXT NOT NULL DEFAULT '[]',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status);

CREATE TABLE IF NOT EXISTS paper_notes (
	paper_id   TEXT NOT NULL,
	note_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (paper_id, note_id)
);

CREATE INDEX IF NOT EXISTS idx_paper_notes_note ON paper_notes(note_id);

CREATE TABLE IF NOT EXISTS journal_entries (
	id         TEXT PRIMARY KEY,
	date       TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '{"type":"doc"}',
	time_spent INTEGER,
	mood       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_entries_date ON journal_entries(date);

CREATE TABLE IF NOT EXISTS journal_papers (
	journal_id TEXT NOT NULL,
	paper_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (journal_id, paper_id)
);

CREATE INDEX IF NOT EXISTS idx_journal_papers_paper ON journal_papers(paper_id);
`

// DB wraps a sql.DB with record-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if _, err := conn.Exec(trackerSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply tracker schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
