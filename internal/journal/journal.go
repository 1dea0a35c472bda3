// Package journal provides a SQLite-backed mutation journal for the corpus.
// Every document-level ingest, delete, and update is recorded so operators
// can trace how the embedding store reached its current state. The journal is
// advisory only: the embedding store never reads it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Action identifies the kind of corpus mutation recorded in an event.
type Action string

const (
	// ActionIngest records a document ingested into the store.
	ActionIngest Action = "ingest"
	// ActionDelete records a document removed from the store.
	ActionDelete Action = "delete"
	// ActionUpdate records a document replaced in the store.
	ActionUpdate Action = "update"
)

// Event is a single recorded corpus mutation.
type Event struct {
	// ID is the event's unique identifier.
	ID string
	// DocID is the document the mutation applied to.
	DocID string
	// Action is the kind of mutation.
	Action Action
	// Chunks is the number of chunks ingested or removed.
	Chunks int
	// CreatedAt is when the event was recorded.
	CreatedAt time.Time
}

// Journal persists corpus mutation events in a local SQLite database.
// It is safe for concurrent use.
type Journal struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default journal database path. It resolves to
// ~/.ragstore/journal.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("journal: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragstore")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("journal: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "journal.db"), nil
}

// Open opens (or creates) a Journal at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Journal, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// migrate creates the schema if it does not already exist.
func (j *Journal) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
    id          TEXT    PRIMARY KEY,
    doc_id      TEXT    NOT NULL,
    action      TEXT    NOT NULL CHECK(action IN ('ingest','delete','update')),
    chunks      INTEGER NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_events_created
    ON events (created_at);
CREATE INDEX IF NOT EXISTS idx_events_doc
    ON events (doc_id, created_at);
`
	if _, err := j.db.Exec(ddl); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Record persists a single mutation event and returns its generated id.
func (j *Journal) Record(ctx context.Context, docID string, action Action, chunks int) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO events (id, doc_id, action, chunks, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := j.db.ExecContext(ctx, q, id, docID, string(action), chunks, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("journal: record: %w", err)
	}
	return id, nil
}

// Recent returns the most recent n events, newest first. If fewer than n
// events exist, all are returned.
func (j *Journal) Recent(ctx context.Context, n int) ([]Event, error) {
	const q = `
SELECT id, doc_id, action, chunks, created_at
FROM   events
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := j.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var action string
		if err := rows.Scan(&e.ID, &e.DocID, &action, &e.Chunks, &ts); err != nil {
			return nil, fmt.Errorf("journal: recent scan: %w", err)
		}
		e.Action = Action(action)
		e.CreatedAt = time.Unix(ts, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}
	return events, nil
}

// History returns all events for a single document, oldest first.
func (j *Journal) History(ctx context.Context, docID string) ([]Event, error) {
	const q = `
SELECT id, doc_id, action, chunks, created_at
FROM   events
WHERE  doc_id = ?
ORDER  BY created_at ASC, id ASC`

	rows, err := j.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var action string
		if err := rows.Scan(&e.ID, &e.DocID, &action, &e.Chunks, &ts); err != nil {
			return nil, fmt.Errorf("journal: history scan: %w", err)
		}
		e.Action = Action(action)
		e.CreatedAt = time.Unix(ts, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: history rows: %w", err)
	}
	return events, nil
}

// Close releases the database connection pool.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}
