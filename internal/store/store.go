// Package store provides a SQLite-backed history of source scan runs.
// Every scan records how many documents it indexed, updated, and deleted,
// plus any per-file errors, so operators can audit ingestion over time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ScanRecord is the outcome of a single scan run for one source.
type ScanRecord struct {
	// Source is the source plugin that ran the scan.
	Source string
	// Indexed is the number of documents indexed for the first time.
	Indexed int
	// Updated is the number of documents re-indexed because they changed.
	Updated int
	// Deleted is the number of documents removed because their origin vanished.
	Deleted int
	// Errors holds per-document error messages. A scan with errors still
	// counts as completed; the failing documents are simply skipped.
	Errors []string
	// CreatedAt is when the scan finished and was persisted.
	CreatedAt time.Time
}

// ScanStore persists and retrieves scan run history. Implementations must be
// safe for concurrent use.
type ScanStore interface {
	// Record persists the outcome of a completed scan run.
	Record(ctx context.Context, rec ScanRecord) error
	// Recent returns the most recent n scan records, newest-first. If source
	// is non-empty, only records for that source are returned. If fewer than
	// n records exist, all are returned.
	Recent(ctx context.Context, source string, n int) ([]ScanRecord, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a ScanStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the scan history database.
// It resolves to ~/.robrag/scans.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".robrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "scans.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS scans (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    source       TEXT    NOT NULL,
    indexed      INTEGER NOT NULL DEFAULT 0,
    updated      INTEGER NOT NULL DEFAULT 0,
    deleted      INTEGER NOT NULL DEFAULT 0,
    errors       TEXT    NOT NULL DEFAULT '[]',  -- JSON array of messages
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_scans_source_created
    ON scans (source, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists the outcome of a completed scan run. A zero CreatedAt is
// replaced with the current time.
func (s *SQLiteStore) Record(ctx context.Context, rec ScanRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	blob, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("store: record encode errors: %w", err)
	}
	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `INSERT INTO scans (source, indexed, updated, deleted, errors, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, rec.Source, rec.Indexed, rec.Updated, rec.Deleted, string(blob), ts.Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n scan records, newest-first, optionally
// restricted to a single source.
func (s *SQLiteStore) Recent(ctx context.Context, source string, n int) ([]ScanRecord, error) {
	const qAll = `
SELECT source, indexed, updated, deleted, errors, created_at
FROM   scans
ORDER  BY created_at DESC, id DESC
LIMIT  ?`
	const qSource = `
SELECT source, indexed, updated, deleted, errors, created_at
FROM   scans
WHERE  source = ?
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	var (
		rows *sql.Rows
		err  error
	)
	if source == "" {
		rows, err = s.db.QueryContext(ctx, qAll, n)
	} else {
		rows, err = s.db.QueryContext(ctx, qSource, source, n)
	}
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var recs []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var blob string
		var ts int64
		if err := rows.Scan(&rec.Source, &rec.Indexed, &rec.Updated, &rec.Deleted, &blob, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &rec.Errors); err != nil {
			return nil, fmt.Errorf("store: recent decode errors: %w", err)
		}
		rec.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
