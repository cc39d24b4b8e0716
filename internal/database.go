package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL,
	mode          TEXT NOT NULL,
	created_at    TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	ready         INTEGER NOT NULL DEFAULT 0,
	messages      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS transcripts_updated ON transcripts(updated_at);
`

// OpenDatabase opens (creating if needed) the transcript archive at path
// and applies the schema. ":memory:" is accepted for tests.
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &StorageError{Path: path, Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: fmt.Errorf("failed to open database: %w", err)}
	}
	// One connection: sqlite serialises writers anyway and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "open", Err: fmt.Errorf("database ping failed: %w", err)}
	}

	if err := MigrateDatabase(db); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "migrate", Err: err}
	}

	return db, nil
}

// MigrateDatabase creates the archive tables if they do not exist yet
func MigrateDatabase(db *sql.DB) error {
	_, err := db.Exec(archiveSchema)
	return err
}
