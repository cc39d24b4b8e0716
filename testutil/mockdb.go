package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateInMemoryDB opens an empty in-memory SQLite database that is closed
// when the test ends
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// each connection would get its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateCorruptFile writes bytes that no SQLite driver accepts as a database
func CreateCorruptFile(t *testing.T, name string) string {
	t.Helper()
	return WriteTempFile(t, name, "this is not a sqlite database, just some text padding it out to a full page header")
}
