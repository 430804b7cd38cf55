package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB returns an in-memory database with the schema applied. It is
// closed when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()
	return openTest(t, ":memory:")
}

// NewTestFile is like NewTestDB but backed by a file in a temporary
// directory, for tests that reopen the database through its path.
func NewTestFile(t testing.TB) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alergo.db")
	return openTest(t, path), path
}

func openTest(t testing.TB, path string) *sql.DB {
	t.Helper()
	database, err := Open(path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return database
}
