package storage

import "testing"

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DefaultSQLiteConfig(":memory:"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
