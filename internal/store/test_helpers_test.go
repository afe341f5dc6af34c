package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedReferences loads the reference rows registrations need.
func seedReferences(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.SeedDevices(ctx, "ios", "android"); err != nil {
		t.Fatalf("SeedDevices() failed: %v", err)
	}
	for code, tz := range map[string]string{"US": "America/New_York", "FR": "Europe/Paris"} {
		if _, err := s.InsertCountry(ctx, code, tz); err != nil {
			t.Fatalf("InsertCountry() failed: %v", err)
		}
	}
}

// inTx runs fn in a transaction and commits it.
func inTx(t *testing.T, s *Store, fn func(tx *Tx)) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

// mustEvent inserts an event and fails the test if it was not new.
func mustEvent(t *testing.T, tx *Tx, id string, ts int64, kind string) {
	t.Helper()
	ok, err := tx.InsertEvent(context.Background(), id, time.Unix(ts, 0), kind)
	if err != nil {
		t.Fatalf("InsertEvent(%s) failed: %v", id, err)
	}
	if !ok {
		t.Fatalf("InsertEvent(%s) was not inserted", id)
	}
}

// mustUser inserts a user and returns its id.
func mustUser(t *testing.T, tx *Tx, name string) int64 {
	t.Helper()
	id, ok, err := tx.InsertUser(context.Background(), name)
	if err != nil {
		t.Fatalf("InsertUser(%s) failed: %v", name, err)
	}
	if !ok {
		t.Fatalf("InsertUser(%s) was not inserted", name)
	}
	return id
}
