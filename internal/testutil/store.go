package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scoreline/internal/store"
)

// Devices seeded by OpenStore.
var Devices = []string{"ios", "android", "web"}

// Countries seeded by OpenStore, code to timezone.
var Countries = map[string]string{
	"US": "America/New_York",
	"FR": "Europe/Paris",
	"DE": "Europe/Berlin",
}

// OpenStore opens a fresh SQLite store under t.TempDir() with the reference
// rows registrations need. The store is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s := OpenEmptyStore(t)
	ctx := context.Background()

	_, err := s.SeedDevices(ctx, Devices...)
	require.NoError(t, err)
	for code, tz := range Countries {
		_, err := s.InsertCountry(ctx, code, tz)
		require.NoError(t, err)
	}
	return s
}

// OpenEmptyStore opens a fresh SQLite store without reference rows.
func OpenEmptyStore(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoreline.db")
	s, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
