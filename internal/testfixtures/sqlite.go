package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/gym-scheduler/internal/persistence"
	"github.com/example/gym-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary migrated
// SQLite database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool         *sqlite.ConnectionPool
	Users        persistence.UserRepository
	Sessions     persistence.SessionRepository
	AuthSessions persistence.AuthSessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a migrated harness on a temporary database
// file. A cleanup callback is registered with the provided testing.TB; Close
// may also be called directly.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	pool, err := sqlite.NewConnectionPool(path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Users:        sqlite.NewUserRepository(pool),
		Sessions:     sqlite.NewSessionRepository(pool),
		AuthSessions: sqlite.NewAuthSessionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
