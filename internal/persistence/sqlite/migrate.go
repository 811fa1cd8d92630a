package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order exactly once; applied ids are recorded in
// schema_migrations.
var migrations = []struct {
	id         string
	statements []string
}{
	{
		id: "0001_create_users",
		statements: []string{
			`CREATE TABLE users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				display_name  TEXT NOT NULL,
				role          TEXT NOT NULL CHECK (role IN ('admin', 'trainer', 'member')),
				password_hash TEXT NOT NULL,
				disabled      INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			)`,
		},
	},
	{
		id: "0002_create_sessions",
		statements: []string{
			`CREATE TABLE sessions (
				id                   TEXT PRIMARY KEY,
				trainer_id           TEXT NOT NULL REFERENCES users(id),
				start_time           TEXT NOT NULL,
				end_time             TEXT NOT NULL,
				location             TEXT NOT NULL CHECK (length(trim(location)) > 0),
				max_participants     INTEGER NOT NULL CHECK (max_participants > 0),
				current_participants INTEGER NOT NULL DEFAULT 0
					CHECK (current_participants >= 0 AND current_participants <= max_participants),
				notes                TEXT NOT NULL DEFAULT '',
				status               TEXT NOT NULL
					CHECK (status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
				created_at           TEXT NOT NULL,
				updated_at           TEXT NOT NULL,
				CHECK (end_time > start_time)
			)`,
			`CREATE INDEX idx_sessions_trainer_window ON sessions (trainer_id, start_time, end_time)`,
			`CREATE INDEX idx_sessions_status ON sessions (status)`,
		},
	},
	{
		id: "0003_create_bookings",
		statements: []string{
			`CREATE TABLE bookings (
				session_id TEXT NOT NULL REFERENCES sessions(id),
				member_id  TEXT NOT NULL REFERENCES users(id),
				status     TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (session_id, member_id)
			)`,
			`CREATE INDEX idx_bookings_member ON bookings (member_id, status)`,
		},
	},
	{
		id: "0004_create_auth_sessions",
		statements: []string{
			`CREATE TABLE auth_sessions (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id),
				token      TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
			`CREATE INDEX idx_auth_sessions_expiry ON auth_sessions (expires_at)`,
		},
	},
}

// Migrate brings the schema up to date. Each pending migration runs inside
// its own transaction together with the bookkeeping insert, so a failure
// leaves the database at the previous migration boundary.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", mapSQLiteError(err))
	}

	for _, migration := range migrations {
		applied, err := migrationApplied(ctx, pool, migration.id)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, statement := range migration.statements {
				if _, err := tx.Exec(statement); err != nil {
					return fmt.Errorf("apply migration %s: %w", migration.id, mapSQLiteError(err))
				}
			}
			if _, err := tx.Exec(
				"INSERT INTO schema_migrations (id, applied_at) VALUES (?, datetime('now'))",
				migration.id); err != nil {
				return fmt.Errorf("record migration %s: %w", migration.id, mapSQLiteError(err))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, pool *ConnectionPool, id string) (bool, error) {
	var count int
	err := pool.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", id, mapSQLiteError(err))
	}
	return count > 0, nil
}
