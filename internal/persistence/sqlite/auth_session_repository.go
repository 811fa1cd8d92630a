package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/gym-scheduler/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository using SQLite.
type AuthSessionRepository struct {
	pool *ConnectionPool
}

// NewAuthSessionRepository creates a SQLite auth session repository.
func NewAuthSessionRepository(pool *ConnectionPool) *AuthSessionRepository {
	return &AuthSessionRepository{pool: pool}
}

// CreateAuthSession inserts a newly issued authentication session.
func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token, expires_at, created_at, updated_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		formatOptionalTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.AuthSession{}, mapSQLiteError(err)
	}
	return r.GetAuthSession(ctx, session.Token)
}

// GetAuthSession retrieves an authentication session by its token.
func (r *AuthSessionRepository) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	row := r.pool.DB().QueryRowContext(ctx, authSessionSelect+" WHERE token = ?", token)
	return scanAuthSession(row)
}

// RevokeAuthSession stamps the revocation time on the session.
func (r *AuthSessionRepository) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE auth_sessions SET revoked_at = ?, updated_at = ?
		WHERE token = ? AND revoked_at IS NULL`,
		formatTime(revokedAt), formatTime(revokedAt), token)
	if err != nil {
		return persistence.AuthSession{}, mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AuthSession{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return r.GetAuthSession(ctx, token)
}

// DeleteExpiredAuthSessions removes sessions that expired before the reference time.
func (r *AuthSessionRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.DB().ExecContext(ctx,
		"DELETE FROM auth_sessions WHERE expires_at < ?", formatTime(reference))
	if err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

const authSessionSelect = `
	SELECT id, user_id, token, expires_at, created_at, updated_at, revoked_at
	FROM auth_sessions`

func scanAuthSession(row rowScanner) (persistence.AuthSession, error) {
	var session persistence.AuthSession
	var expiresAt, createdAt, updatedAt string
	var revokedAt sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
		&updatedAt,
		&revokedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.AuthSession{}, persistence.ErrNotFound
		}
		return persistence.AuthSession{}, mapSQLiteError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if revokedAt.Valid {
		ts, err := parseTime(revokedAt.String)
		if err != nil {
			return persistence.AuthSession{}, err
		}
		session.RevokedAt = &ts
	}
	return session, nil
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
