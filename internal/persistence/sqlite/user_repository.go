package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/gym-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new user row.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, role, password_hash, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Role,
		user.PasswordHash,
		boolToInt(user.Disabled),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

// UpdateUser rewrites the mutable user columns.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, role = ?, password_hash = ?, disabled = ?, updated_at = ?
		WHERE id = ?`,
		user.Email,
		user.DisplayName,
		user.Role,
		user.PasswordHash,
		boolToInt(user.Disabled),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.pool.DB().QueryRowContext(ctx, userSelect+" WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := r.pool.DB().QueryRowContext(ctx, userSelect+" WHERE email = ?", email)
	return scanUser(row)
}

// ListUsers returns all users ordered by display name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.DB().QueryContext(ctx, userSelect+" ORDER BY display_name ASC, id ASC")
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return users, nil
}

// MissingUserIDs returns the subset of ids with no matching user row.
func (r *UserRepository) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := r.pool.DB().QueryContext(ctx,
		fmt.Sprintf("SELECT id FROM users WHERE id IN (%s)", strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLiteError(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

const userSelect = `
	SELECT id, email, display_name, role, password_hash, disabled, created_at, updated_at
	FROM users`

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var disabled int
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.PasswordHash,
		&disabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, mapSQLiteError(err)
	}

	user.Disabled = disabled != 0
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
