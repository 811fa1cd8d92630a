package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
// Every mutation runs inside one transaction, and every mutation that touches
// the roster recomputes current_participants from confirmed bookings and
// asserts the stored counter matches before committing.
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession inserts the session row and its bookings atomically.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session, bookings []persistence.Booking) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	var out persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, trainer_id, start_time, end_time, location, max_participants, current_participants, notes, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID,
			session.TrainerID,
			formatTime(session.Start),
			formatTime(session.End),
			session.Location,
			session.MaxParticipants,
			session.CurrentParticipants,
			session.Notes,
			session.Status,
			formatTime(session.CreatedAt),
			formatTime(session.UpdatedAt),
		)
		if err != nil {
			return mapSQLiteError(err)
		}

		for _, booking := range bookings {
			if _, err := tx.Exec(`
				INSERT INTO bookings (session_id, member_id, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				session.ID, booking.MemberID, booking.Status,
				formatTime(booking.CreatedAt), formatTime(booking.UpdatedAt),
			); err != nil {
				return mapSQLiteError(err)
			}
		}

		if err := assertParticipantCount(tx, session.ID); err != nil {
			return err
		}

		out, err = getSessionTx(tx, session.ID)
		return err
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return out, nil
}

// GetSession retrieves a session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, sessionSelect+" WHERE id = ?", id)
	return scanSession(row)
}

// UpdateSession rewrites the mutable session columns. The stored participant
// counter is re-asserted against confirmed bookings before commit.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var out persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE sessions
			SET start_time = ?, end_time = ?, location = ?, max_participants = ?, notes = ?, status = ?, updated_at = ?
			WHERE id = ?`,
			formatTime(session.Start),
			formatTime(session.End),
			session.Location,
			session.MaxParticipants,
			session.Notes,
			session.Status,
			formatTime(session.UpdatedAt),
			session.ID,
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

		if err := syncParticipantCount(tx, session.ID); err != nil {
			return err
		}
		if err := assertParticipantCount(tx, session.ID); err != nil {
			return err
		}

		out, err = getSessionTx(tx, session.ID)
		return err
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return out, nil
}

// ListSessions lists sessions matching the filter ordered by start time.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	query, args := buildSessionListQuery(filter)

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return sessions, nil
}

// ListBookings returns all booking rows of a session ordered by member id.
func (r *SessionRepository) ListBookings(ctx context.Context, sessionID string) ([]persistence.Booking, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT session_id, member_id, status, created_at, updated_at
		FROM bookings
		WHERE session_id = ?
		ORDER BY member_id ASC`, sessionID)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		var booking persistence.Booking
		var createdAt, updatedAt string
		if err := rows.Scan(&booking.SessionID, &booking.MemberID, &booking.Status, &createdAt, &updatedAt); err != nil {
			return nil, mapSQLiteError(err)
		}
		if booking.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return bookings, nil
}

// AddBooking confirms a seat for the member, reviving a previously cancelled
// booking row when one exists, and updates the participant counter.
func (r *SessionRepository) AddBooking(ctx context.Context, sessionID, memberID string) (persistence.Session, error) {
	var out persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow(
			"SELECT status FROM bookings WHERE session_id = ? AND member_id = ?",
			sessionID, memberID).Scan(&status)
		switch {
		case err == sql.ErrNoRows:
			now := formatTime(time.Now().UTC())
			if _, err := tx.Exec(`
				INSERT INTO bookings (session_id, member_id, status, created_at, updated_at)
				VALUES (?, ?, 'confirmed', ?, ?)`,
				sessionID, memberID, now, now); err != nil {
				return mapSQLiteError(err)
			}
		case err != nil:
			return mapSQLiteError(err)
		case status == "confirmed":
			return persistence.ErrDuplicate
		default:
			if _, err := tx.Exec(`
				UPDATE bookings SET status = 'confirmed', updated_at = ?
				WHERE session_id = ? AND member_id = ?`,
				formatTime(time.Now().UTC()), sessionID, memberID); err != nil {
				return mapSQLiteError(err)
			}
		}

		if err := syncParticipantCount(tx, sessionID); err != nil {
			return err
		}
		if err := assertParticipantCount(tx, sessionID); err != nil {
			return err
		}

		out, err = getSessionTx(tx, sessionID)
		return err
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return out, nil
}

// RemoveBooking cancels the member's booking, keeping the row for audit, and
// updates the participant counter.
func (r *SessionRepository) RemoveBooking(ctx context.Context, sessionID, memberID string) (persistence.Session, error) {
	var out persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE bookings SET status = 'cancelled', updated_at = ?
			WHERE session_id = ? AND member_id = ? AND status = 'confirmed'`,
			formatTime(time.Now().UTC()), sessionID, memberID)
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

		if err := syncParticipantCount(tx, sessionID); err != nil {
			return err
		}
		if err := assertParticipantCount(tx, sessionID); err != nil {
			return err
		}

		out, err = getSessionTx(tx, sessionID)
		return err
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return out, nil
}

const sessionSelect = `
	SELECT id, trainer_id, start_time, end_time, location, max_participants, current_participants, notes, status, created_at, updated_at
	FROM sessions`

func buildSessionListQuery(filter persistence.SessionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.TrainerID != "" {
		conditions = append(conditions, "trainer_id = ?")
		args = append(args, filter.TrainerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}

	query := sessionSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var start, end, createdAt, updatedAt string

	err := row.Scan(
		&session.ID,
		&session.TrainerID,
		&start,
		&end,
		&session.Location,
		&session.MaxParticipants,
		&session.CurrentParticipants,
		&session.Notes,
		&session.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, mapSQLiteError(err)
	}

	if session.Start, err = parseTime(start); err != nil {
		return persistence.Session{}, err
	}
	if session.End, err = parseTime(end); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

func scanSessionRows(rows *sql.Rows) (persistence.Session, error) {
	return scanSession(rows)
}

func getSessionTx(tx *sql.Tx, id string) (persistence.Session, error) {
	return scanSession(tx.QueryRow(sessionSelect+" WHERE id = ?", id))
}

// syncParticipantCount rewrites the counter from the confirmed booking count.
func syncParticipantCount(tx *sql.Tx, sessionID string) error {
	_, err := tx.Exec(`
		UPDATE sessions
		SET current_participants = (
			SELECT COUNT(*) FROM bookings
			WHERE session_id = sessions.id AND status = 'confirmed'
		)
		WHERE id = ?`, sessionID)
	if err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

// assertParticipantCount verifies the commit-time invariant
// current_participants == count(confirmed bookings) and that the counter is
// within capacity. A mismatch aborts the enclosing transaction.
func assertParticipantCount(tx *sql.Tx, sessionID string) error {
	var stored, confirmed, max int
	err := tx.QueryRow(`
		SELECT s.current_participants, s.max_participants,
			(SELECT COUNT(*) FROM bookings b WHERE b.session_id = s.id AND b.status = 'confirmed')
		FROM sessions s WHERE s.id = ?`, sessionID).Scan(&stored, &max, &confirmed)
	if err != nil {
		return mapSQLiteError(err)
	}

	if stored != confirmed {
		return fmt.Errorf("%w: session %s counter %d != %d confirmed bookings",
			persistence.ErrInvariantViolation, sessionID, stored, confirmed)
	}
	if stored > max {
		return fmt.Errorf("%w: session %s counter %d exceeds capacity %d",
			persistence.ErrInvariantViolation, sessionID, stored, max)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
