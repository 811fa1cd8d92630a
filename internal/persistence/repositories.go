package persistence

import (
	"context"
	"time"
)

// SessionFilter narrows session queries.
type SessionFilter struct {
	TrainerID string
	Statuses  []string
	// EndsAfter and StartsBefore select sessions overlapping a window.
	EndsAfter    *time.Time
	StartsBefore *time.Time
}

// SessionRepository stores sessions and their bookings. Mutations are atomic:
// each call either commits all of its writes or none, and every mutation that
// touches the roster recomputes current_participants from confirmed bookings
// inside the same transaction, returning ErrInvariantViolation on drift.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session, bookings []Booking) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	ListBookings(ctx context.Context, sessionID string) ([]Booking, error)
	AddBooking(ctx context.Context, sessionID, memberID string) (Session, error)
	RemoveBooking(ctx context.Context, sessionID, memberID string) (Session, error)
}

// UserRepository exposes the member/trainer directory.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}

// AuthSessionRepository stores authentication session state.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}
