package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
)

var (
	userCounter    uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// Fixture sessions are scheduled relative to it, in the future of any clock
// started at it.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user fixture.
type UserOption func(*booking.User)

// WithRole overrides the fixture role.
func WithRole(role authz.Role) UserOption {
	return func(u *booking.User) { u.Role = role }
}

// WithDisabled marks the fixture account disabled.
func WithDisabled() UserOption {
	return func(u *booking.User) { u.Disabled = true }
}

// NewUserFixture returns a deterministic member-account fixture with optional
// overrides.
func NewUserFixture(opts ...UserOption) booking.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	user := booking.User{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        authz.RoleMember,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// --------------------------- Session fixtures ----------------------------

// SessionOption configures a generated session fixture.
type SessionOption func(*booking.Session)

// WithTrainer overrides the fixture trainer.
func WithTrainer(trainerID string) SessionOption {
	return func(s *booking.Session) { s.TrainerID = trainerID }
}

// WithWindow places the session at the given interval.
func WithWindow(start, end time.Time) SessionOption {
	return func(s *booking.Session) {
		s.Start = start
		s.End = end
	}
}

// WithStatus overrides the fixture status.
func WithStatus(status booking.SessionStatus) SessionOption {
	return func(s *booking.Session) { s.Status = status }
}

// WithCapacity overrides the fixture capacity.
func WithCapacity(max int) SessionOption {
	return func(s *booking.Session) { s.MaxParticipants = max }
}

// NewSessionFixture returns a deterministic scheduled session one day after
// the reference time, shifted by an hour per fixture so consecutive fixtures
// never overlap.
func NewSessionFixture(opts ...SessionOption) booking.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	start := referenceTime.Add(24*time.Hour + time.Duration(idx)*time.Hour)
	session := booking.Session{
		ID:              fmt.Sprintf("session-%03d", idx),
		TrainerID:       "trainer-001",
		Start:           start,
		End:             start.Add(time.Hour),
		Location:        "Studio A",
		MaxParticipants: 10,
		Status:          booking.StatusScheduled,
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// --------------------------- In-memory stores ----------------------------

// MemorySessionStore is a mutex-guarded booking.SessionStore. It mirrors the
// SQLite repository's contract: mutations are atomic and the participant
// counter is recomputed from confirmed bookings on every roster change, with
// drift reported as booking.ErrInvariantViolation.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]booking.Session
	bookings map[string][]booking.Booking

	// FailWith, when set, makes every call fail. Tests use it to simulate a
	// storage outage.
	FailWith error
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]booking.Session),
		bookings: make(map[string][]booking.Booking),
	}
}

func (m *MemorySessionStore) CreateSession(_ context.Context, session booking.Session, bookings []booking.Booking) (booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return booking.Session{}, m.FailWith
	}
	if _, exists := m.sessions[session.ID]; exists {
		return booking.Session{}, fmt.Errorf("session %s already exists", session.ID)
	}

	confirmed := 0
	for _, b := range bookings {
		if b.Status == booking.BookingConfirmed {
			confirmed++
		}
	}
	if session.CurrentParticipants != confirmed {
		return booking.Session{}, fmt.Errorf("%w: counter %d != %d confirmed bookings",
			booking.ErrInvariantViolation, session.CurrentParticipants, confirmed)
	}

	m.sessions[session.ID] = session
	m.bookings[session.ID] = append([]booking.Booking(nil), bookings...)
	return session, nil
}

func (m *MemorySessionStore) GetSession(_ context.Context, id string) (booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return booking.Session{}, m.FailWith
	}
	session, ok := m.sessions[id]
	if !ok {
		return booking.Session{}, booking.ErrNotFound
	}
	return session, nil
}

func (m *MemorySessionStore) UpdateSession(_ context.Context, session booking.Session) (booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return booking.Session{}, m.FailWith
	}
	if _, ok := m.sessions[session.ID]; !ok {
		return booking.Session{}, booking.ErrNotFound
	}

	session.CurrentParticipants = m.confirmedCountLocked(session.ID)
	m.sessions[session.ID] = session
	return session, nil
}

func (m *MemorySessionStore) ListSessions(_ context.Context, filter booking.SessionFilter) ([]booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var out []booking.Session
	for _, session := range m.sessions {
		if filter.TrainerID != "" && session.TrainerID != filter.TrainerID {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if session.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if filter.EndsAfter != nil && !session.End.After(*filter.EndsAfter) {
			continue
		}
		if filter.StartsBefore != nil && !session.Start.Before(*filter.StartsBefore) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *MemorySessionStore) ListBookings(_ context.Context, sessionID string) ([]booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return append([]booking.Booking(nil), m.bookings[sessionID]...), nil
}

func (m *MemorySessionStore) AddBooking(_ context.Context, sessionID, memberID string) (booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return booking.Session{}, m.FailWith
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return booking.Session{}, booking.ErrNotFound
	}

	rows := m.bookings[sessionID]
	revived := false
	for i, b := range rows {
		if b.MemberID != memberID {
			continue
		}
		if b.Status == booking.BookingConfirmed {
			return booking.Session{}, fmt.Errorf("member %s already booked", memberID)
		}
		rows[i].Status = booking.BookingConfirmed
		revived = true
		break
	}
	if !revived {
		rows = append(rows, booking.Booking{
			SessionID: sessionID,
			MemberID:  memberID,
			Status:    booking.BookingConfirmed,
		})
	}
	m.bookings[sessionID] = rows

	session.CurrentParticipants = m.confirmedCountLocked(sessionID)
	m.sessions[sessionID] = session
	return session, nil
}

func (m *MemorySessionStore) RemoveBooking(_ context.Context, sessionID, memberID string) (booking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return booking.Session{}, m.FailWith
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return booking.Session{}, booking.ErrNotFound
	}

	rows := m.bookings[sessionID]
	removed := false
	for i, b := range rows {
		if b.MemberID == memberID && b.Status == booking.BookingConfirmed {
			rows[i].Status = booking.BookingCancelled
			removed = true
			break
		}
	}
	if !removed {
		return booking.Session{}, booking.ErrNotFound
	}
	m.bookings[sessionID] = rows

	session.CurrentParticipants = m.confirmedCountLocked(sessionID)
	m.sessions[sessionID] = session
	return session, nil
}

func (m *MemorySessionStore) confirmedCountLocked(sessionID string) int {
	count := 0
	for _, b := range m.bookings[sessionID] {
		if b.Status == booking.BookingConfirmed {
			count++
		}
	}
	return count
}

// MemoryUserStore backs both the validator's directory lookups and the auth
// service's credential lookups.
type MemoryUserStore struct {
	mu        sync.Mutex
	users     map[string]booking.User
	passwords map[string]string
}

// NewMemoryUserStore returns an empty directory.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:     make(map[string]booking.User),
		passwords: make(map[string]string),
	}
}

// Add registers a user with an optional stored password hash.
func (m *MemoryUserStore) Add(user booking.User, passwordHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	if passwordHash != "" {
		m.passwords[user.ID] = passwordHash
	}
}

// MissingUserIDs implements booking.Directory.
func (m *MemoryUserStore) MissingUserIDs(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := m.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// GetCredentialsByEmail implements booking.CredentialStore.
func (m *MemoryUserStore) GetCredentialsByEmail(_ context.Context, email string) (booking.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return booking.Credentials{User: user, PasswordHash: m.passwords[user.ID]}, nil
		}
	}
	return booking.Credentials{}, booking.ErrNotFound
}

// GetUser implements booking.CredentialStore.
func (m *MemoryUserStore) GetUser(_ context.Context, id string) (booking.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return booking.User{}, booking.ErrNotFound
	}
	return user, nil
}

// MemoryAuthSessionStore is a mutex-guarded booking.AuthSessionStore.
type MemoryAuthSessionStore struct {
	mu       sync.Mutex
	sessions map[string]booking.AuthSession
}

// NewMemoryAuthSessionStore returns an empty token store.
func NewMemoryAuthSessionStore() *MemoryAuthSessionStore {
	return &MemoryAuthSessionStore{sessions: make(map[string]booking.AuthSession)}
}

func (m *MemoryAuthSessionStore) CreateAuthSession(_ context.Context, session booking.AuthSession) (booking.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.Token]; exists {
		return booking.AuthSession{}, fmt.Errorf("token %s already issued", session.Token)
	}
	m.sessions[session.Token] = session
	return session, nil
}

func (m *MemoryAuthSessionStore) GetAuthSession(_ context.Context, token string) (booking.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return booking.AuthSession{}, booking.ErrNotFound
	}
	return session, nil
}

func (m *MemoryAuthSessionStore) RevokeAuthSession(_ context.Context, token string, revokedAt time.Time) (booking.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok || session.RevokedAt != nil {
		return booking.AuthSession{}, booking.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	m.sessions[token] = session
	return session, nil
}

func (m *MemoryAuthSessionStore) DeleteExpiredAuthSessions(_ context.Context, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, session := range m.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(m.sessions, token)
		}
	}
	return nil
}
