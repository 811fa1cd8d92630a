package main

import (
	"context"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/persistence"
)

// sessionStoreAdapter bridges the engine's SessionStore to the SQLite
// repository, converting between domain and persistence models.
type sessionStoreAdapter struct {
	repo persistence.SessionRepository
}

func newSessionStoreAdapter(repo persistence.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, session booking.Session, bookings []booking.Booking) (booking.Session, error) {
	models := make([]persistence.Booking, 0, len(bookings))
	for _, b := range bookings {
		models = append(models, toPersistenceBooking(b))
	}
	created, err := a.repo.CreateSession(ctx, toPersistenceSession(session), models)
	if err != nil {
		return booking.Session{}, err
	}
	return toBookingSession(created), nil
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, id string) (booking.Session, error) {
	model, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return booking.Session{}, err
	}
	return toBookingSession(model), nil
}

func (a *sessionStoreAdapter) UpdateSession(ctx context.Context, session booking.Session) (booking.Session, error) {
	model, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return booking.Session{}, err
	}
	return toBookingSession(model), nil
}

func (a *sessionStoreAdapter) ListSessions(ctx context.Context, filter booking.SessionFilter) ([]booking.Session, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		TrainerID:    filter.TrainerID,
		Statuses:     statuses,
		EndsAfter:    filter.EndsAfter,
		StartsBefore: filter.StartsBefore,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]booking.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toBookingSession(model))
	}
	return sessions, nil
}

func (a *sessionStoreAdapter) ListBookings(ctx context.Context, sessionID string) ([]booking.Booking, error) {
	models, err := a.repo.ListBookings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	bookings := make([]booking.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toBookingBooking(model))
	}
	return bookings, nil
}

func (a *sessionStoreAdapter) AddBooking(ctx context.Context, sessionID, memberID string) (booking.Session, error) {
	model, err := a.repo.AddBooking(ctx, sessionID, memberID)
	if err != nil {
		return booking.Session{}, err
	}
	return toBookingSession(model), nil
}

func (a *sessionStoreAdapter) RemoveBooking(ctx context.Context, sessionID, memberID string) (booking.Session, error) {
	model, err := a.repo.RemoveBooking(ctx, sessionID, memberID)
	if err != nil {
		return booking.Session{}, err
	}
	return toBookingSession(model), nil
}

// analyticsStoreAdapter narrows the session store to the aggregator's
// read-only view.
type analyticsStoreAdapter struct {
	store *sessionStoreAdapter
}

func newAnalyticsStoreAdapter(store *sessionStoreAdapter) *analyticsStoreAdapter {
	return &analyticsStoreAdapter{store: store}
}

func (a *analyticsStoreAdapter) ListSessions(ctx context.Context, filter booking.SessionFilter) ([]booking.Session, error) {
	return a.store.ListSessions(ctx, filter)
}

// directoryAdapter exposes the user repository as the validator's directory.
type directoryAdapter struct {
	repo persistence.UserRepository
}

func newDirectoryAdapter(repo persistence.UserRepository) *directoryAdapter {
	return &directoryAdapter{repo: repo}
}

func (a *directoryAdapter) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	return a.repo.MissingUserIDs(ctx, ids)
}

// credentialStoreAdapter exposes the user repository to the auth service.
type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetCredentialsByEmail(ctx context.Context, email string) (booking.Credentials, error) {
	model, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return booking.Credentials{}, err
	}
	return booking.Credentials{
		User:         toBookingUser(model),
		PasswordHash: model.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (booking.User, error) {
	model, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return booking.User{}, err
	}
	return toBookingUser(model), nil
}

// authSessionStoreAdapter bridges issued tokens to the SQLite repository.
type authSessionStoreAdapter struct {
	repo persistence.AuthSessionRepository
}

func newAuthSessionStoreAdapter(repo persistence.AuthSessionRepository) *authSessionStoreAdapter {
	return &authSessionStoreAdapter{repo: repo}
}

func (a *authSessionStoreAdapter) CreateAuthSession(ctx context.Context, session booking.AuthSession) (booking.AuthSession, error) {
	model, err := a.repo.CreateAuthSession(ctx, persistence.AuthSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	})
	if err != nil {
		return booking.AuthSession{}, err
	}
	return toBookingAuthSession(model), nil
}

func (a *authSessionStoreAdapter) GetAuthSession(ctx context.Context, token string) (booking.AuthSession, error) {
	model, err := a.repo.GetAuthSession(ctx, token)
	if err != nil {
		return booking.AuthSession{}, err
	}
	return toBookingAuthSession(model), nil
}

func (a *authSessionStoreAdapter) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (booking.AuthSession, error) {
	model, err := a.repo.RevokeAuthSession(ctx, token, revokedAt)
	if err != nil {
		return booking.AuthSession{}, err
	}
	return toBookingAuthSession(model), nil
}

func (a *authSessionStoreAdapter) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredAuthSessions(ctx, reference)
}

func toBookingSession(model persistence.Session) booking.Session {
	return booking.Session{
		ID:                  model.ID,
		TrainerID:           model.TrainerID,
		Start:               model.Start,
		End:                 model.End,
		Location:            model.Location,
		MaxParticipants:     model.MaxParticipants,
		CurrentParticipants: model.CurrentParticipants,
		Notes:               model.Notes,
		Status:              booking.SessionStatus(model.Status),
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

func toPersistenceSession(session booking.Session) persistence.Session {
	return persistence.Session{
		ID:                  session.ID,
		TrainerID:           session.TrainerID,
		Start:               session.Start,
		End:                 session.End,
		Location:            session.Location,
		MaxParticipants:     session.MaxParticipants,
		CurrentParticipants: session.CurrentParticipants,
		Notes:               session.Notes,
		Status:              string(session.Status),
		CreatedAt:           session.CreatedAt,
		UpdatedAt:           session.UpdatedAt,
	}
}

func toBookingBooking(model persistence.Booking) booking.Booking {
	return booking.Booking{
		SessionID: model.SessionID,
		MemberID:  model.MemberID,
		Status:    booking.BookingStatus(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceBooking(b booking.Booking) persistence.Booking {
	return persistence.Booking{
		SessionID: b.SessionID,
		MemberID:  b.MemberID,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toBookingUser(model persistence.User) booking.User {
	return booking.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        authz.Role(model.Role),
		Disabled:    model.Disabled,
	}
}

func toBookingAuthSession(model persistence.AuthSession) booking.AuthSession {
	return booking.AuthSession{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
