package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/persistence"
	"github.com/example/gym-scheduler/internal/testfixtures"
)

func seedUser(t *testing.T, repo persistence.UserRepository, id, role string) {
	t.Helper()

	now := time.Now().UTC()
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  id,
		Role:         role,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestSessionStoreAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	store := newSessionStoreAdapter(harness.Sessions)

	seedUser(t, harness.Users, "trainer-1", "trainer")
	seedUser(t, harness.Users, "member-1", "member")

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	session := booking.Session{
		ID:                  "session-1",
		TrainerID:           "trainer-1",
		Start:               start,
		End:                 start.Add(time.Hour),
		Location:            "Studio A",
		MaxParticipants:     10,
		CurrentParticipants: 1,
		Status:              booking.StatusScheduled,
		CreatedAt:           start,
		UpdatedAt:           start,
	}
	bookings := []booking.Booking{{
		SessionID: "session-1",
		MemberID:  "member-1",
		Status:    booking.BookingConfirmed,
		CreatedAt: start,
		UpdatedAt: start,
	}}

	created, err := store.CreateSession(ctx, session, bookings)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Status != booking.StatusScheduled || created.CurrentParticipants != 1 {
		t.Fatalf("unexpected created session: %#v", created)
	}

	fetched, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !fetched.Start.Equal(start) || fetched.Status != booking.StatusScheduled {
		t.Fatalf("round trip lost data: %#v", fetched)
	}

	listed, err := store.ListSessions(ctx, booking.SessionFilter{
		TrainerID: "trainer-1",
		Statuses:  []booking.SessionStatus{booking.StatusScheduled},
	})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "session-1" {
		t.Fatalf("unexpected listing: %#v", listed)
	}

	rows, err := store.ListBookings(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != booking.BookingConfirmed {
		t.Fatalf("unexpected bookings: %#v", rows)
	}
}

func TestCredentialStoreAdapter(t *testing.T) {
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	credentials := newCredentialStoreAdapter(harness.Users)

	seedUser(t, harness.Users, "trainer-1", "trainer")

	creds, err := credentials.GetCredentialsByEmail(ctx, "trainer-1@example.com")
	if err != nil {
		t.Fatalf("GetCredentialsByEmail failed: %v", err)
	}
	if creds.User.Role != authz.RoleTrainer || creds.PasswordHash != "hash" {
		t.Fatalf("unexpected credentials: %#v", creds)
	}

	user, err := credentials.GetUser(ctx, "trainer-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.ID != "trainer-1" || user.Disabled {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestAuthServiceOverSQLiteAdapters(t *testing.T) {
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	seedUser(t, harness.Users, "trainer-1", "trainer")

	verify := func(hashedPassword, password string) error {
		if hashedPassword == "hash" && password == "pw" {
			return nil
		}
		return booking.ErrInvalidCredentials
	}
	tokenCounter := 0
	tokens := func() string {
		tokenCounter++
		return fmt.Sprintf("token-%d", tokenCounter)
	}

	service := booking.NewAuthService(
		newCredentialStoreAdapter(harness.Users),
		newAuthSessionStoreAdapter(harness.AuthSessions),
		authz.NewGuard(), verify, tokens, nil, time.Hour, nil,
	)

	user, session, err := service.Authenticate(ctx, "trainer-1@example.com", "pw")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != "trainer-1" || session.Token == "" {
		t.Fatalf("unexpected login result: %#v / %#v", user, session)
	}

	principal, err := service.ValidateSession(ctx, session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if principal.SubjectID != "trainer-1" || principal.Role != authz.RoleTrainer {
		t.Fatalf("unexpected principal: %#v", principal)
	}

	// An unknown email reads exactly like a wrong password, and an unknown
	// token fails closed; neither may surface the repository's own sentinel.
	if _, _, err := service.Authenticate(ctx, "ghost@example.com", "pw"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("unknown email must read as bad credentials, got %v", err)
	}
	if _, err := service.ValidateSession(ctx, "no-such-token"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("unknown token must read as bad credentials, got %v", err)
	}
	if err := service.RevokeSession(ctx, "no-such-token"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("revoking an unknown token must read as bad credentials, got %v", err)
	}
}

func TestDirectoryAdapter(t *testing.T) {
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	directory := newDirectoryAdapter(harness.Users)

	seedUser(t, harness.Users, "member-1", "member")

	missing, err := directory.MissingUserIDs(ctx, []string{"member-1", "ghost"})
	if err != nil {
		t.Fatalf("MissingUserIDs failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Fatalf("expected [ghost], got %v", missing)
	}
}
