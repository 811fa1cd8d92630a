package booking_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/testfixtures"
)

// staticVerifier sidesteps argon2 so auth tests stay fast.
func staticVerifier(hashedPassword, password string) error {
	if hashedPassword == "hash:"+password {
		return nil
	}
	return booking.ErrInvalidCredentials
}

type authHarness struct {
	clock    *testfixtures.Clock
	users    *testfixtures.MemoryUserStore
	sessions *testfixtures.MemoryAuthSessionStore
	service  *booking.AuthService
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	users := testfixtures.NewMemoryUserStore()
	sessions := testfixtures.NewMemoryAuthSessionStore()

	tokenCounter := 0
	tokens := func() string {
		tokenCounter++
		return fmt.Sprintf("token-%d", tokenCounter)
	}

	service := booking.NewAuthService(users, sessions, authz.NewGuard(), staticVerifier, tokens, clock.NowFunc(), time.Hour, nil)
	return &authHarness{clock: clock, users: users, sessions: sessions, service: service}
}

func (h *authHarness) addUser(id, email, password string, opts ...testfixtures.UserOption) {
	user := booking.User{ID: id, Email: email, Role: authz.RoleMember}
	for _, opt := range opts {
		opt(&user)
	}
	h.users.Add(user, "hash:"+password)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret")

	user, session, err := h.service.Authenticate(context.Background(), "  Alex@Example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != "member-1" || session.UserID != "member-1" || session.Token == "" {
		t.Fatalf("unexpected session: %#v", session)
	}
	if !session.ExpiresAt.Equal(testfixtures.ReferenceTime().Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %s", session.ExpiresAt)
	}

	if _, _, err := h.service.Authenticate(context.Background(), "alex@example.com", "wrong"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("wrong password must fail closed, got %v", err)
	}
	// Unknown accounts get the same answer as bad passwords.
	if _, _, err := h.service.Authenticate(context.Background(), "ghost@example.com", "s3cret"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("unknown account must fail closed, got %v", err)
	}
	if _, _, err := h.service.Authenticate(context.Background(), "", ""); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("blank credentials must fail closed, got %v", err)
	}
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret", testfixtures.WithDisabled())

	if _, _, err := h.service.Authenticate(context.Background(), "alex@example.com", "s3cret"); !errors.Is(err, booking.ErrAccountDisabled) {
		t.Fatalf("disabled account must be rejected, got %v", err)
	}
}

func TestAuthenticateUnrecognisedRole(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret", testfixtures.WithRole(authz.Role("superuser")))

	_, _, err := h.service.Authenticate(context.Background(), "alex@example.com", "s3cret")
	if err == nil || errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("bad role is a configuration error, not a credentials one: %v", err)
	}
}

func TestValidateSession(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret")
	_, session, err := h.service.Authenticate(context.Background(), "alex@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	principal, err := h.service.ValidateSession(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if principal.SubjectID != "member-1" || principal.Role != authz.RoleMember {
		t.Fatalf("unexpected principal: %#v", principal)
	}

	if _, err := h.service.ValidateSession(context.Background(), "no-such-token"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("unknown token must fail closed, got %v", err)
	}
	if _, err := h.service.ValidateSession(context.Background(), "  "); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("blank token must fail closed, got %v", err)
	}

	h.clock.Advance(2 * time.Hour)
	if _, err := h.service.ValidateSession(context.Background(), session.Token); !errors.Is(err, booking.ErrSessionExpired) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestValidateSessionRevoked(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret")
	_, session, err := h.service.Authenticate(context.Background(), "alex@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := h.service.RevokeSession(context.Background(), session.Token); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := h.service.ValidateSession(context.Background(), session.Token); !errors.Is(err, booking.ErrSessionRevoked) {
		t.Fatalf("revoked token must be rejected, got %v", err)
	}
	// Revoking twice fails closed.
	if err := h.service.RevokeSession(context.Background(), session.Token); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("second revoke must fail closed, got %v", err)
	}
}

func TestValidateSessionDisabledAfterIssue(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t)
	h.addUser("member-1", "alex@example.com", "s3cret")
	_, session, err := h.service.Authenticate(context.Background(), "alex@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// Disabling the account invalidates already-issued tokens.
	h.users.Add(booking.User{ID: "member-1", Email: "alex@example.com", Role: authz.RoleMember, Disabled: true}, "hash:s3cret")
	if _, err := h.service.ValidateSession(context.Background(), session.Token); !errors.Is(err, booking.ErrAccountDisabled) {
		t.Fatalf("disabled account must invalidate tokens, got %v", err)
	}
}
