package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
)

// User is a directory account as the engine's consumers see it.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        authz.Role
	Disabled    bool
}

// Credentials bundles a user with its stored password hash.
type Credentials struct {
	User         User
	PasswordHash string
}

// AuthSession is an opaque token issued after authentication.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// CredentialStore exposes the lookups the auth service needs.
type CredentialStore interface {
	GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// AuthSessionStore captures the persistence interactions for issued tokens.
type AuthSessionStore interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService authenticates users and resolves session tokens to principals.
type AuthService struct {
	credentials    CredentialStore
	sessions       AuthSessionStore
	guard          *authz.Guard
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions AuthSessionStore, guard *authz.Guard, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		guard:          guard,
		verifyPassword: verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new opaque session token.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (user User, session AuthSession, err error) {
	if s == nil || s.credentials == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email = strings.TrimSpace(strings.ToLower(email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "auth_session_id", session.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds Credentials
	creds, err = s.credentials.GetCredentialsByEmail(ctx, email)
	if err != nil {
		// The store may be a persistence-backed implementation; translate its
		// sentinels before deciding how the failure reads.
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if creds.User.Disabled {
		err = ErrAccountDisabled
		return
	}

	// An account carrying a role outside the capability table is a
	// configuration error, not a credentials problem.
	if gerr := s.guard.ValidateRoles(creds.User.Role); gerr != nil {
		err = gerr
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now().UTC()
	session = AuthSession{
		ID:        s.tokenGenerator(),
		UserID:    creds.User.ID,
		Token:     s.tokenGenerator(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if session.Token == "" {
		session.Token = session.ID
	}

	if s.sessions != nil {
		if err = s.sessions.DeleteExpiredAuthSessions(ctx, now); err != nil {
			err = mapRepoError(err)
			return
		}
		session, err = s.sessions.CreateAuthSession(ctx, session)
		if err != nil {
			err = mapRepoError(err)
			return
		}
	}

	user = creds.User
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil || s.sessions == nil {
		return fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession")
	if _, err := s.sessions.RevokeAuthSession(ctx, trimmed, s.now().UTC()); err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke auth session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "auth session revoked")
	return nil
}

// ValidateSession verifies the token and returns the acting principal. An
// unknown, expired or revoked token never yields a usable principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal authz.Principal, err error) {
	if s == nil || s.sessions == nil || s.credentials == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var session AuthSession
	session, err = s.sessions.GetAuthSession(ctx, trimmed)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	now := s.now().UTC()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if user.Disabled {
		err = ErrAccountDisabled
		return
	}

	principal = authz.Principal{SubjectID: user.ID, Role: user.Role}
	return
}
