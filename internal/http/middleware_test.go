package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
)

type stubSessionValidator struct {
	principal booking.Principal
	err       error
	token     string
}

func (s *stubSessionValidator) ValidateSession(_ context.Context, token string) (booking.Principal, error) {
	s.token = token
	if s.err != nil {
		return booking.Principal{}, s.err
	}
	return s.principal, nil
}

func TestRequireSession_MissingToken(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{}
	handler := RequireSession(validator, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireSession_AttachesPrincipal(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{
		principal: booking.Principal{SubjectID: "user-1", Role: authz.RoleTrainer},
	}

	var got booking.Principal
	handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("expected principal in context")
		}
		got = principal
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if validator.token != "token-1" {
		t.Fatalf("expected bearer token forwarded, got %q", validator.token)
	}
	if got.SubjectID != "user-1" || got.Role != authz.RoleTrainer {
		t.Fatalf("unexpected principal: %#v", got)
	}
}

func TestRequireSession_CookieFallback(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{principal: booking.Principal{SubjectID: "user-1", Role: authz.RoleMember}}
	handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if validator.token != "cookie-token" {
		t.Fatalf("expected cookie token forwarded, got %q", validator.token)
	}
}

func TestRequireSession_ExpiredSession(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{err: booking.ErrSessionExpired}
	handler := RequireSession(validator, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an expired session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireSession_TransientFailure(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{err: booking.ErrUnavailable}
	handler := RequireSession(validator, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run when validation is unavailable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for transient failure, got %d", rec.Code)
	}
}

func TestRouter_AuthenticatedWrapsProtectedRoutes(t *testing.T) {
	t.Parallel()

	validator := &stubSessionValidator{principal: booking.Principal{SubjectID: "user-1", Role: authz.RoleAdmin}}
	service := &stubSessionService{
		getFn: func(ctx context.Context, principal booking.Principal, _ string) (booking.Session, []booking.Booking, error) {
			if principal.SubjectID != "user-1" {
				t.Fatalf("expected authenticated principal, got %#v", principal)
			}
			return sampleSession(), nil, nil
		},
	}

	router := NewRouter(RouterConfig{
		Sessions:      NewSessionHandler(service, nil),
		Authenticated: RequireSession(validator, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d (%s)", rec.Code, rec.Body.String())
	}
}
