package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/gym-scheduler/internal/analytics"
	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/interval"
)

type stubSessionService struct {
	createFn       func(ctx context.Context, principal booking.Principal, req booking.SessionRequest) (booking.Session, error)
	updateFn       func(ctx context.Context, principal booking.Principal, sessionID string, patch booking.SessionPatch) (booking.Session, error)
	transitionFn   func(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error)
	rosterFn       func(ctx context.Context, principal booking.Principal, sessionID, memberID string) (booking.Session, error)
	availabilityFn func(ctx context.Context, trainerID string, span interval.Span, exclude string) (booking.Availability, error)
	getFn          func(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, []booking.Booking, error)
}

func (s *stubSessionService) ValidateAndCreate(ctx context.Context, principal booking.Principal, req booking.SessionRequest) (booking.Session, error) {
	return s.createFn(ctx, principal, req)
}

func (s *stubSessionService) ValidateAndUpdate(ctx context.Context, principal booking.Principal, sessionID string, patch booking.SessionPatch) (booking.Session, error) {
	return s.updateFn(ctx, principal, sessionID, patch)
}

func (s *stubSessionService) Cancel(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error) {
	return s.transitionFn(ctx, principal, sessionID)
}

func (s *stubSessionService) Start(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error) {
	return s.transitionFn(ctx, principal, sessionID)
}

func (s *stubSessionService) Complete(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error) {
	return s.transitionFn(ctx, principal, sessionID)
}

func (s *stubSessionService) AddMember(ctx context.Context, principal booking.Principal, sessionID, memberID string) (booking.Session, error) {
	return s.rosterFn(ctx, principal, sessionID, memberID)
}

func (s *stubSessionService) RemoveMember(ctx context.Context, principal booking.Principal, sessionID, memberID string) (booking.Session, error) {
	return s.rosterFn(ctx, principal, sessionID, memberID)
}

func (s *stubSessionService) CheckAvailability(ctx context.Context, trainerID string, span interval.Span, exclude string) (booking.Availability, error) {
	return s.availabilityFn(ctx, trainerID, span, exclude)
}

func (s *stubSessionService) GetSession(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, []booking.Booking, error) {
	return s.getFn(ctx, principal, sessionID)
}

func sampleSession() booking.Session {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return booking.Session{
		ID:                  "session-1",
		TrainerID:           "trainer-1",
		Start:               start,
		End:                 start.Add(time.Hour),
		Location:            "Studio A",
		MaxParticipants:     10,
		CurrentParticipants: 1,
		Status:              booking.StatusScheduled,
		CreatedAt:           start.Add(-24 * time.Hour),
		UpdatedAt:           start.Add(-24 * time.Hour),
	}
}

func newTestRouter(t *testing.T, service sessionService) http.Handler {
	t.Helper()
	return NewRouter(RouterConfig{
		Sessions: NewSessionHandler(service, nil),
	})
}

func TestSessionHandler_CreateSuccess(t *testing.T) {
	t.Parallel()

	var got booking.SessionRequest
	service := &stubSessionService{
		createFn: func(_ context.Context, _ booking.Principal, req booking.SessionRequest) (booking.Session, error) {
			got = req
			return sampleSession(), nil
		},
	}

	body := `{"trainer_id":"trainer-1","start":"2026-09-01T10:00:00Z","end":"2026-09-01T11:00:00Z","location":"Studio A","max_participants":10,"member_ids":["member-1"]}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	newTestRouter(t, service).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got.TrainerID != "trainer-1" || len(got.MemberIDs) != 1 {
		t.Fatalf("unexpected decoded request: %#v", got)
	}

	var resp struct {
		Session sessionDTO `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Session.ID != "session-1" || resp.Session.Status != "scheduled" {
		t.Fatalf("unexpected response payload: %#v", resp.Session)
	}
}

func TestSessionHandler_CreateRejectionCarriesReasonCode(t *testing.T) {
	t.Parallel()

	service := &stubSessionService{
		createFn: func(context.Context, booking.Principal, booking.SessionRequest) (booking.Session, error) {
			return booking.Session{}, &booking.Rejection{
				Code:             booking.ReasonTrainerConflict,
				Message:          "trainer already booked",
				TrainerConflicts: []string{"session-9"},
			}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newTestRouter(t, service).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for trainer conflict, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ReasonCode != "TRAINER_CONFLICT" || len(resp.TrainerConflicts) != 1 {
		t.Fatalf("unexpected rejection body: %#v", resp)
	}
}

func TestSessionHandler_RejectionStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code   booking.ReasonCode
		status int
	}{
		{booking.ReasonPastDate, http.StatusUnprocessableEntity},
		{booking.ReasonEndBeforeStart, http.StatusUnprocessableEntity},
		{booking.ReasonCapacityExceeded, http.StatusUnprocessableEntity},
		{booking.ReasonLocationRequired, http.StatusUnprocessableEntity},
		{booking.ReasonTrainerConflict, http.StatusConflict},
		{booking.ReasonMemberConflict, http.StatusConflict},
		{booking.ReasonInvalidStateTransition, http.StatusConflict},
		{booking.ReasonUnauthorized, http.StatusForbidden},
	}

	for _, tc := range cases {
		service := &stubSessionService{
			createFn: func(context.Context, booking.Principal, booking.SessionRequest) (booking.Session, error) {
				return booking.Session{}, &booking.Rejection{Code: tc.code}
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		newTestRouter(t, service).ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, rec.Code)
		}
	}
}

func TestSessionHandler_GetNotFound(t *testing.T) {
	t.Parallel()

	service := &stubSessionService{
		getFn: func(context.Context, booking.Principal, string) (booking.Session, []booking.Booking, error) {
			return booking.Session{}, nil, booking.ErrNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(t, service).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ReasonCode != "" {
		t.Fatalf("not-found body must not carry a reason code: %#v", resp)
	}
}

func TestSessionHandler_TransitionRoutes(t *testing.T) {
	t.Parallel()

	var calls int
	service := &stubSessionService{
		transitionFn: func(_ context.Context, _ booking.Principal, sessionID string) (booking.Session, error) {
			calls++
			if sessionID != "session-1" {
				t.Fatalf("unexpected session id %q", sessionID)
			}
			return sampleSession(), nil
		},
	}
	router := newTestRouter(t, service)

	for _, action := range []string{"cancel", "start", "complete"} {
		req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/"+action, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("action %s: expected 200, got %d", action, rec.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 transition calls, got %d", calls)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}
}

func TestSessionHandler_RosterRoutes(t *testing.T) {
	t.Parallel()

	var lastMember string
	service := &stubSessionService{
		rosterFn: func(_ context.Context, _ booking.Principal, _, memberID string) (booking.Session, error) {
			lastMember = memberID
			return sampleSession(), nil
		},
	}
	router := newTestRouter(t, service)

	req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/members/member-7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || lastMember != "member-7" {
		t.Fatalf("expected add roster call for member-7, got status %d member %q", rec.Code, lastMember)
	}

	req = httptest.NewRequest(http.MethodDelete, "/sessions/session-1/members/member-7", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected remove roster call to succeed, got %d", rec.Code)
	}
}

func TestSessionHandler_Availability(t *testing.T) {
	t.Parallel()

	service := &stubSessionService{
		availabilityFn: func(_ context.Context, trainerID string, span interval.Span, exclude string) (booking.Availability, error) {
			if trainerID != "trainer-1" || exclude != "session-3" {
				t.Fatalf("unexpected probe args: %q %q", trainerID, exclude)
			}
			if span.Start.IsZero() || span.End.IsZero() {
				t.Fatalf("expected parsed span, got %#v", span)
			}
			return booking.Availability{Available: false, Conflicts: []string{"session-2"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet,
		"/availability?trainer_id=trainer-1&start=2026-09-01T10:00:00Z&end=2026-09-01T11:00:00Z&exclude_session_id=session-3", nil)
	rec := httptest.NewRecorder()
	newTestRouter(t, service).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Available || len(resp.Conflicts) != 1 {
		t.Fatalf("unexpected availability payload: %#v", resp)
	}
}

func TestSessionHandler_AvailabilityTimeoutReturns503(t *testing.T) {
	t.Parallel()

	service := &stubSessionService{
		availabilityFn: func(context.Context, string, interval.Span, string) (booking.Availability, error) {
			return booking.Availability{}, booking.ErrUnavailable
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/availability?trainer_id=trainer-1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(t, service).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 503")
	}
}

type stubAnalyticsService struct {
	report analytics.Report
	err    error
}

func (s *stubAnalyticsService) GetAnalytics(context.Context, booking.Principal, analytics.Scope, booking.AnalyticsPeriod) (analytics.Report, error) {
	return s.report, s.err
}

func TestAnalyticsHandler_Report(t *testing.T) {
	t.Parallel()

	period := booking.AnalyticsPeriod{
		From: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
	}
	service := &stubAnalyticsService{
		report: analytics.Report{
			Period:         period,
			SessionCount:   4,
			CancelledCount: 1,
			AttendanceRate: 0.5,
			Utilization: []analytics.TrainerUtilization{
				{TrainerID: "trainer-1", Booked: 2 * time.Hour, Utilization: 0.25},
			},
		},
	}

	router := NewRouter(RouterConfig{Analytics: NewAnalyticsHandler(service, nil)})
	req := httptest.NewRequest(http.MethodGet, "/analytics?from=2026-09-01T00:00:00Z&to=2026-09-08T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp reportDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionCount != 4 || len(resp.Utilization) != 1 || resp.Utilization[0].BookedMinutes != 120 {
		t.Fatalf("unexpected report payload: %#v", resp)
	}
}

func TestAnalyticsHandler_UnauthorizedScope(t *testing.T) {
	t.Parallel()

	service := &stubAnalyticsService{
		err: &booking.Rejection{Code: booking.ReasonUnauthorized, Message: "analytics requires elevated access"},
	}

	router := NewRouter(RouterConfig{Analytics: NewAnalyticsHandler(service, nil)})
	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

type stubAuthService struct {
	user    booking.User
	session booking.AuthSession
	err     error
	revoked []string
}

func (s *stubAuthService) Authenticate(context.Context, string, string) (booking.User, booking.AuthSession, error) {
	return s.user, s.session, s.err
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.err
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	service := &stubAuthService{
		user:    booking.User{ID: "user-1", Role: authz.RoleTrainer},
		session: booking.AuthSession{Token: "token-1", ExpiresAt: expires},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"T1@Example.com","password":"secret"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Session-Token") != "token-1" {
		t.Fatal("expected session token header")
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "token-1" || resp.Role != "trainer" {
		t.Fatalf("unexpected login payload: %#v", resp)
	}
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	service := &stubAuthService{err: booking.ErrInvalidCredentials}
	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"x@example.com","password":"bad"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
