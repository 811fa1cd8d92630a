package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/interval"
)

type sessionService interface {
	ValidateAndCreate(ctx context.Context, principal booking.Principal, req booking.SessionRequest) (booking.Session, error)
	ValidateAndUpdate(ctx context.Context, principal booking.Principal, sessionID string, patch booking.SessionPatch) (booking.Session, error)
	Cancel(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error)
	Start(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error)
	Complete(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, error)
	AddMember(ctx context.Context, principal booking.Principal, sessionID, memberID string) (booking.Session, error)
	RemoveMember(ctx context.Context, principal booking.Principal, sessionID, memberID string) (booking.Session, error)
	CheckAvailability(ctx context.Context, trainerID string, span interval.Span, excludeSessionID string) (booking.Availability, error)
	GetSession(ctx context.Context, principal booking.Principal, sessionID string) (booking.Session, []booking.Booking, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger)}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.ValidateAndCreate(r.Context(), principal, req.toRequest())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, bookings, err := h.service.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Session:  toSessionDTO(session),
		Bookings: toBookingDTOs(bookings),
	})
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.ValidateAndUpdate(r.Context(), principal, sessionID, req.toPatch())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Transition dispatches a lifecycle action named by the trailing path segment.
func (h *SessionHandler) Transition(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var session booking.Session
	var err error
	switch action {
	case "cancel":
		session, err = h.service.Cancel(r.Context(), principal, sessionID)
	case "start":
		session, err = h.service.Start(r.Context(), principal, sessionID)
	case "complete":
		session, err = h.service.Complete(r.Context(), principal, sessionID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) AddMember(w http.ResponseWriter, r *http.Request, memberID string) {
	h.editRoster(w, r, memberID, true)
}

func (h *SessionHandler) RemoveMember(w http.ResponseWriter, r *http.Request, memberID string) {
	h.editRoster(w, r, memberID, false)
}

func (h *SessionHandler) editRoster(w http.ResponseWriter, r *http.Request, memberID string, add bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}
	if strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var session booking.Session
	var err error
	if add {
		session, err = h.service.AddMember(r.Context(), principal, sessionID, memberID)
	} else {
		session, err = h.service.RemoveMember(r.Context(), principal, sessionID, memberID)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Availability answers the read-only conflict probe used for live form
// feedback. The answer carries no booking side effects.
func (h *SessionHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	trainerID := strings.TrimSpace(query.Get("trainer_id"))
	span := interval.Span{
		Start: parseTimeParam(query.Get("start")),
		End:   parseTimeParam(query.Get("end")),
	}
	exclude := strings.TrimSpace(query.Get("exclude_session_id"))

	availability, err := h.service.CheckAvailability(r.Context(), trainerID, span, exclude)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: availability.Available,
		Conflicts: availability.Conflicts,
	})
}

type createSessionRequest struct {
	TrainerID       string   `json:"trainer_id"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Location        string   `json:"location"`
	MaxParticipants int      `json:"max_participants"`
	MemberIDs       []string `json:"member_ids"`
	Notes           string   `json:"notes"`
}

func (r createSessionRequest) toRequest() booking.SessionRequest {
	return booking.SessionRequest{
		TrainerID:       strings.TrimSpace(r.TrainerID),
		Start:           parseTimeParam(r.Start),
		End:             parseTimeParam(r.End),
		Location:        strings.TrimSpace(r.Location),
		MaxParticipants: r.MaxParticipants,
		MemberIDs:       append([]string(nil), r.MemberIDs...),
		Notes:           r.Notes,
	}
}

type updateSessionRequest struct {
	Start           *string `json:"start"`
	End             *string `json:"end"`
	Location        *string `json:"location"`
	MaxParticipants *int    `json:"max_participants"`
	Notes           *string `json:"notes"`
}

func (r updateSessionRequest) toPatch() booking.SessionPatch {
	patch := booking.SessionPatch{
		MaxParticipants: r.MaxParticipants,
		Notes:           r.Notes,
	}
	if r.Start != nil {
		ts := parseTimeParam(*r.Start)
		patch.Start = &ts
	}
	if r.End != nil {
		ts := parseTimeParam(*r.End)
		patch.End = &ts
	}
	if r.Location != nil {
		trimmed := strings.TrimSpace(*r.Location)
		patch.Location = &trimmed
	}
	return patch
}

func parseTimeParam(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type sessionResponse struct {
	Session  sessionDTO   `json:"session"`
	Bookings []bookingDTO `json:"bookings,omitempty"`
}

type availabilityResponse struct {
	Available bool     `json:"available"`
	Conflicts []string `json:"conflicts,omitempty"`
}

type sessionDTO struct {
	ID                  string `json:"id"`
	TrainerID           string `json:"trainer_id"`
	Start               string `json:"start"`
	End                 string `json:"end"`
	Location            string `json:"location"`
	MaxParticipants     int    `json:"max_participants"`
	CurrentParticipants int    `json:"current_participants"`
	Notes               string `json:"notes,omitempty"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func toSessionDTO(session booking.Session) sessionDTO {
	return sessionDTO{
		ID:                  session.ID,
		TrainerID:           session.TrainerID,
		Start:               session.Start.UTC().Format(time.RFC3339Nano),
		End:                 session.End.UTC().Format(time.RFC3339Nano),
		Location:            session.Location,
		MaxParticipants:     session.MaxParticipants,
		CurrentParticipants: session.CurrentParticipants,
		Notes:               session.Notes,
		Status:              string(session.Status),
		CreatedAt:           session.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:           session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type bookingDTO struct {
	MemberID string `json:"member_id"`
	Status   string `json:"status"`
}

func toBookingDTOs(bookings []booking.Booking) []bookingDTO {
	if len(bookings) == 0 {
		return nil
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingDTO{MemberID: b.MemberID, Status: string(b.Status)})
	}
	return out
}
