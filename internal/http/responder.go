package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/gym-scheduler/internal/booking"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidSessionID    = errors.New("session id is required")
	errInvalidMemberID     = errors.New("member id is required")
	errMissingSessionToken = errors.New("session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// writeNotFound renders the single not-found body. Unauthorized reads are
// surfaced as booking.ErrNotFound by the services, so this response never
// reveals whether the record exists.
func (r responder) writeNotFound(ctx context.Context, w http.ResponseWriter) {
	r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
}

// handleServiceError maps engine errors onto the HTTP surface. Rejections
// carry their reason code so clients can render the refusal; transient
// failures signal retry with 503.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	if rej, ok := booking.AsRejection(err); ok {
		r.writeJSON(ctx, w, rejectionStatus(rej.Code), rejectionResponse(rej))
		return
	}

	switch {
	case errors.Is(err, booking.ErrNotFound):
		r.writeNotFound(ctx, w)
	case errors.Is(err, booking.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			Message: "the scheduler is temporarily unavailable, please retry",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", booking.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func rejectionStatus(code booking.ReasonCode) int {
	switch code {
	case booking.ReasonUnauthorized:
		return http.StatusForbidden
	case booking.ReasonTrainerConflict, booking.ReasonMemberConflict, booking.ReasonInvalidStateTransition:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func rejectionResponse(rej *booking.Rejection) errorResponse {
	resp := errorResponse{
		ReasonCode:       string(rej.Code),
		Message:          rej.Message,
		TrainerConflicts: rej.TrainerConflicts,
	}
	for _, conflict := range rej.MemberConflicts {
		resp.MemberConflicts = append(resp.MemberConflicts, memberConflictDTO{
			MemberID:  conflict.MemberID,
			SessionID: conflict.SessionID,
		})
	}
	if resp.Message == "" {
		resp.Message = string(rej.Code)
	}
	return resp
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state"
	case http.StatusUnprocessableEntity:
		return "the request was rejected"
	default:
		return "an internal error occurred"
	}
}

type errorResponse struct {
	ReasonCode       string              `json:"reason_code,omitempty"`
	Message          string              `json:"message"`
	TrainerConflicts []string            `json:"trainer_conflicts,omitempty"`
	MemberConflicts  []memberConflictDTO `json:"member_conflicts,omitempty"`
}

type memberConflictDTO struct {
	MemberID  string `json:"member_id"`
	SessionID string `json:"session_id"`
}
