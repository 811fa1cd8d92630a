package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/gym-scheduler/internal/persistence"
	"github.com/example/gym-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Callers receive the same answer for records they are not allowed to
	// see, so existence is not leaked to unauthorized principals.
	ErrNotFound = errors.New("booking: not found")
	// ErrUnavailable marks transient infrastructure failures (storage down,
	// deadline exceeded). Callers must retry rather than treat the answer as
	// a rejection or as "available".
	ErrUnavailable = errors.New("booking: temporarily unavailable")
	// ErrInvariantViolation marks a commit-time consistency failure, such as
	// a participant counter that does not match the confirmed booking count.
	// The transaction is aborted and the condition logged for operators.
	ErrInvariantViolation = errors.New("booking: invariant violation")

	// ErrInvalidCredentials is returned for failed authentication attempts.
	ErrInvalidCredentials = errors.New("booking: invalid credentials")
	// ErrAccountDisabled is returned when the account exists but is disabled.
	ErrAccountDisabled = errors.New("booking: account disabled")
	// ErrSessionExpired is returned when an auth session has lapsed.
	ErrSessionExpired = errors.New("booking: auth session expired")
	// ErrSessionRevoked is returned when an auth session was revoked.
	ErrSessionRevoked = errors.New("booking: auth session revoked")
)

// ReasonCode is the closed enumeration of rejection reasons callers can
// render.
type ReasonCode string

const (
	ReasonPastDate               ReasonCode = "PAST_DATE"
	ReasonEndBeforeStart         ReasonCode = "END_BEFORE_START"
	ReasonTrainerConflict        ReasonCode = "TRAINER_CONFLICT"
	ReasonMemberConflict         ReasonCode = "MEMBER_CONFLICT"
	ReasonCapacityExceeded       ReasonCode = "CAPACITY_EXCEEDED"
	ReasonLocationRequired       ReasonCode = "LOCATION_REQUIRED"
	ReasonUnauthorized           ReasonCode = "UNAUTHORIZED"
	ReasonInvalidStateTransition ReasonCode = "INVALID_STATE_TRANSITION"
)

// Rejection is the structured outcome of a refused booking attempt. It is a
// deterministic, caller-fixable answer carried as an error value; rejected
// attempts have no side effects.
type Rejection struct {
	Code    ReasonCode
	Message string
	// TrainerConflicts lists colliding session ids when Code is
	// TRAINER_CONFLICT.
	TrainerConflicts []string
	// MemberConflicts names every member needing another slot when Code is
	// MEMBER_CONFLICT.
	MemberConflicts []scheduler.MemberConflict
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.Message == "" {
		return string(r.Code)
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// AsRejection unwraps a rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func reject(code ReasonCode, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

func rejectTrainerConflict(sessions []string) *Rejection {
	return &Rejection{
		Code:             ReasonTrainerConflict,
		Message:          fmt.Sprintf("trainer already booked for overlapping sessions: %s", strings.Join(sessions, ", ")),
		TrainerConflicts: sessions,
	}
}

func rejectMemberConflicts(conflicts []scheduler.MemberConflict) *Rejection {
	names := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		names = append(names, fmt.Sprintf("%s (session %s)", c.MemberID, c.SessionID))
	}
	return &Rejection{
		Code:            ReasonMemberConflict,
		Message:         fmt.Sprintf("members already booked in overlapping sessions: %s", strings.Join(names, ", ")),
		MemberConflicts: conflicts,
	}
}

// mapRepoError translates persistence sentinels into the engine's taxonomy.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrInvariantViolation):
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
