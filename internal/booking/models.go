package booking

import (
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/interval"
)

// SessionStatus tracks the lifecycle state of a training session.
type SessionStatus string

const (
	StatusScheduled  SessionStatus = "scheduled"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// validTransitions is the closed transition set. completed and cancelled are
// terminal: no transition leaves them.
var validTransitions = map[SessionStatus]map[SessionStatus]bool{
	StatusScheduled:  {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to SessionStatus) bool {
	return validTransitions[from][to]
}

// BookingStatus tracks a member's claim on a seat.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Session is a scheduled trainer-led time block with a location and capacity.
type Session struct {
	ID                  string
	TrainerID           string
	Start               time.Time
	End                 time.Time
	Location            string
	MaxParticipants     int
	CurrentParticipants int
	Notes               string
	Status              SessionStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Span returns the session's scheduled interval.
func (s Session) Span() interval.Span {
	return interval.Span{Start: s.Start, End: s.End}
}

// Active reports whether the session participates in conflict checks.
// Cancelled sessions are excluded.
func (s Session) Active() bool {
	return s.Status != StatusCancelled
}

// Booking associates a member with a session. Rows survive session
// cancellation for audit and analytics; only confirmed bookings count toward
// capacity and member conflicts.
type Booking struct {
	SessionID string
	MemberID  string
	Status    BookingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRequest carries caller-provided fields for creating a session.
// Client-supplied times are advisory; the engine validates them against its
// own clock.
type SessionRequest struct {
	TrainerID       string
	Start           time.Time
	End             time.Time
	Location        string
	MaxParticipants int
	MemberIDs       []string
	Notes           string
}

// SessionPatch carries the fields an update may change. Nil fields keep the
// existing value; the roster is edited through AddMember and RemoveMember
// instead.
type SessionPatch struct {
	Start           *time.Time
	End             *time.Time
	Location        *string
	MaxParticipants *int
	Notes           *string
}

// Decision is the accepted outcome of validation: the normalized session and
// booking set ready for atomic commit.
type Decision struct {
	Session  Session
	Bookings []Booking
}

// Availability is the read-only answer for live form feedback.
type Availability struct {
	Available bool
	Conflicts []string
}

// AnalyticsPeriod bounds a read-side rollup query.
type AnalyticsPeriod struct {
	From time.Time
	To   time.Time
}

// Principal aliases the authorization guard's identity type so callers deal
// with a single package for engine requests.
type Principal = authz.Principal
