package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/interval"
	"github.com/example/gym-scheduler/internal/scheduler"
)

// Directory exposes the member/trainer lookups the validator needs. The
// engine does not own user records; it only checks that referenced ids exist.
type Directory interface {
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}

// Validator orchestrates the business rules for booking attempts. It is pure
// apart from the directory lookup: rejected attempts have no side effects.
type Validator struct {
	guard       *authz.Guard
	detector    *scheduler.Detector
	directory   Directory
	now         func() time.Time
	maxCapacity int
}

// NewValidator wires the validator's collaborators. maxCapacity is the
// configured upper bound on session capacity.
func NewValidator(guard *authz.Guard, detector *scheduler.Detector, directory Directory, now func() time.Time, maxCapacity int) *Validator {
	if now == nil {
		now = time.Now
	}
	if maxCapacity <= 0 {
		maxCapacity = 50
	}
	return &Validator{
		guard:       guard,
		detector:    detector,
		directory:   directory,
		now:         now,
		maxCapacity: maxCapacity,
	}
}

// MaxCapacity returns the configured capacity upper bound.
func (v *Validator) MaxCapacity() int {
	return v.maxCapacity
}

// ValidateCreate runs the full rule sequence for a new session and returns
// the accepted decision carrying the normalized session and booking set.
func (v *Validator) ValidateCreate(ctx context.Context, principal Principal, req SessionRequest) (Decision, error) {
	return v.validate(ctx, principal, req, "")
}

// ValidateUpdate re-runs the full rule sequence against the new values,
// ignoring the session's own prior interval in conflict checks.
func (v *Validator) ValidateUpdate(ctx context.Context, principal Principal, existing Session, roster []string, patch SessionPatch) (Decision, error) {
	req := SessionRequest{
		TrainerID:       existing.TrainerID,
		Start:           existing.Start,
		End:             existing.End,
		Location:        existing.Location,
		MaxParticipants: existing.MaxParticipants,
		MemberIDs:       roster,
		Notes:           existing.Notes,
	}
	if patch.Start != nil {
		req.Start = *patch.Start
	}
	if patch.End != nil {
		req.End = *patch.End
	}
	if patch.Location != nil {
		req.Location = *patch.Location
	}
	if patch.MaxParticipants != nil {
		req.MaxParticipants = *patch.MaxParticipants
	}
	if patch.Notes != nil {
		req.Notes = *patch.Notes
	}

	decision, err := v.validate(ctx, principal, req, existing.ID)
	if err != nil {
		return Decision{}, err
	}

	decision.Session.ID = existing.ID
	decision.Session.Status = existing.Status
	decision.Session.CreatedAt = existing.CreatedAt
	for i := range decision.Bookings {
		decision.Bookings[i].SessionID = existing.ID
	}
	return decision, nil
}

// ValidateMemberAddition checks capacity and member conflicts for a single
// member joining an existing session.
func (v *Validator) ValidateMemberAddition(ctx context.Context, principal Principal, session Session, memberID string) error {
	if decision := v.guard.Authorize(principal, authz.OpWrite, authz.ResourceBooking, memberID); !decision.Allowed {
		return reject(ReasonUnauthorized, decision.Reason)
	}

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return ErrNotFound
	}
	if err := v.ensureUsersExist(ctx, []string{memberID}); err != nil {
		return err
	}

	if session.CurrentParticipants+1 > session.MaxParticipants {
		return reject(ReasonCapacityExceeded, fmt.Sprintf("session %s is full (%d/%d)", session.ID, session.CurrentParticipants, session.MaxParticipants))
	}

	if conflicts := v.detector.CheckMemberConflicts([]string{memberID}, session.Span(), session.ID); len(conflicts) > 0 {
		return rejectMemberConflicts(conflicts)
	}
	return nil
}

func (v *Validator) validate(ctx context.Context, principal Principal, req SessionRequest, excludeSessionID string) (Decision, error) {
	if v == nil {
		return Decision{}, fmt.Errorf("validator is nil")
	}

	if decision := v.guard.Authorize(principal, authz.OpWrite, authz.ResourceSession, req.TrainerID); !decision.Allowed {
		return Decision{}, reject(ReasonUnauthorized, decision.Reason)
	}

	start := req.Start.UTC()
	end := req.End.UTC()
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Decision{}, reject(ReasonEndBeforeStart, "scheduled end must be after scheduled start")
	}
	// The server clock is authoritative; client-supplied times are advisory.
	if start.Before(v.now().UTC()) {
		return Decision{}, reject(ReasonPastDate, "scheduled start must not be in the past")
	}

	if req.MaxParticipants < 1 || req.MaxParticipants > v.maxCapacity {
		return Decision{}, reject(ReasonCapacityExceeded, fmt.Sprintf("max participants must be between 1 and %d", v.maxCapacity))
	}
	members := normalizeIDs(req.MemberIDs)
	if len(members) == 0 {
		return Decision{}, reject(ReasonCapacityExceeded, "at least one member is required")
	}
	if len(members) > req.MaxParticipants {
		return Decision{}, reject(ReasonCapacityExceeded, fmt.Sprintf("%d members exceed the capacity of %d", len(members), req.MaxParticipants))
	}

	trainerID := strings.TrimSpace(req.TrainerID)
	if trainerID == "" {
		return Decision{}, ErrNotFound
	}
	if err := v.ensureUsersExist(ctx, append([]string{trainerID}, members...)); err != nil {
		return Decision{}, err
	}

	span := interval.Span{Start: start, End: end}
	if conflict := v.detector.CheckTrainerConflict(trainerID, span, excludeSessionID); conflict.Conflict {
		return Decision{}, rejectTrainerConflict(conflict.Sessions)
	}

	if conflicts := v.detector.CheckMemberConflicts(members, span, excludeSessionID); len(conflicts) > 0 {
		return Decision{}, rejectMemberConflicts(conflicts)
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		return Decision{}, reject(ReasonLocationRequired, "location must not be empty")
	}

	session := Session{
		TrainerID:           trainerID,
		Start:               start,
		End:                 end,
		Location:            location,
		MaxParticipants:     req.MaxParticipants,
		CurrentParticipants: len(members),
		Notes:               strings.TrimSpace(req.Notes),
		Status:              StatusScheduled,
	}

	bookings := make([]Booking, 0, len(members))
	for _, memberID := range members {
		bookings = append(bookings, Booking{MemberID: memberID, Status: BookingConfirmed})
	}

	return Decision{Session: session, Bookings: bookings}, nil
}

func (v *Validator) ensureUsersExist(ctx context.Context, ids []string) error {
	if v.directory == nil {
		return nil
	}
	missing, err := v.directory.MissingUserIDs(ctx, normalizeIDs(ids))
	if err != nil {
		return mapRepoError(err)
	}
	if len(missing) > 0 {
		// Unknown ids get the same answer as forbidden ones.
		return ErrNotFound
	}
	return nil
}

func normalizeIDs(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	sort.Strings(result)
	return result
}
