package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/interval"
	"github.com/example/gym-scheduler/internal/scheduler"
)

// SessionFilter narrows session queries issued to the store.
type SessionFilter struct {
	TrainerID string
	Statuses  []SessionStatus
	// EndsAfter and StartsBefore select sessions overlapping a window.
	EndsAfter    *time.Time
	StartsBefore *time.Time
}

// SessionStore captures the persistence interactions the lifecycle manager
// needs. Every mutating call is atomic, and calls that touch the roster
// recompute current_participants from confirmed bookings inside the same
// transaction, failing with an invariant violation on drift.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session, bookings []Booking) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	ListBookings(ctx context.Context, sessionID string) ([]Booking, error)
	AddBooking(ctx context.Context, sessionID, memberID string) (Session, error)
	RemoveBooking(ctx context.Context, sessionID, memberID string) (Session, error)
}

// LifecycleService owns the session state machine and is the sole writer of
// session and booking state. All other components only read or propose.
type LifecycleService struct {
	store        SessionStore
	validator    *Validator
	guard        *authz.Guard
	detector     *scheduler.Detector
	trainerIndex *interval.Index
	memberIndex  *interval.Index
	locks        *ownerLocks
	availability *availabilityCache

	idGenerator  func() string
	now          func() time.Time
	checkTimeout time.Duration
	logger       *slog.Logger
}

// LifecycleConfig bundles the tunables for the lifecycle service.
type LifecycleConfig struct {
	// CheckTimeout bounds availability checks; an expired budget is a
	// retryable failure, never "available".
	CheckTimeout time.Duration
	// AvailabilityCacheSize and AvailabilityCacheTTL size the memoised
	// availability answers.
	AvailabilityCacheSize int
	AvailabilityCacheTTL  time.Duration
}

// NewLifecycleService wires the lifecycle manager. The indexes passed here
// must be the same instances the detector reads from.
func NewLifecycleService(store SessionStore, validator *Validator, guard *authz.Guard, detector *scheduler.Detector, trainers, members *interval.Index, idGenerator func() string, now func() time.Time, cfg LifecycleConfig, logger *slog.Logger) *LifecycleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 300 * time.Millisecond
	}
	return &LifecycleService{
		store:        store,
		validator:    validator,
		guard:        guard,
		detector:     detector,
		trainerIndex: trainers,
		memberIndex:  members,
		locks:        newOwnerLocks(),
		availability: newAvailabilityCache(cfg.AvailabilityCacheSize, cfg.AvailabilityCacheTTL),
		idGenerator:  idGenerator,
		now:          now,
		checkTimeout: cfg.CheckTimeout,
		logger:       defaultLogger(logger),
	}
}

func (s *LifecycleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LifecycleService", operation, attrs...)
}

// WarmIndexes rebuilds the trainer and member interval indexes from committed
// state. Called once at startup; afterwards the indexes are maintained
// incrementally by this service only.
func (s *LifecycleService) WarmIndexes(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("lifecycle service not configured")
	}

	sessions, err := s.store.ListSessions(ctx, SessionFilter{
		Statuses: []SessionStatus{StatusScheduled, StatusInProgress, StatusCompleted},
	})
	if err != nil {
		return mapRepoError(err)
	}

	for _, session := range sessions {
		span := session.Span()
		s.trainerIndex.Insert(session.TrainerID, session.ID, span)

		bookings, err := s.store.ListBookings(ctx, session.ID)
		if err != nil {
			return mapRepoError(err)
		}
		for _, b := range bookings {
			if b.Status == BookingConfirmed {
				s.memberIndex.Insert(b.MemberID, session.ID, span)
			}
		}
	}
	return nil
}

// ValidateAndCreate runs the full validation sequence under the locks of the
// trainer and every rostered member and, on acceptance, atomically commits
// the session with its bookings and updates the interval indexes. Holding the
// member locks too means two attempts rostering the same member serialize
// even when their trainers differ, so the member no-double-booking invariant
// is race-free.
func (s *LifecycleService) ValidateAndCreate(ctx context.Context, principal Principal, req SessionRequest) (session Session, err error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("lifecycle service not configured")
	}

	trainerID := strings.TrimSpace(req.TrainerID)
	logger := s.loggerWith(ctx, "ValidateAndCreate", "trainer_id", trainerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking attempt rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session created")
	}()

	unlock := s.locks.LockAll(append(normalizeIDs(req.MemberIDs), trainerID))
	defer unlock()

	decision, err := s.validator.ValidateCreate(ctx, principal, req)
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	decision.Session.ID = s.idGenerator()
	decision.Session.CreatedAt = now
	decision.Session.UpdatedAt = now
	for i := range decision.Bookings {
		decision.Bookings[i].SessionID = decision.Session.ID
		decision.Bookings[i].CreatedAt = now
		decision.Bookings[i].UpdatedAt = now
	}

	persisted, err := s.store.CreateSession(ctx, decision.Session, decision.Bookings)
	if err != nil {
		return Session{}, s.checkInvariant(ctx, logger, mapRepoError(err))
	}

	span := persisted.Span()
	s.trainerIndex.Insert(persisted.TrainerID, persisted.ID, span)
	for _, b := range decision.Bookings {
		s.memberIndex.Insert(b.MemberID, persisted.ID, span)
	}
	s.availability.Purge()

	return persisted, nil
}

// ValidateAndUpdate re-validates the session against the new values,
// excluding its own prior interval, then atomically persists the change and
// swaps the index entries.
func (s *LifecycleService) ValidateAndUpdate(ctx context.Context, principal Principal, sessionID string, patch SessionPatch) (session Session, err error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("lifecycle service not configured")
	}

	logger := s.loggerWith(ctx, "ValidateAndUpdate", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "schedule update rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session updated")
	}()

	existing, roster, unlock, err := s.lockSessionRoster(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	if existing.Status != StatusScheduled {
		return Session{}, reject(ReasonInvalidStateTransition, fmt.Sprintf("cannot reschedule a session in status %q", existing.Status))
	}

	decision, err := s.validator.ValidateUpdate(ctx, principal, existing, roster, patch)
	if err != nil {
		return Session{}, err
	}
	decision.Session.UpdatedAt = s.now().UTC()

	persisted, err := s.store.UpdateSession(ctx, decision.Session)
	if err != nil {
		return Session{}, s.checkInvariant(ctx, logger, mapRepoError(err))
	}

	span := persisted.Span()
	s.trainerIndex.Insert(persisted.TrainerID, persisted.ID, span)
	for _, memberID := range roster {
		s.memberIndex.Insert(memberID, persisted.ID, span)
	}
	s.availability.Purge()

	return persisted, nil
}

// Cancel transitions the session to cancelled and removes it from the
// interval indexes. Historical booking rows are untouched; they simply stop
// participating in conflict checks.
func (s *LifecycleService) Cancel(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.transition(ctx, principal, sessionID, StatusCancelled)
}

// Start transitions a scheduled session to in_progress.
func (s *LifecycleService) Start(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.transition(ctx, principal, sessionID, StatusInProgress)
}

// Complete transitions an in_progress session to completed.
func (s *LifecycleService) Complete(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.transition(ctx, principal, sessionID, StatusCompleted)
}

func (s *LifecycleService) transition(ctx context.Context, principal Principal, sessionID string, to SessionStatus) (session Session, err error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("lifecycle service not configured")
	}

	logger := s.loggerWith(ctx, "Transition", "session_id", sessionID, "to", string(to))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "transition rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session transitioned")
	}()

	existing, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	if decision := s.guard.Authorize(principal, authz.OpWrite, authz.ResourceSession, existing.TrainerID); !decision.Allowed {
		return Session{}, reject(ReasonUnauthorized, decision.Reason)
	}

	if !CanTransition(existing.Status, to) {
		return Session{}, reject(ReasonInvalidStateTransition, fmt.Sprintf("cannot transition from %q to %q", existing.Status, to))
	}

	existing.Status = to
	existing.UpdatedAt = s.now().UTC()

	persisted, err := s.store.UpdateSession(ctx, existing)
	if err != nil {
		return Session{}, s.checkInvariant(ctx, logger, mapRepoError(err))
	}

	if to == StatusCancelled {
		s.trainerIndex.Remove(persisted.TrainerID, persisted.ID)
		roster, rosterErr := s.confirmedRoster(ctx, persisted.ID)
		if rosterErr != nil {
			return Session{}, rosterErr
		}
		for _, memberID := range roster {
			s.memberIndex.Remove(memberID, persisted.ID)
		}
		s.availability.Purge()
	}

	return persisted, nil
}

// AddMember re-validates capacity and member conflicts for the joining member
// only, then atomically records the booking and updates the counter.
func (s *LifecycleService) AddMember(ctx context.Context, principal Principal, sessionID, memberID string) (session Session, err error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("lifecycle service not configured")
	}

	logger := s.loggerWith(ctx, "AddMember", "session_id", sessionID, "member_id", memberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "roster addition rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member added")
	}()

	existing, unlock, err := s.lockSession(ctx, sessionID, strings.TrimSpace(memberID))
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	if existing.Status != StatusScheduled {
		return Session{}, reject(ReasonInvalidStateTransition, fmt.Sprintf("cannot edit the roster of a session in status %q", existing.Status))
	}

	if err := s.validator.ValidateMemberAddition(ctx, principal, existing, memberID); err != nil {
		return Session{}, err
	}

	persisted, err := s.store.AddBooking(ctx, sessionID, memberID)
	if err != nil {
		return Session{}, s.checkInvariant(ctx, logger, mapRepoError(err))
	}

	s.memberIndex.Insert(memberID, persisted.ID, persisted.Span())
	s.availability.Purge()

	return persisted, nil
}

// RemoveMember cancels the member's booking and updates the counter. The
// booking row survives for audit.
func (s *LifecycleService) RemoveMember(ctx context.Context, principal Principal, sessionID, memberID string) (session Session, err error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("lifecycle service not configured")
	}

	logger := s.loggerWith(ctx, "RemoveMember", "session_id", sessionID, "member_id", memberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "roster removal rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member removed")
	}()

	existing, unlock, err := s.lockSession(ctx, sessionID, strings.TrimSpace(memberID))
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	if decision := s.guard.Authorize(principal, authz.OpWrite, authz.ResourceBooking, memberID); !decision.Allowed {
		return Session{}, reject(ReasonUnauthorized, decision.Reason)
	}

	if existing.Status != StatusScheduled {
		return Session{}, reject(ReasonInvalidStateTransition, fmt.Sprintf("cannot edit the roster of a session in status %q", existing.Status))
	}

	persisted, err := s.store.RemoveBooking(ctx, sessionID, memberID)
	if err != nil {
		return Session{}, s.checkInvariant(ctx, logger, mapRepoError(err))
	}

	s.memberIndex.Remove(memberID, persisted.ID)
	s.availability.Purge()

	return persisted, nil
}

// CheckAvailability answers a read-only overlap query for live form feedback.
// The check runs under the configured budget; exceeding it surfaces as a
// retryable transient failure, never as "available".
func (s *LifecycleService) CheckAvailability(ctx context.Context, trainerID string, span interval.Span, excludeSessionID string) (Availability, error) {
	if s == nil {
		return Availability{}, fmt.Errorf("lifecycle service not configured")
	}
	if !span.IsValid() {
		return Availability{}, reject(ReasonEndBeforeStart, "interval end must be after start")
	}

	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	trainerID = strings.TrimSpace(trainerID)
	key := availabilityCacheKey(trainerID, span, excludeSessionID)
	if cached, ok := s.availability.Get(key); ok {
		return cached, nil
	}

	conflict := s.detector.CheckTrainerConflict(trainerID, span, excludeSessionID)
	if err := ctx.Err(); err != nil {
		return Availability{}, fmt.Errorf("%w: availability check: %v", ErrUnavailable, err)
	}

	availability := Availability{Available: !conflict.Conflict, Conflicts: conflict.Sessions}
	s.availability.Store(key, availability)
	return availability, nil
}

// GetSession returns the session and its bookings, subject to read
// authorization. Unauthorized readers get the same answer as a missing
// record.
func (s *LifecycleService) GetSession(ctx context.Context, principal Principal, sessionID string) (Session, []Booking, error) {
	if s == nil || s.store == nil {
		return Session{}, nil, fmt.Errorf("lifecycle service not configured")
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, mapRepoError(err)
	}

	if decision := s.guard.Authorize(principal, authz.OpRead, authz.ResourceSession, session.TrainerID); !decision.Allowed {
		return Session{}, nil, ErrNotFound
	}

	bookings, err := s.store.ListBookings(ctx, sessionID)
	if err != nil {
		return Session{}, nil, mapRepoError(err)
	}
	return session, bookings, nil
}

// lockSession resolves the session's trainer, acquires the locks for the
// trainer and any additional owners (the member being added or removed) as
// one batch, and re-reads the session under them so the caller sees committed
// state.
func (s *LifecycleService) lockSession(ctx context.Context, sessionID string, owners ...string) (Session, func(), error) {
	preview, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, mapRepoError(err)
	}

	unlock := s.locks.LockAll(append(owners, preview.TrainerID))

	current, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		unlock()
		return Session{}, nil, mapRepoError(err)
	}
	if current.TrainerID != preview.TrainerID {
		// Trainer reassignment is not an operation this engine offers, so
		// this indicates an external writer; bail out rather than commit
		// under the wrong lock.
		unlock()
		return Session{}, nil, fmt.Errorf("%w: session %s changed trainer concurrently", ErrUnavailable, sessionID)
	}
	return current, unlock, nil
}

// lockSessionRoster locks the session's trainer together with its confirmed
// roster, so a reschedule's member-conflict checks cannot race a concurrent
// booking that rosters the same member under another trainer. The roster is
// previewed before locking; roster edits hold the trainer's lock, so a
// mismatch after acquisition means the preview raced one and the caller
// should retry.
func (s *LifecycleService) lockSessionRoster(ctx context.Context, sessionID string) (Session, []string, func(), error) {
	preview, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, nil, mapRepoError(err)
	}
	previewRoster, err := s.confirmedRoster(ctx, sessionID)
	if err != nil {
		return Session{}, nil, nil, err
	}

	unlock := s.locks.LockAll(append(append([]string{}, previewRoster...), preview.TrainerID))

	current, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		unlock()
		return Session{}, nil, nil, mapRepoError(err)
	}
	roster, err := s.confirmedRoster(ctx, sessionID)
	if err != nil {
		unlock()
		return Session{}, nil, nil, err
	}
	if current.TrainerID != preview.TrainerID || !sameIDSet(previewRoster, roster) {
		unlock()
		return Session{}, nil, nil, fmt.Errorf("%w: session %s changed concurrently", ErrUnavailable, sessionID)
	}
	return current, roster, unlock, nil
}

// sameIDSet reports whether two id lists contain the same members,
// independent of order.
func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

func (s *LifecycleService) confirmedRoster(ctx context.Context, sessionID string) ([]string, error) {
	bookings, err := s.store.ListBookings(ctx, sessionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	roster := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == BookingConfirmed {
			roster = append(roster, b.MemberID)
		}
	}
	return roster, nil
}

// checkInvariant escalates commit-time invariant violations to the operator
// log. State is untouched because the violating transaction rolled back.
func (s *LifecycleService) checkInvariant(ctx context.Context, logger *slog.Logger, err error) error {
	if errors.Is(err, ErrInvariantViolation) {
		logger.ErrorContext(ctx, "commit aborted by invariant violation", "error", err)
	}
	return err
}
