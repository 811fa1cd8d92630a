// Package analytics derives read-only rollups from committed session and
// booking state. It is diagnostic, never authoritative: it tolerates slightly
// stale reads and mutates nothing.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
)

// Store is the read-side view of committed sessions. A stale replica is an
// acceptable backing source.
type Store interface {
	ListSessions(ctx context.Context, filter booking.SessionFilter) ([]booking.Session, error)
}

// Scope narrows a rollup to one trainer; the zero value covers everyone.
type Scope struct {
	TrainerID string
}

// TrainerUtilization reports how much of the period one trainer spent booked.
type TrainerUtilization struct {
	TrainerID string
	// Booked is the summed duration of the trainer's non-cancelled sessions
	// clipped to the period.
	Booked time.Duration
	// Utilization is Booked divided by the period length, in [0, 1].
	Utilization float64
}

// Report is the aggregate structure handed to callers.
type Report struct {
	Period         booking.AnalyticsPeriod
	SessionCount   int
	CancelledCount int
	// AttendanceRate is total confirmed participants over total capacity for
	// non-cancelled sessions in the period.
	AttendanceRate float64
	Utilization    []TrainerUtilization
	// HourHistogram counts non-cancelled session starts per UTC hour of day.
	HourHistogram [24]int
}

// Service computes rollups. It holds no caches and writes nothing.
type Service struct {
	store  Store
	guard  *authz.Guard
	logger *slog.Logger
}

// NewService wires the aggregator.
func NewService(store Store, guard *authz.Guard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, guard: guard, logger: logger}
}

// GetAnalytics computes the rollup for the scope and period.
func (s *Service) GetAnalytics(ctx context.Context, principal booking.Principal, scope Scope, period booking.AnalyticsPeriod) (Report, error) {
	if s == nil || s.store == nil {
		return Report{}, fmt.Errorf("analytics service not configured")
	}
	if period.From.IsZero() || period.To.IsZero() || !period.To.After(period.From) {
		return Report{}, &booking.Rejection{Code: booking.ReasonEndBeforeStart, Message: "analytics period end must be after start"}
	}

	if decision := s.guard.Authorize(principal, authz.OpRead, authz.ResourceAnalytics, ""); !decision.Allowed {
		return Report{}, &booking.Rejection{Code: booking.ReasonUnauthorized, Message: decision.Reason}
	}

	from := period.From.UTC()
	to := period.To.UTC()

	sessions, err := s.store.ListSessions(ctx, booking.SessionFilter{
		TrainerID:    scope.TrainerID,
		EndsAfter:    &from,
		StartsBefore: &to,
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{Period: booking.AnalyticsPeriod{From: from, To: to}}
	periodLength := to.Sub(from)

	var totalBooked, totalCapacity int
	bookedByTrainer := make(map[string]time.Duration)

	for _, session := range sessions {
		report.SessionCount++
		if session.Status == booking.StatusCancelled {
			report.CancelledCount++
			continue
		}

		totalBooked += session.CurrentParticipants
		totalCapacity += session.MaxParticipants
		bookedByTrainer[session.TrainerID] += clipToPeriod(session, from, to)
		report.HourHistogram[session.Start.UTC().Hour()]++
	}

	if totalCapacity > 0 {
		report.AttendanceRate = float64(totalBooked) / float64(totalCapacity)
	}

	trainers := make([]string, 0, len(bookedByTrainer))
	for trainerID := range bookedByTrainer {
		trainers = append(trainers, trainerID)
	}
	sort.Strings(trainers)

	for _, trainerID := range trainers {
		booked := bookedByTrainer[trainerID]
		utilization := TrainerUtilization{TrainerID: trainerID, Booked: booked}
		if periodLength > 0 {
			utilization.Utilization = float64(booked) / float64(periodLength)
			if utilization.Utilization > 1 {
				utilization.Utilization = 1
			}
		}
		report.Utilization = append(report.Utilization, utilization)
	}

	return report, nil
}

// clipToPeriod returns how much of the session's span falls inside the
// period window.
func clipToPeriod(session booking.Session, from, to time.Time) time.Duration {
	start := session.Start.UTC()
	end := session.End.UTC()
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
