package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/gym-scheduler/internal/booking"
)

func TestClockAdvance(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %v", clock.Now())
	}

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(ReferenceTime().Add(90 * time.Minute)) {
		t.Fatalf("unexpected advanced time: %v", updated)
	}
	if !clock.Now().Equal(updated) {
		t.Fatal("Now must track the advanced time")
	}
}

func TestIDGeneratorSequence(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("session")
	if id := gen.Next(); id != "session-1" {
		t.Fatalf("expected session-1, got %s", id)
	}
	if id := gen.Next(); id != "session-2" {
		t.Fatalf("expected session-2, got %s", id)
	}
}

func TestSessionFixturesDoNotOverlap(t *testing.T) {
	t.Parallel()

	first := NewSessionFixture()
	second := NewSessionFixture()
	if first.Span().Overlaps(second.Span()) {
		t.Fatalf("consecutive fixtures must not overlap: %v / %v", first.Span(), second.Span())
	}
}

func TestMemorySessionStore_CounterInvariant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemorySessionStore()

	session := NewSessionFixture()
	session.CurrentParticipants = 2
	bookings := []booking.Booking{
		{SessionID: session.ID, MemberID: "member-1", Status: booking.BookingConfirmed},
	}

	if _, err := store.CreateSession(ctx, session, bookings); !errors.Is(err, booking.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	session.CurrentParticipants = 1
	created, err := store.CreateSession(ctx, session, bookings)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.CurrentParticipants != 1 {
		t.Fatalf("unexpected counter: %d", created.CurrentParticipants)
	}

	updated, err := store.AddBooking(ctx, session.ID, "member-2")
	if err != nil {
		t.Fatalf("AddBooking failed: %v", err)
	}
	if updated.CurrentParticipants != 2 {
		t.Fatalf("expected counter 2, got %d", updated.CurrentParticipants)
	}

	updated, err = store.RemoveBooking(ctx, session.ID, "member-1")
	if err != nil {
		t.Fatalf("RemoveBooking failed: %v", err)
	}
	if updated.CurrentParticipants != 1 {
		t.Fatalf("expected counter 1, got %d", updated.CurrentParticipants)
	}

	rows, err := store.ListBookings(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("cancelled rows must survive, got %d rows", len(rows))
	}
}

func TestNewEngineWiring(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	engine.AddTrainer("trainer-1")
	engine.AddMemberUser("member-1")

	session, err := engine.Lifecycle.ValidateAndCreate(context.Background(), TrainerPrincipal("trainer-1"), booking.SessionRequest{
		TrainerID:       "trainer-1",
		Start:           engine.Clock.Now().Add(24 * time.Hour),
		End:             engine.Clock.Now().Add(25 * time.Hour),
		Location:        "Studio A",
		MaxParticipants: 5,
		MemberIDs:       []string{"member-1"},
	})
	if err != nil {
		t.Fatalf("ValidateAndCreate failed: %v", err)
	}
	if session.ID != "session-1" {
		t.Fatalf("expected deterministic id session-1, got %s", session.ID)
	}
	if len(engine.Trainers.Intervals("trainer-1")) != 1 {
		t.Fatal("expected the trainer index to track the created session")
	}
}
