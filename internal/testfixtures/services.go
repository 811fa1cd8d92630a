package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/interval"
	"github.com/example/gym-scheduler/internal/scheduler"
)

// Engine bundles a fully wired in-memory booking engine for service tests.
// The detector reads the same interval indexes the lifecycle service
// maintains, matching the production wiring.
type Engine struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Guard       *authz.Guard
	Trainers    *interval.Index
	Members     *interval.Index
	Detector    *scheduler.Detector
	Users       *MemoryUserStore
	Store       *MemorySessionStore
	Validator   *booking.Validator
	Lifecycle   *booking.LifecycleService
}

// EngineOption configures the assembled engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	clock       *Clock
	maxCapacity int
	lifecycle   booking.LifecycleConfig
	logger      *slog.Logger
}

// WithEngineClock overrides the engine clock.
func WithEngineClock(clock *Clock) EngineOption {
	return func(cfg *engineConfig) { cfg.clock = clock }
}

// WithMaxCapacity overrides the validator's global capacity ceiling.
func WithMaxCapacity(max int) EngineOption {
	return func(cfg *engineConfig) { cfg.maxCapacity = max }
}

// WithLifecycleConfig overrides the lifecycle tunables.
func WithLifecycleConfig(lifecycle booking.LifecycleConfig) EngineOption {
	return func(cfg *engineConfig) { cfg.lifecycle = lifecycle }
}

// NewEngine assembles the booking engine on in-memory stores with a
// deterministic clock and id sequence.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := engineConfig{
		clock:     NewClock(time.Time{}),
		lifecycle: booking.LifecycleConfig{CheckTimeout: time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock(time.Time{})
	}

	guard := authz.NewGuard()
	trainers := interval.NewIndex()
	members := interval.NewIndex()
	detector := scheduler.NewDetector(trainers, members)
	users := NewMemoryUserStore()
	store := NewMemorySessionStore()
	ids := NewIDGenerator("session")

	validator := booking.NewValidator(guard, detector, users, cfg.clock.NowFunc(), cfg.maxCapacity)
	lifecycle := booking.NewLifecycleService(
		store, validator, guard, detector, trainers, members,
		ids.NextFunc(), cfg.clock.NowFunc(), cfg.lifecycle, cfg.logger,
	)

	return &Engine{
		Clock:       cfg.clock,
		IDGenerator: ids,
		Guard:       guard,
		Trainers:    trainers,
		Members:     members,
		Detector:    detector,
		Users:       users,
		Store:       store,
		Validator:   validator,
		Lifecycle:   lifecycle,
	}
}

// AddTrainer registers a trainer account and returns its id.
func (e *Engine) AddTrainer(id string) string {
	e.Users.Add(booking.User{
		ID:    id,
		Email: id + "@example.com",
		Role:  authz.RoleTrainer,
	}, "")
	return id
}

// AddMemberUser registers a member account and returns its id.
func (e *Engine) AddMemberUser(id string) string {
	e.Users.Add(booking.User{
		ID:    id,
		Email: id + "@example.com",
		Role:  authz.RoleMember,
	}, "")
	return id
}

// TrainerPrincipal returns a trainer-role principal for the given subject.
func TrainerPrincipal(id string) booking.Principal {
	return booking.Principal{SubjectID: id, Role: authz.RoleTrainer}
}

// AdminPrincipal returns an admin-role principal for the given subject.
func AdminPrincipal(id string) booking.Principal {
	return booking.Principal{SubjectID: id, Role: authz.RoleAdmin}
}

// MemberPrincipal returns a member-role principal for the given subject.
func MemberPrincipal(id string) booking.Principal {
	return booking.Principal{SubjectID: id, Role: authz.RoleMember}
}
