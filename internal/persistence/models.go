package persistence

import "time"

// User is an account in the member/trainer directory. The Role column holds
// one of the engine's closed role names.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted training session row.
type Session struct {
	ID                  string
	TrainerID           string
	Start               time.Time
	End                 time.Time
	Location            string
	MaxParticipants     int
	CurrentParticipants int
	Notes               string
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Booking is a persisted member claim on a session seat.
type Booking struct {
	SessionID string
	MemberID  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthSession is a persisted authentication session issued to a user.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
