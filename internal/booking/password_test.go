package booking_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/gym-scheduler/internal/booking"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := booking.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash encoding: %s", hash)
	}

	if err := booking.VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Fatalf("VerifyPassword with matching password: %v", err)
	}
	if err := booking.VerifyPassword(hash, "wrong password"); !errors.Is(err, booking.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	// Two hashes of the same password differ because the salt is random.
	other, err := booking.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if other == hash {
		t.Fatal("expected unique salts per hash")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plain text", "not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"missing segments", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if err := booking.VerifyPassword(tc.hash, "whatever"); !errors.Is(err, booking.ErrInvalidPasswordHash) {
				t.Fatalf("expected invalid hash error, got %v", err)
			}
		})
	}
}

func TestVerifyPasswordIncompatibleVersion(t *testing.T) {
	t.Parallel()

	hash := "$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	if err := booking.VerifyPassword(hash, "whatever"); !errors.Is(err, booking.ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected incompatible version error, got %v", err)
	}
}
