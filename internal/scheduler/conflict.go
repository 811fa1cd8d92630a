package scheduler

import (
	"sort"

	"github.com/example/gym-scheduler/internal/interval"
)

// TrainerConflict reports the outcome of a trainer double-booking check.
type TrainerConflict struct {
	Conflict bool
	// Sessions lists the colliding session ids ordered by start time so
	// callers can surface every collision, not just the first.
	Sessions []string
}

// MemberConflict names a member who already holds a confirmed booking in an
// interval overlapping the candidate, together with the session that booking
// belongs to.
type MemberConflict struct {
	MemberID  string
	SessionID string
}

// Detector answers overlap questions against the interval indexes. It is the
// single place the overlap semantics are applied: two half-open intervals
// [s1,e1) and [s2,e2) conflict iff s1 < e2 && s2 < e1, so sessions that share
// a boundary endpoint do not conflict.
type Detector struct {
	trainers *interval.Index
	members  *interval.Index
}

// NewDetector wires the detector to the trainer and member interval indexes.
func NewDetector(trainers, members *interval.Index) *Detector {
	return &Detector{trainers: trainers, members: members}
}

// CheckTrainerConflict reports whether the proposed span overlaps any active
// session of the trainer. excludeSessionID lets an in-place edit ignore the
// session's own prior interval; pass "" when creating.
func (d *Detector) CheckTrainerConflict(trainerID string, span interval.Span, excludeSessionID string) TrainerConflict {
	if d == nil || d.trainers == nil || trainerID == "" {
		return TrainerConflict{}
	}

	overlapping := d.trainers.Overlapping(trainerID, span, excludeSessionID)
	if len(overlapping) == 0 {
		return TrainerConflict{}
	}

	sessions := make([]string, 0, len(overlapping))
	for _, entry := range overlapping {
		sessions = append(sessions, entry.SessionID)
	}
	return TrainerConflict{Conflict: true, Sessions: sessions}
}

// CheckMemberConflicts checks every requested member against their confirmed
// bookings elsewhere and returns all collisions, ordered by member id. An
// empty result means the whole roster is free for the span.
func (d *Detector) CheckMemberConflicts(memberIDs []string, span interval.Span, excludeSessionID string) []MemberConflict {
	if d == nil || d.members == nil || len(memberIDs) == 0 {
		return nil
	}

	var conflicts []MemberConflict
	seen := make(map[string]struct{}, len(memberIDs))
	for _, memberID := range memberIDs {
		if memberID == "" {
			continue
		}
		if _, dup := seen[memberID]; dup {
			continue
		}
		seen[memberID] = struct{}{}

		for _, entry := range d.members.Overlapping(memberID, span, excludeSessionID) {
			conflicts = append(conflicts, MemberConflict{MemberID: memberID, SessionID: entry.SessionID})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].MemberID == conflicts[j].MemberID {
			return conflicts[i].SessionID < conflicts[j].SessionID
		}
		return conflicts[i].MemberID < conflicts[j].MemberID
	})
	return conflicts
}
