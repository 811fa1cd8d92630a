package interval

import (
	"sort"
	"sync"
	"time"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// merely touch at a boundary (one ends exactly when the other starts) do not
// overlap, so back-to-back sessions are permitted.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// IsValid reports whether the span covers a positive duration.
func (s Span) IsValid() bool {
	return !s.Start.IsZero() && !s.End.IsZero() && s.Start.Before(s.End)
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Entry associates a booked span with the session that owns it.
type Entry struct {
	SessionID string
	Span      Span
}

// Index maintains per-owner ordered sets of booked intervals. The same
// structure serves trainers (owner = trainer id) and members (owner = member
// id); only intervals belonging to non-cancelled sessions are present.
//
// Entries are kept sorted by start time so overlap queries cost
// O(log n + k) per owner rather than a scan over every booked interval.
type Index struct {
	mu     sync.RWMutex
	owners map[string][]Entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{owners: make(map[string][]Entry)}
}

// Insert records a span for the given owner and session. An existing entry
// for the same session is replaced, which makes re-indexing after a schedule
// change a single call.
func (ix *Index) Insert(ownerID, sessionID string, span Span) {
	if ownerID == "" || sessionID == "" {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := removeSession(ix.owners[ownerID], sessionID)
	at := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Span.Start.Before(span.Start)
	})

	entries = append(entries, Entry{})
	copy(entries[at+1:], entries[at:])
	entries[at] = Entry{SessionID: sessionID, Span: span}
	ix.owners[ownerID] = entries
}

// Remove drops the entry for the given session from the owner's set.
func (ix *Index) Remove(ownerID, sessionID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := removeSession(ix.owners[ownerID], sessionID)
	if len(entries) == 0 {
		delete(ix.owners, ownerID)
		return
	}
	ix.owners[ownerID] = entries
}

// Intervals returns the owner's booked entries ordered by start time.
func (ix *Index) Intervals(ownerID string) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.owners[ownerID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Overlapping returns the owner's entries whose spans overlap the candidate,
// ordered by start time. The excludeSessionID lets an in-place edit ignore the
// session's own prior interval.
func (ix *Index) Overlapping(ownerID string, span Span, excludeSessionID string) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.owners[ownerID]
	if len(entries) == 0 {
		return nil
	}

	// Committed intervals for one owner never overlap each other, so the
	// entries are ordered by end time as well as start time. Binary search
	// both bounds: the first entry ending after the candidate starts, and the
	// first entry starting at or after the candidate ends.
	low := sort.Search(len(entries), func(i int) bool {
		return entries[i].Span.End.After(span.Start)
	})
	limit := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Span.Start.Before(span.End)
	})
	if low > limit {
		low = limit
	}

	var out []Entry
	for _, entry := range entries[low:limit] {
		if entry.SessionID == excludeSessionID {
			continue
		}
		if entry.Span.Overlaps(span) {
			out = append(out, entry)
		}
	}
	return out
}

func removeSession(entries []Entry, sessionID string) []Entry {
	for i, entry := range entries {
		if entry.SessionID == sessionID {
			out := make([]Entry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...)
		}
	}
	return entries
}
