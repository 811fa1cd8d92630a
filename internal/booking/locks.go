package booking

import (
	"sort"
	"sync"
)

// ownerLocks provides per-owner mutual exclusion held across the
// check-then-commit window. Owners are trainer ids and member ids: a booking
// attempt locks its trainer and every rostered member, so attempts touching
// the same trainer or the same member serialize while unrelated attempts
// never contend with each other.
type ownerLocks struct {
	mu   sync.Mutex
	held map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{held: make(map[string]*ownerLock)}
}

// Lock acquires the lock for one owner and returns the release function.
func (l *ownerLocks) Lock(ownerID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.held[ownerID]
	if !ok {
		entry = &ownerLock{}
		l.held[ownerID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, ownerID)
		}
		l.mu.Unlock()
	}
}

// LockAll acquires the locks for every distinct owner in ascending id order,
// so overlapping lock sets taken by concurrent attempts cannot deadlock. The
// returned function releases them in reverse order.
func (l *ownerLocks) LockAll(ownerIDs []string) (unlock func()) {
	distinct := make([]string, 0, len(ownerIDs))
	seen := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	sort.Strings(distinct)

	unlocks := make([]func(), 0, len(distinct))
	for _, id := range distinct {
		unlocks = append(unlocks, l.Lock(id))
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
