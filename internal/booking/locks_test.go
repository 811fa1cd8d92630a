package booking

import (
	"sync"
	"testing"
	"time"
)

func TestOwnerLocksSerializeSameOwner(t *testing.T) {
	t.Parallel()

	locks := newOwnerLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("trainer-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 16 {
		t.Fatalf("expected 16 serialized increments, got %d", counter)
	}
}

func TestOwnerLocksLockAllOverlappingBatches(t *testing.T) {
	t.Parallel()

	locks := newOwnerLocks()

	// Batches declared in opposite order must not deadlock: LockAll sorts
	// before acquiring.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unlock := locks.LockAll([]string{"trainer-1", "member-1"})
				defer unlock()
			}()
			go func() {
				defer wg.Done()
				unlock := locks.LockAll([]string{"member-1", "trainer-2", "trainer-1"})
				defer unlock()
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("overlapping lock batches deadlocked")
	}
}

func TestOwnerLocksLockAllDeduplicates(t *testing.T) {
	t.Parallel()

	locks := newOwnerLocks()

	// Repeated and blank ids collapse; a batch never self-deadlocks.
	unlock := locks.LockAll([]string{"member-1", "member-1", "", "trainer-1"})
	unlock()

	unlock = locks.Lock("member-1")
	unlock()
}
