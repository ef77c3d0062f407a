package compose

import (
	"sync"
	"testing"
	"time"
)

func TestFlagRegisterSetReturnsPrevious(t *testing.T) {
	r := newFlagRegister()
	if prev := r.set(eTransactionNeeded); prev != 0 {
		t.Errorf("first set returned %b, want 0", prev)
	}
	if prev := r.set(eTraversalNeeded); prev != eTransactionNeeded {
		t.Errorf("second set returned %b, want %b", prev, eTransactionNeeded)
	}
	if got := r.get(); got != eTransactionNeeded|eTraversalNeeded {
		t.Errorf("flags = %b, want both bits", got)
	}
}

func TestFlagRegisterGetAndClearIsMasked(t *testing.T) {
	r := newFlagRegister()
	r.set(eTransactionNeeded | eDisplayTransactionNeeded)

	taken := r.getAndClear(eTransactionNeeded | eTraversalNeeded)
	if taken != eTransactionNeeded {
		t.Errorf("taken = %b, want %b", taken, eTransactionNeeded)
	}
	if got := r.get(); got != eDisplayTransactionNeeded {
		t.Errorf("remaining = %b, want %b", got, eDisplayTransactionNeeded)
	}
	if again := r.getAndClear(eTransactionNeeded); again != 0 {
		t.Errorf("second take = %b, want 0", again)
	}
}

func TestWaitCommitObservesNotify(t *testing.T) {
	r := newFlagRegister()
	gen := r.generation()

	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		defer wg.Done()
		ok = r.waitCommit(gen, 2*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	r.notifyCommit()
	wg.Wait()
	if !ok {
		t.Fatal("waitCommit timed out despite notifyCommit")
	}
	if r.generation() != gen+1 {
		t.Errorf("generation = %d, want %d", r.generation(), gen+1)
	}
}

func TestWaitCommitPastGenerationReturnsImmediately(t *testing.T) {
	r := newFlagRegister()
	r.notifyCommit()
	if !r.waitCommit(0, time.Millisecond) {
		t.Error("waitCommit for an already-passed generation should succeed")
	}
}

func TestWaitCommitTimesOut(t *testing.T) {
	r := newFlagRegister()
	start := time.Now()
	if r.waitCommit(r.generation(), 20*time.Millisecond) {
		t.Fatal("waitCommit succeeded with no commit")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, want roughly the requested 20ms", elapsed)
	}
}

func TestFlagRegisterConcurrentSetters(t *testing.T) {
	r := newFlagRegister()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.set(eTransactionNeeded)
			r.set(eTraversalNeeded)
		}()
	}
	wg.Wait()
	if got := r.getAndClear(eTransactionNeeded | eTraversalNeeded); got != eTransactionNeeded|eTraversalNeeded {
		t.Errorf("flags = %b after concurrent sets, want both bits", got)
	}
}
