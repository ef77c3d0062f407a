// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"sync"
	"sync/atomic"
	"time"
)

// Transaction register bits. Any client-visible mutation ORs bits in
// under the state lock; the dispatch loop clears them only after the
// corresponding work has reached the drawing state.
type transactionFlags uint32

const (
	eTransactionNeeded transactionFlags = 1 << iota
	eTraversalNeeded
	eDisplayTransactionNeeded
	eDisplayLayerStackChanged
)

// flagRegister is the shared transaction flag register: an atomic
// bitmask plus a commit generation counter with a condition variable
// for synchronous submitters.
type flagRegister struct {
	bits atomic.Uint32

	mu      sync.Mutex
	cond    *sync.Cond
	commits uint64
}

func newFlagRegister() *flagRegister {
	r := &flagRegister{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// set ORs flags in and returns the previous value. A zero previous
// value means the caller should signal the dispatch loop.
func (r *flagRegister) set(f transactionFlags) transactionFlags {
	for {
		old := r.bits.Load()
		if r.bits.CompareAndSwap(old, old|uint32(f)) {
			return transactionFlags(old)
		}
	}
}

// get returns the flags currently set without clearing them.
func (r *flagRegister) get() transactionFlags {
	return transactionFlags(r.bits.Load())
}

// getAndClear atomically takes the intersection with mask out of the
// register and returns it.
func (r *flagRegister) getAndClear(mask transactionFlags) transactionFlags {
	for {
		old := r.bits.Load()
		taken := transactionFlags(old) & mask
		if r.bits.CompareAndSwap(old, old&^uint32(taken)) {
			return taken
		}
	}
}

// generation returns the current commit count. A synchronous submitter
// samples it before submitting and waits for it to advance.
func (r *flagRegister) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// notifyCommit advances the commit generation and wakes all waiters.
// Called by the dispatch loop after a commit reaches the drawing state.
func (r *flagRegister) notifyCommit() {
	r.mu.Lock()
	r.commits++
	r.mu.Unlock()
	r.cond.Broadcast()
}

// waitCommit blocks until the commit generation passes gen or the
// timeout expires, reporting whether the commit was observed.
func (r *flagRegister) waitCommit(gen uint64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	// sync.Cond has no timed wait; a timer broadcast bounds the sleep.
	t := time.AfterFunc(timeout, r.cond.Broadcast)
	defer t.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.commits <= gen {
		if !time.Now().Before(deadline) {
			return false
		}
		r.cond.Wait()
	}
	return true
}
