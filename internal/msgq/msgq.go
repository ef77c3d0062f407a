// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package msgq provides the coalescing signal queue the dispatch loop
// blocks on. Signals are bits, not messages: posting the same signal
// twice before the loop wakes delivers it once.
package msgq

import (
	"sync"
)

// Signal identifies one kind of wakeup. Signals are independent bits
// and may be posted and drained together.
type Signal uint32

const (
	// SignalTransaction asks the loop to commit pending state changes.
	SignalTransaction Signal = 1 << iota
	// SignalInvalidate asks the loop to run a vsync-driven commit and
	// latch pass.
	SignalInvalidate
	// SignalRefresh asks the loop to composite immediately.
	SignalRefresh
	// SignalQuit asks the loop to exit.
	SignalQuit
)

// Queue coalesces posted signals and wakes a single waiter.
type Queue struct {
	mu      sync.Mutex
	pending Signal
	wake    chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Post adds the given signals to the pending set and wakes the waiter.
func (q *Queue) Post(s Signal) {
	q.mu.Lock()
	q.pending |= s
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until at least one signal is pending, then drains and
// returns the whole pending set.
func (q *Queue) Wait() Signal {
	for {
		q.mu.Lock()
		s := q.pending
		q.pending = 0
		q.mu.Unlock()
		if s != 0 {
			return s
		}
		<-q.wake
	}
}

// Pending returns the pending set without draining it.
func (q *Queue) Pending() Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
