// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fence provides one-shot synchronization fences.
//
// A Fence represents work that completes at most once: a frame being
// scanned out by the display, or a renderer finishing client composition.
// Producers signal the fence with a timestamp; consumers wait on it with
// a timeout. Fences are safe for concurrent use.
package fence

import (
	"errors"
	"sync"
	"time"
)

// ErrTimedOut is returned by Wait when the fence does not signal within
// the given timeout.
var ErrTimedOut = errors.New("fence: wait timed out")

// Fence is a one-shot synchronization primitive carrying a signal
// timestamp. The zero value is not usable; create fences with New.
type Fence struct {
	mu       sync.Mutex
	done     chan struct{}
	signaled bool
	at       time.Time
}

// New creates an unsignaled fence.
func New() *Fence {
	return &Fence{done: make(chan struct{})}
}

// Signaled creates a fence that is already signaled at the given time.
func Signaled(at time.Time) *Fence {
	f := New()
	f.Signal(at)
	return f
}

// NoFence is a placeholder fence that is always signaled with a zero
// timestamp. Use it where a fence is required but no real synchronization
// takes place (e.g. a dropped frame).
var NoFence = Signaled(time.Time{})

// Signal marks the fence as signaled at time t. Signaling an already
// signaled fence is a no-op; the first timestamp wins.
func (f *Fence) Signal(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return
	}
	f.signaled = true
	f.at = t
	close(f.done)
}

// Wait blocks until the fence signals or the timeout elapses.
// A non-positive timeout waits forever.
func (f *Fence) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-f.done
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-time.After(timeout):
		return ErrTimedOut
	}
}

// SignaledAt reports whether the fence has signaled and, if so, when.
func (f *Fence) SignaledAt() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at, f.signaled
}

// Done returns a channel closed when the fence signals.
// Useful in select statements alongside other events.
func (f *Fence) Done() <-chan struct{} {
	return f.done
}
