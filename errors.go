// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidHandle marks an operation referencing an unknown or
	// already-removed layer handle.
	ErrInvalidHandle = errors.New("compose: invalid layer handle")

	// ErrInvalidDisplay marks an operation referencing an unknown or
	// not-yet-committed display token.
	ErrInvalidDisplay = errors.New("compose: invalid display token")

	// ErrNotRunning is returned by operations that need the dispatch
	// loop when the engine is stopped.
	ErrNotRunning = errors.New("compose: engine not running")
)

// ValidationError rejects a single transaction entry. The rest of the
// transaction still applies; partial failure is per-target, not
// all-or-nothing.
type ValidationError struct {
	// Op names the rejected operation.
	Op string

	// Target is the offending handle or token value.
	Target uint64

	// Err is the underlying sentinel.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("compose: %s: target %d: %v", e.Op, e.Target, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LayerCapError rejects layer creation once the hard cap is reached.
// Existing state is untouched; this is a rejection, not a crash.
type LayerCapError struct {
	// Max is the configured layer cap.
	Max int
}

func (e *LayerCapError) Error() string {
	return fmt.Sprintf("compose: layer cap reached (%d layers)", e.Max)
}

// ProtocolError rejects a call from a caller the host's permission
// check refused. No state is mutated.
type ProtocolError struct {
	// Op names the rejected operation.
	Op string

	// Err is the host check's error.
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("compose: %s: caller not permitted: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
