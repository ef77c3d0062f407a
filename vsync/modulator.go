package vsync

import (
	"sync"
	"time"
)

// OffsetSetter receives phase-offset changes from the Modulator.
// *Source implements it.
type OffsetSetter interface {
	SetPhaseOffset(time.Duration)
}

// Modulator switches the scheduling phase between two offsets: the
// default offset tuned for low latency under normal load, and an
// "early" offset used while an urgent transaction (an interaction-
// triggered animation start) is in flight.
//
// Transition rules: switching to early happens immediately on an
// urgent transaction and never skips a pending commit (the offset only
// changes wake times, never consumes work). Switching back to the
// default offset is deferred until the urgent transaction has been
// handled and at least one frame has been composited at the early
// phase, which prevents offset oscillation.
type Modulator struct {
	mu sync.Mutex

	defaultOffset time.Duration
	earlyOffset   time.Duration
	setter        OffsetSetter

	early              bool
	transactionPending bool
	framesAtEarly      int
}

// NewModulator creates a modulator applying offsets to setter.
// The default offset is applied immediately.
func NewModulator(defaultOffset, earlyOffset time.Duration, setter OffsetSetter) *Modulator {
	m := &Modulator{
		defaultOffset: defaultOffset,
		earlyOffset:   earlyOffset,
		setter:        setter,
	}
	setter.SetPhaseOffset(defaultOffset)
	return m
}

// TransactionStart records an incoming transaction. An urgent
// transaction switches to the early offset.
func (m *Modulator) TransactionStart(urgent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !urgent {
		return
	}
	m.transactionPending = true
	if !m.early {
		m.early = true
		m.framesAtEarly = 0
		m.setter.SetPhaseOffset(m.earlyOffset)
	}
}

// TransactionHandled records that the dispatch loop committed the
// pending transactions.
func (m *Modulator) TransactionHandled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactionPending = false
}

// Refreshed records a composited frame. Once one frame has been
// composited at the early phase and no urgent transaction is pending,
// the default offset is restored.
func (m *Modulator) Refreshed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.early {
		return
	}
	m.framesAtEarly++
	if m.framesAtEarly >= 1 && !m.transactionPending {
		m.early = false
		m.setter.SetPhaseOffset(m.defaultOffset)
	}
}

// Offset returns the currently selected phase offset.
func (m *Modulator) Offset() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.early {
		return m.earlyOffset
	}
	return m.defaultOffset
}

// IsEarly reports whether the early offset is active.
func (m *Modulator) IsEarly() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.early
}
