// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vsync models the display's refresh cadence and schedules the
// engine's vsync-derived wakeups.
//
// DispSync maintains a software model (base timestamp + period) of the
// hardware vsync from resync samples, rejecting jittered samples.
// Source turns the model into ticks at a configurable phase offset, and
// Modulator switches that offset between a default and a high-urgency
// "early" value.
package vsync

import (
	"sync"
	"time"

	"github.com/gogpu/compose/fence"
)

const (
	// minResyncSamples is how many accepted hardware samples are needed
	// before the model is considered locked.
	minResyncSamples = 3

	// maxResyncSamples bounds the sample window.
	maxResyncSamples = 32
)

// outlierFraction rejects a sample whose implied period deviates from
// the current estimate by more than this fraction.
const outlierFraction = 0.25

// presentErrorFraction is the tolerated present-fence phase error,
// as a fraction of the period, before a resync is requested.
const presentErrorFraction = 0.25

// DispSync is the software vsync model. All methods are safe for
// concurrent use; hardware callbacks feed samples from their own
// context while the dispatch loop queries the model.
type DispSync struct {
	mu sync.Mutex

	period     time.Duration
	base       time.Time // timestamp of the last accepted sample
	samples    []time.Time
	locked     bool
	lastSample time.Time
}

// NewDispSync creates a model seeded with a nominal period. The model
// starts unlocked; it coasts on the nominal period until hardware
// samples arrive.
func NewDispSync(nominalPeriod time.Duration) *DispSync {
	now := time.Now()
	return &DispSync{
		period: nominalPeriod,
		base:   now,
	}
}

// Period returns the modeled refresh period.
func (d *DispSync) Period() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period
}

// BeginResync clears the sample window and unlocks the model.
func (d *DispSync) BeginResync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = d.samples[:0]
	d.locked = false
}

// AddResyncSample feeds one hardware vsync timestamp. Returns true
// while more samples are needed (hardware vsync should stay enabled)
// and false once the model is locked.
func (d *DispSync) AddResyncSample(ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSample = ts

	if n := len(d.samples); n > 0 {
		delta := ts.Sub(d.samples[n-1])
		if delta <= 0 {
			// Out-of-order timestamp; ignore the sample entirely.
			return !d.locked
		}
		// Reject jittered samples instead of folding them into the
		// estimate; the base still advances so the phase stays fresh.
		dev := float64(delta-d.period) / float64(d.period)
		if dev > outlierFraction || dev < -outlierFraction {
			d.base = ts
			d.samples = d.samples[:0]
			d.samples = append(d.samples, ts)
			d.locked = false
			return true
		}
	}

	d.samples = append(d.samples, ts)
	if len(d.samples) > maxResyncSamples {
		d.samples = d.samples[1:]
	}
	d.base = ts

	if len(d.samples) >= minResyncSamples {
		first := d.samples[0]
		span := ts.Sub(first)
		d.period = span / time.Duration(len(d.samples)-1)
		d.locked = true
	}
	return !d.locked
}

// EndResync marks the end of a resync burst.
func (d *DispSync) EndResync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = d.samples[:0]
}

// AddPresentFence feeds a present fence back into the model. Returns
// true when the fence's signal time has drifted off the model far
// enough that a hardware resync is needed. Unsignaled fences are
// ignored.
func (d *DispSync) AddPresentFence(f *fence.Fence) bool {
	if f == nil {
		return false
	}
	at, ok := f.SignaledAt()
	if !ok || at.IsZero() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.period <= 0 {
		return false
	}
	// Phase error of the present time against the model grid.
	off := at.Sub(d.base) % d.period
	if off > d.period/2 {
		off -= d.period
	}
	if off < 0 {
		off = -off
	}
	if float64(off) > presentErrorFraction*float64(d.period) {
		d.locked = false
		return true
	}
	return false
}

// Locked reports whether the model has locked onto hardware samples.
func (d *DispSync) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// LastSampleTime returns the timestamp of the most recent hardware
// sample, or the zero time if none arrived yet.
func (d *DispSync) LastSampleTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSample
}

// NextTickAfter returns the first model vsync strictly after t. The
// model's tick grid extends in both directions from the base sample, so
// times before the base still land on the nearest grid point after t.
func (d *DispSync) NextTickAfter(t time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.period <= 0 {
		return t
	}
	n := t.Sub(d.base) / d.period
	tick := d.base.Add(n * d.period)
	if !tick.After(t) {
		tick = tick.Add(d.period)
	}
	return tick
}
