package display

import (
	"sync"
	"time"
)

// frameBuckets is the number of frame-latency histogram buckets:
// 1..7 refresh periods, plus one overflow bucket.
const frameBuckets = 8

// Stats collects per-display timing diagnostics. All values are
// informational; nothing in the composition path reads them back for
// scheduling decisions.
type Stats struct {
	mu sync.Mutex

	// LastVsync is the most recent model vsync timestamp.
	LastVsync time.Time

	// VsyncPeriod is the modeled refresh period.
	VsyncPeriod time.Duration

	frames    uint64
	missed    uint64
	buckets   [frameBuckets]uint64
	lastSwap  time.Time
	totalTime time.Duration
}

// StatsSnapshot is a copyable view of Stats.
type StatsSnapshot struct {
	LastVsync   time.Time
	VsyncPeriod time.Duration
	Frames      uint64
	Missed      uint64
	Buckets     [frameBuckets]uint64
}

// RecordVsync updates the vsync model values.
func (s *Stats) RecordVsync(ts time.Time, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastVsync = ts
	s.VsyncPeriod = period
}

// RecordFrame accounts one presented frame. The elapsed time since the
// previous frame is bucketed in refresh periods.
func (s *Stats) RecordFrame(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if !s.lastSwap.IsZero() && s.VsyncPeriod > 0 {
		elapsed := now.Sub(s.lastSwap)
		s.totalTime += elapsed
		bucket := int(elapsed / s.VsyncPeriod)
		if bucket < 1 {
			bucket = 1
		}
		if bucket > frameBuckets {
			bucket = frameBuckets
		}
		s.buckets[bucket-1]++
	}
	s.lastSwap = now
}

// RecordMissed accounts a frame that missed its deadline.
func (s *Stats) RecordMissed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missed++
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		LastVsync:   s.LastVsync,
		VsyncPeriod: s.VsyncPeriod,
		Frames:      s.frames,
		Missed:      s.missed,
		Buckets:     s.buckets,
	}
}
