package vsync

import (
	"sync"
	"time"

	"github.com/gogpu/compose/logx"
)

// Callback is invoked for each delivered tick with the model vsync
// timestamp the tick derives from. It runs on the source's goroutine
// and must not block.
type Callback func(vsyncTime time.Time)

// Source delivers vsync-derived wakeups. A tick fires at
// vsyncTimestamp + phaseOffset, where the offset may be negative (wake
// before the hardware pulse) or positive. Ticks are delivered only
// while requested, so an idle engine sleeps indefinitely.
//
// If the hardware stops reporting vsync pulses, the DispSync model
// keeps coasting at the last known period; the source notices the
// staleness (no sample within 2x the period while hardware vsync is
// expected) and logs the software-timed fallback once. This is a
// recovered fault, not a fatal one.
type Source struct {
	ds *DispSync
	cb Callback

	mu        sync.Mutex
	offset    time.Duration
	requested bool
	hwLive    bool // hardware vsync pulses currently enabled, samples expected
	fallback  bool // currently on software-timed pulses

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewSource creates a stopped source over the given model.
func NewSource(ds *DispSync, cb Callback) *Source {
	return &Source{
		ds:   ds,
		cb:   cb,
		wake: make(chan struct{}, 1),
	}
}

// Start launches the tick loop. A stopped source may be started again.
func (s *Source) Start() {
	s.mu.Lock()
	quit := make(chan struct{})
	done := make(chan struct{})
	s.quit = quit
	s.done = done
	s.mu.Unlock()
	go s.loop(quit, done)
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Source) Stop() {
	s.mu.Lock()
	quit, done := s.quit, s.done
	s.mu.Unlock()
	close(quit)
	<-done
}

// SetPhaseOffset changes the phase offset. Takes effect for the next
// wake computation; a sleeping loop is woken to recompute.
func (s *Source) SetPhaseOffset(off time.Duration) {
	s.mu.Lock()
	s.offset = off
	s.mu.Unlock()
	s.notify()
}

// PhaseOffset returns the current phase offset.
func (s *Source) PhaseOffset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// RequestNextVsync asks for one tick at the next vsync boundary.
// Requests are idempotent until the tick fires.
func (s *Source) RequestNextVsync() {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()
	s.notify()
}

// SetHardwareLive tells the source whether hardware vsync pulses are
// currently enabled, gating the staleness check. While the model coasts
// with hardware vsync turned off, software-timed ticks are the normal
// mode and must not be flagged as a fallback.
func (s *Source) SetHardwareLive(live bool) {
	s.mu.Lock()
	s.hwLive = live
	if !live {
		s.fallback = false
	}
	s.mu.Unlock()
}

// HardwareLive reports whether hardware vsync pulses are currently
// expected.
func (s *Source) HardwareLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hwLive
}

// InFallback reports whether ticks are currently software-timed due to
// missing hardware pulses.
func (s *Source) InFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

func (s *Source) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Source) loop(quit, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		s.mu.Lock()
		requested := s.requested
		offset := s.offset
		s.mu.Unlock()

		if !requested {
			select {
			case <-quit:
				return
			case <-s.wake:
				continue
			}
		}

		now := time.Now()
		vsyncTime := s.ds.NextTickAfter(now)
		wakeAt := vsyncTime.Add(offset)
		for !wakeAt.After(now) {
			vsyncTime = vsyncTime.Add(s.ds.Period())
			wakeAt = vsyncTime.Add(offset)
		}

		timer.Reset(time.Until(wakeAt))
		select {
		case <-quit:
			timer.Stop()
			return
		case <-s.wake:
			// Offset or request changed; recompute the wake time.
			if !timer.Stop() {
				<-timer.C
			}
			continue
		case <-timer.C:
		}

		s.checkStaleness(vsyncTime)

		s.mu.Lock()
		s.requested = false
		s.mu.Unlock()
		s.cb(vsyncTime)
	}
}

// checkStaleness flags the software fallback when hardware samples
// stopped arriving while hardware vsync is supposed to be live.
func (s *Source) checkStaleness(now time.Time) {
	last := s.ds.LastSampleTime()
	period := s.ds.Period()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hwLive || last.IsZero() || period <= 0 {
		return
	}
	stale := now.Sub(last) > 2*period
	if stale && !s.fallback {
		s.fallback = true
		logx.Logger().Warn("vsync: no hardware pulse within 2x period, using software-timed pulses",
			"period", period, "last_sample", last)
	} else if !stale && s.fallback {
		s.fallback = false
		logx.Logger().Info("vsync: hardware pulses resumed")
	}
}
