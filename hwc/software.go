// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/fence"
	"github.com/gogpu/compose/logx"
)

// Software is a pure-software Composer. It generates vsync callbacks
// from a timer per display and owns no overlay planes, so validation
// normally downgrades every layer to client composition. MaxOverlays
// and ForceClient let tests shape its behavior.
type Software struct {
	mu sync.Mutex

	cb  Callbacks
	seq int32

	displays map[uint64]*softDisplay

	// MaxOverlays is how many device-composition layers validation
	// accepts per display, counted from the front of the offered list.
	MaxOverlays int

	// ForceClient, when set, downgrades every layer regardless of
	// MaxOverlays.
	ForceClient bool

	presented uint64
}

type softDisplay struct {
	configs      []display.Config
	active       int
	power        display.PowerMode
	vsyncEnabled bool
	stopVsync    chan struct{}
	lastTarget   *image.RGBA
}

// NewSoftware creates a composer with no displays connected.
func NewSoftware() *Software {
	return &Software{displays: make(map[uint64]*softDisplay)}
}

// RegisterCallbacks implements Composer. Hotplug is replayed for every
// display already connected, in id order not guaranteed.
func (s *Software) RegisterCallbacks(cb Callbacks, seq int32) {
	s.mu.Lock()
	s.cb = cb
	s.seq = seq
	ids := make([]uint64, 0, len(s.displays))
	for id := range s.displays {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		cb.OnHotplug(seq, id, true)
	}
}

// Plug connects a simulated display and fires the hotplug callback.
func (s *Software) Plug(hwcID uint64, configs []display.Config) {
	s.mu.Lock()
	if _, ok := s.displays[hwcID]; ok {
		s.mu.Unlock()
		return
	}
	s.displays[hwcID] = &softDisplay{
		configs: configs,
		power:   display.PowerModeOff,
	}
	cb, seq := s.cb, s.seq
	s.mu.Unlock()

	if cb != nil {
		cb.OnHotplug(seq, hwcID, true)
	}
}

// Unplug disconnects a simulated display and fires the hotplug
// callback.
func (s *Software) Unplug(hwcID uint64) {
	s.mu.Lock()
	d, ok := s.displays[hwcID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if d.stopVsync != nil {
		close(d.stopVsync)
	}
	delete(s.displays, hwcID)
	cb, seq := s.cb, s.seq
	s.mu.Unlock()

	if cb != nil {
		cb.OnHotplug(seq, hwcID, false)
	}
}

// Configs implements Composer.
func (s *Software) Configs(hwcID uint64) ([]display.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.displays[hwcID]
	if !ok {
		return nil, fmt.Errorf("hwc: no display %d", hwcID)
	}
	out := make([]display.Config, len(d.configs))
	copy(out, d.configs)
	return out, nil
}

// SetVsyncEnabled implements Composer. Enabled vsync runs a ticker at
// the active config's refresh period, delivering OnVsync callbacks.
func (s *Software) SetVsyncEnabled(hwcID uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.displays[hwcID]
	if !ok {
		return fmt.Errorf("hwc: no display %d", hwcID)
	}
	if enabled == d.vsyncEnabled {
		return nil
	}
	d.vsyncEnabled = enabled
	if enabled {
		stop := make(chan struct{})
		d.stopVsync = stop
		period := d.configs[d.active].RefreshPeriod
		go s.vsyncLoop(hwcID, period, stop)
	} else if d.stopVsync != nil {
		close(d.stopVsync)
		d.stopVsync = nil
	}
	return nil
}

func (s *Software) vsyncLoop(hwcID uint64, period time.Duration, stop chan struct{}) {
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case ts := <-tick.C:
			s.mu.Lock()
			cb, seq := s.cb, s.seq
			s.mu.Unlock()
			if cb != nil {
				cb.OnVsync(seq, hwcID, ts)
			}
		}
	}
}

// SetPowerMode implements Composer. Powering off stops vsync delivery.
func (s *Software) SetPowerMode(hwcID uint64, mode display.PowerMode) error {
	s.mu.Lock()
	d, ok := s.displays[hwcID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("hwc: no display %d", hwcID)
	}
	d.power = mode
	stopNeeded := mode == display.PowerModeOff && d.vsyncEnabled
	s.mu.Unlock()

	if stopNeeded {
		return s.SetVsyncEnabled(hwcID, false)
	}
	return nil
}

// ValidateDisplay implements Composer.
func (s *Software) ValidateDisplay(hwcID uint64, layers []Layer) ([]CompositionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.displays[hwcID]; !ok {
		return nil, fmt.Errorf("hwc: no display %d", hwcID)
	}
	types := make([]CompositionType, len(layers))
	overlays := 0
	for i, l := range layers {
		if s.ForceClient || l.Requested != CompositionDevice || overlays >= s.MaxOverlays {
			types[i] = CompositionClient
			continue
		}
		types[i] = CompositionDevice
		overlays++
	}
	return types, nil
}

// PresentDisplay implements Composer. The target is retained for
// inspection and the present fence signals immediately.
func (s *Software) PresentDisplay(hwcID uint64, target *image.RGBA) (*fence.Fence, error) {
	s.mu.Lock()
	d, ok := s.displays[hwcID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("hwc: no display %d", hwcID)
	}
	if d.power == display.PowerModeOff {
		s.mu.Unlock()
		return nil, fmt.Errorf("hwc: display %d is powered off", hwcID)
	}
	d.lastTarget = target
	s.presented++
	n := s.presented
	s.mu.Unlock()

	logx.Logger().Debug("hwc: presented frame", "display", hwcID, "frame", n)
	return fence.Signaled(time.Now()), nil
}

// LastTarget returns the most recently presented target for a display,
// or nil. Test helper.
func (s *Software) LastTarget(hwcID uint64) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.displays[hwcID]; ok {
		return d.lastTarget
	}
	return nil
}

// PresentCount returns how many frames have been presented across all
// displays. Test helper.
func (s *Software) PresentCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}
