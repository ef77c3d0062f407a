// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hwc abstracts the hardware composer: the component that owns
// display overlay planes, vsync generation, and frame presentation.
// The engine talks to it through the Composer interface; Software is a
// pure-software stand-in used by tests and headless hosts.
package hwc

import (
	"image"
	"time"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/fence"
)

// CompositionType says who composites a layer for a given frame.
type CompositionType int

const (
	// CompositionClient means the engine renders the layer into the
	// client target itself.
	CompositionClient CompositionType = iota
	// CompositionDevice means the composer places the layer on a
	// hardware overlay plane.
	CompositionDevice
)

func (c CompositionType) String() string {
	switch c {
	case CompositionClient:
		return "client"
	case CompositionDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Layer describes one layer offered to the composer for validation.
type Layer struct {
	// Requested is the composition type the engine would prefer.
	Requested CompositionType
	// Frame is the layer's destination rectangle in display space.
	Frame image.Rectangle
	// Opaque reports whether the layer has no transparency.
	Opaque bool
	// Alpha is the plane-wide alpha in [0, 1].
	Alpha float32
}

// Callbacks receives asynchronous composer events. Every callback
// carries the sequence id the receiver registered with, letting a
// re-registered engine discard events from a stale registration.
// Callbacks may arrive on arbitrary goroutines.
type Callbacks interface {
	OnVsync(seq int32, hwcID uint64, ts time.Time)
	OnHotplug(seq int32, hwcID uint64, connected bool)
	OnRefresh(seq int32, hwcID uint64)
}

// Composer is the engine's view of the hardware composer. Displays are
// identified by their stable hardware id, not by engine tokens.
type Composer interface {
	// RegisterCallbacks installs the event receiver. The sequence id is
	// echoed into every subsequent callback. Registering replaces any
	// previous receiver and replays hotplug for already-connected
	// displays.
	RegisterCallbacks(cb Callbacks, seq int32)

	// Configs returns the display's supported configurations.
	Configs(hwcID uint64) ([]display.Config, error)

	// SetVsyncEnabled turns hardware vsync callbacks on or off for a
	// display. Enabling an already-enabled display is a no-op.
	SetVsyncEnabled(hwcID uint64, enabled bool) error

	// SetPowerMode sets the display's power mode.
	SetPowerMode(hwcID uint64, mode display.PowerMode) error

	// ValidateDisplay asks the composer which layers it will take on
	// overlay planes. The returned slice parallels layers; entries
	// downgraded to CompositionClient must be composited by the engine.
	ValidateDisplay(hwcID uint64, layers []Layer) ([]CompositionType, error)

	// PresentDisplay submits the client-composited target for scanout
	// and returns the present fence, signaled when the frame is on
	// screen.
	PresentDisplay(hwcID uint64, target *image.RGBA) (*fence.Fence, error)
}
