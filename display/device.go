// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display models physical and virtual display outputs: their
// configurations, power state, and the token registry that maps opaque
// display identifiers to live devices.
//
// Ownership rules mirror the engine's threading model: DeviceState is
// plain transaction-visible state carried inside the scene states, while
// Device is the live output object written only by the engine's dispatch
// goroutine.
package display

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/compose/region"
)

// Token is an opaque identifier for a display. Tokens are allocated by
// the Registry and remain unique for the lifetime of the process; a
// reconnected display gets a fresh token.
type Token uint64

// InvalidToken is never allocated to a display.
const InvalidToken Token = 0

// PowerMode is a display power state.
type PowerMode int

// Power modes, in increasing order of activity.
const (
	PowerModeOff PowerMode = iota
	PowerModeDoze
	PowerModeOn
)

// String returns the power mode name.
func (m PowerMode) String() string {
	switch m {
	case PowerModeOff:
		return "Off"
	case PowerModeDoze:
		return "Doze"
	case PowerModeOn:
		return "On"
	default:
		return "Unknown"
	}
}

// ColorMode selects the display's color interpretation.
type ColorMode int

// Color modes.
const (
	ColorModeNative ColorMode = iota
	ColorModeSRGB
	ColorModeDisplayP3
)

// Config is one selectable display configuration.
type Config struct {
	// Width and Height are the active resolution in pixels.
	Width  int
	Height int

	// RefreshPeriod is the time between hardware vsync pulses.
	RefreshPeriod time.Duration
}

// Bounds returns the configuration's pixel rectangle.
func (c Config) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// DeviceState is the transaction-visible description of a display. It
// lives in the scene states' display tables and is copied wholesale at
// commit time.
type DeviceState struct {
	// Name is a human-readable display name.
	Name string

	// LayerStack selects which layers this display composites. Layers
	// whose LayerStack matches are candidates for this display.
	LayerStack uint32

	// Viewport is the source rectangle in layer-stack space.
	Viewport image.Rectangle

	// Frame is the destination rectangle on the display.
	Frame image.Rectangle

	// Orientation is the rotation applied at scanout, in 90° steps.
	Orientation int

	// Virtual marks displays without a hardware counterpart.
	Virtual bool
}

// Device is a live display output. It is created when a display change
// commits and is only mutated from the engine's dispatch goroutine.
type Device struct {
	// Token identifies the device to clients.
	Token Token

	// HWCID is the hardware composer's identifier for this display, or 0
	// for virtual displays.
	HWCID uint64

	// State is the committed DeviceState.
	State DeviceState

	// Configs lists the selectable configurations. Never empty.
	Configs []Config

	// ActiveConfig indexes into Configs.
	ActiveConfig int

	// Power is the current power mode.
	Power PowerMode

	// Color is the active color mode.
	Color ColorMode

	// Dirty accumulates damage since the last composited frame.
	Dirty region.Region

	// Target is the client-composition output buffer for this display.
	// Recreated when the active config's resolution changes.
	Target *image.RGBA

	// Stats carries per-display timing diagnostics.
	Stats Stats
}

// NewDevice creates a powered-off device with the given configs.
// The first config is active.
func NewDevice(token Token, hwcID uint64, state DeviceState, configs []Config) *Device {
	if len(configs) == 0 {
		configs = []Config{{Width: 1, Height: 1, RefreshPeriod: 16666667 * time.Nanosecond}}
	}
	d := &Device{
		Token:   token,
		HWCID:   hwcID,
		State:   state,
		Configs: configs,
		Power:   PowerModeOff,
	}
	d.ensureTarget()
	return d
}

// Config returns the active configuration.
func (d *Device) Config() Config {
	return d.Configs[d.ActiveConfig]
}

// Bounds returns the active configuration's pixel rectangle.
func (d *Device) Bounds() image.Rectangle {
	return d.Config().Bounds()
}

// SetActiveConfig switches the active configuration.
// Returns an error if id is out of range.
func (d *Device) SetActiveConfig(id int) error {
	if id < 0 || id >= len(d.Configs) {
		return fmt.Errorf("display %q: config %d out of range [0,%d)", d.State.Name, id, len(d.Configs))
	}
	d.ActiveConfig = id
	d.ensureTarget()
	d.Dirty = region.FromRect(d.Bounds())
	return nil
}

// ensureTarget (re)allocates the client target to match the active config.
func (d *Device) ensureTarget() {
	b := d.Bounds()
	if d.Target == nil || d.Target.Bounds() != b {
		d.Target = image.NewRGBA(b)
	}
}

// IsPoweredOn reports whether the display composites frames.
func (d *Device) IsPoweredOn() bool {
	return d.Power != PowerModeOff
}
