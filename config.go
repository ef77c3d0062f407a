// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// MaxLayers is the hard cap on live layers. Creation beyond the cap is
// rejected with LayerCapError.
const MaxLayers = 4096

// Config holds the engine tunables.
type Config struct {
	// MaxLayers caps the number of live layers.
	MaxLayers int

	// FrameQueueDepth bounds each layer's producer queue.
	FrameQueueDepth int

	// NominalRefreshPeriod seeds the vsync model before hardware
	// samples arrive.
	NominalRefreshPeriod time.Duration

	// DefaultPhaseOffset shifts dispatch wakes relative to vsync under
	// normal load. May be negative (wake before the pulse).
	DefaultPhaseOffset time.Duration

	// EarlyPhaseOffset is used while an urgent transaction is in
	// flight.
	EarlyPhaseOffset time.Duration

	// CallerCheck, when non-nil, is consulted before every mutating
	// API call. A returned error rejects the call with ProtocolError
	// and no state change.
	CallerCheck func(op string) error
}

// DefaultConfig returns the engine defaults: 60 Hz nominal refresh,
// a 5 ms default phase offset and a 1 ms early offset.
func DefaultConfig() Config {
	return Config{
		MaxLayers:            MaxLayers,
		FrameQueueDepth:      3,
		NominalRefreshPeriod: 16666667 * time.Nanosecond,
		DefaultPhaseOffset:   5 * time.Millisecond,
		EarlyPhaseOffset:     1 * time.Millisecond,
	}
}

// fileConfig is the TOML schema. Durations are TOML strings in
// time.ParseDuration syntax ("16.67ms").
type fileConfig struct {
	MaxLayers            int          `toml:"max_layers"`
	FrameQueueDepth      int          `toml:"frame_queue_depth"`
	NominalRefreshPeriod tomlDuration `toml:"nominal_refresh_period"`
	DefaultPhaseOffset   tomlDuration `toml:"default_phase_offset"`
	EarlyPhaseOffset     tomlDuration `toml:"early_phase_offset"`
}

type tomlDuration struct {
	time.Duration
	set bool
}

func (d *tomlDuration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	d.set = true
	return nil
}

// LoadConfig decodes a TOML file over DefaultConfig. Keys absent from
// the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return cfg, fmt.Errorf("compose: load config %q: %w", path, err)
	}
	if fc.MaxLayers > 0 {
		cfg.MaxLayers = fc.MaxLayers
	}
	if fc.FrameQueueDepth > 0 {
		cfg.FrameQueueDepth = fc.FrameQueueDepth
	}
	if fc.NominalRefreshPeriod.set {
		cfg.NominalRefreshPeriod = fc.NominalRefreshPeriod.Duration
	}
	if fc.DefaultPhaseOffset.set {
		cfg.DefaultPhaseOffset = fc.DefaultPhaseOffset.Duration
	}
	if fc.EarlyPhaseOffset.set {
		cfg.EarlyPhaseOffset = fc.EarlyPhaseOffset.Duration
	}
	return cfg, nil
}

// sanitize fills zero values with defaults so a zero Config is usable.
func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.MaxLayers <= 0 {
		c.MaxLayers = def.MaxLayers
	}
	if c.FrameQueueDepth <= 0 {
		c.FrameQueueDepth = def.FrameQueueDepth
	}
	if c.NominalRefreshPeriod <= 0 {
		c.NominalRefreshPeriod = def.NominalRefreshPeriod
	}
	if c.DefaultPhaseOffset == 0 {
		c.DefaultPhaseOffset = def.DefaultPhaseOffset
	}
	if c.EarlyPhaseOffset == 0 {
		c.EarlyPhaseOffset = def.EarlyPhaseOffset
	}
}
