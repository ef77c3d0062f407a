// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"sync"
)

// HotplugEvent records a display connect or disconnect reported by the
// hardware. Events are queued by the hardware callback context and
// drained on the engine's dispatch goroutine; they are never applied
// inline.
type HotplugEvent struct {
	// HWCID is the hardware composer's display identifier.
	HWCID uint64

	// Connected is true for a connect, false for a disconnect.
	Connected bool
}

// Registry maps display tokens to live devices and tracks pending
// hotplug events.
//
// Write discipline: device table mutations happen only on the engine's
// dispatch goroutine (the registry mutex makes concurrent reads safe,
// not concurrent writers correct). The hotplug queue is the exception:
// any goroutine may queue, only the dispatch goroutine drains.
type Registry struct {
	mu        sync.RWMutex
	devices   map[Token]*Device
	physical  map[uint64]Token // HWCID -> token, physical displays only
	pending   []HotplugEvent
	nextToken Token
}

// NewRegistry creates an empty display registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:   make(map[Token]*Device),
		physical:  make(map[uint64]Token),
		nextToken: 1,
	}
}

// AllocToken returns a fresh, never-before-used display token.
func (r *Registry) AllocToken() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.nextToken
	r.nextToken++
	return t
}

// Add inserts a device under its token. A physical device (HWCID != 0)
// is also registered in the physical-id map.
func (r *Registry) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.Token] = d
	if d.HWCID != 0 {
		r.physical[d.HWCID] = d.Token
	}
}

// Remove deletes the device for token and drops its physical mapping.
func (r *Registry) Remove(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[token]; ok {
		if d.HWCID != 0 {
			delete(r.physical, d.HWCID)
		}
		delete(r.devices, token)
	}
}

// Get returns the device for token, or nil if unknown.
func (r *Registry) Get(token Token) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[token]
}

// ByHWCID returns the device for a physical display id, or nil.
func (r *Registry) ByHWCID(hwcID uint64) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if token, ok := r.physical[hwcID]; ok {
		return r.devices[token]
	}
	return nil
}

// Default returns the primary display: the powered physical device with
// the lowest HWCID, or nil if none exists.
func (r *Registry) Default() *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Device
	for _, d := range r.devices {
		if d.HWCID == 0 {
			continue
		}
		if best == nil || d.HWCID < best.HWCID {
			best = d
		}
	}
	return best
}

// Tokens returns all registered tokens in unspecified order.
func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.devices))
	for t := range r.devices {
		out = append(out, t)
	}
	return out
}

// Devices returns all registered devices in unspecified order.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// QueueHotplug records a hotplug event for later processing.
// Safe to call from any goroutine; never blocks.
func (r *Registry) QueueHotplug(ev HotplugEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ev)
}

// DrainHotplug returns and clears all pending hotplug events in arrival
// order. Called only from the dispatch goroutine during transaction
// processing.
func (r *Registry) DrainHotplug() []HotplugEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.pending
	r.pending = nil
	return events
}

// HasPendingHotplug reports whether undrained hotplug events exist.
func (r *Registry) HasPendingHotplug() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending) > 0
}
