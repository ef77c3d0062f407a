// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/logx"
	"github.com/gogpu/compose/scene"
)

// checkCaller runs the host's permission hook, if any.
func (e *Engine) checkCaller(op string) error {
	if e.cfg.CallerCheck == nil {
		return nil
	}
	if err := e.cfg.CallerCheck(op); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

// uniqueLayerNameLocked suffixes duplicate names with "#N" so every
// layer name is unique for diagnostics.
func (e *Engine) uniqueLayerNameLocked(name string) string {
	n := e.nameCounts[name]
	e.nameCounts[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s#%d", name, n+1)
}

// CreateLayer creates a layer attached under parent (InvalidHandle for
// a root layer) and returns its handle. The layer becomes visible to
// composition at the next commit. Creation is rejected once the layer
// cap is reached; existing state is untouched.
func (e *Engine) CreateLayer(name string, width, height int, parent scene.Handle) (scene.Handle, error) {
	if err := e.checkCaller("CreateLayer"); err != nil {
		return scene.InvalidHandle, err
	}

	e.mu.Lock()
	if e.numLayers >= e.cfg.MaxLayers {
		e.mu.Unlock()
		return scene.InvalidHandle, &LayerCapError{Max: e.cfg.MaxLayers}
	}
	if parent != scene.InvalidHandle {
		p := e.layers[parent]
		if p == nil || p.PendingRemoval {
			e.mu.Unlock()
			return scene.InvalidHandle, &ValidationError{
				Op: "CreateLayer", Target: uint64(parent), Err: ErrInvalidHandle,
			}
		}
	}

	h := e.nextHandle
	e.nextHandle++
	l := scene.NewLayer(e.uniqueLayerNameLocked(name), h, width, height, e.cfg.FrameQueueDepth)
	l.Current.Parent = parent
	e.layers[h] = l
	e.current.Layers.Add(l)
	e.numLayers++
	e.flags.set(eTransactionNeeded | eTraversalNeeded)
	e.mu.Unlock()

	e.signalTransaction(false)
	logx.Logger().Debug("compose: layer created", "name", l.Name, "handle", h)
	return h, nil
}

// RemoveLayer marks the layer pending removal. It disappears from the
// drawing state at the next commit and is destroyed once no state
// references it; in-flight queued frames are abandoned, not latched.
func (e *Engine) RemoveLayer(h scene.Handle) error {
	if err := e.checkCaller("RemoveLayer"); err != nil {
		return err
	}

	e.mu.Lock()
	l := e.layers[h]
	if l == nil || l.PendingRemoval {
		e.mu.Unlock()
		return &ValidationError{Op: "RemoveLayer", Target: uint64(h), Err: ErrInvalidHandle}
	}
	l.PendingRemoval = true
	l.Live &^= scene.LiveInCurrent
	e.current.Layers.Remove(h)
	e.pendingRemoval = append(e.pendingRemoval, l)
	e.flags.set(eTransactionNeeded | eTraversalNeeded)
	e.mu.Unlock()

	e.signalTransaction(false)
	logx.Logger().Debug("compose: layer removed", "name", l.Name, "handle", h)
	return nil
}

// QueueFrame queues new content for a layer. The newest frame wins:
// the dispatch loop latches the most recent queued frame and releases
// superseded ones, never blocking on the producer.
func (e *Engine) QueueFrame(h scene.Handle, img *image.RGBA, damage image.Rectangle) error {
	e.mu.Lock()
	l := e.layers[h]
	if l == nil || l.PendingRemoval {
		e.mu.Unlock()
		return &ValidationError{Op: "QueueFrame", Target: uint64(h), Err: ErrInvalidHandle}
	}
	e.mu.Unlock()

	l.Queue().Queue(img, damage)
	e.signalLayerUpdate()
	return nil
}

// SubmitTransaction applies an atomic batch of scene changes to the
// current state. Entries referencing unknown targets fail individually
// with ValidationError; the rest of the batch still applies, and the
// joined errors are returned. A batch that changes nothing sets no
// flags and schedules no work.
//
// With TransactionSynchronous the call blocks until the commit has
// reached the drawing state, bounded by about two vsync periods.
func (e *Engine) SubmitTransaction(tx Transaction) error {
	if err := e.checkCaller("SubmitTransaction"); err != nil {
		return err
	}

	var errs []error
	var flags transactionFlags

	e.mu.Lock()
	for i := range tx.Layers {
		ch := &tx.Layers[i]
		l := e.layers[ch.Handle]
		if l == nil || l.PendingRemoval {
			errs = append(errs, &ValidationError{
				Op: "SubmitTransaction", Target: uint64(ch.Handle), Err: ErrInvalidHandle,
			})
			continue
		}
		flags |= e.setClientStateLocked(l, ch)
	}
	for i := range tx.Displays {
		ch := &tx.Displays[i]
		if e.registry.Get(ch.Token) == nil {
			errs = append(errs, &ValidationError{
				Op: "SubmitTransaction", Target: uint64(ch.Token), Err: ErrInvalidDisplay,
			})
			continue
		}
		flags |= e.setDisplayStateLocked(ch)
	}
	if tx.ColorMatrix != nil && *tx.ColorMatrix != e.current.ColorMatrix {
		e.current.ColorMatrix = *tx.ColorMatrix
		e.current.ColorMatrixChanged = true
		flags |= eTransactionNeeded
	}
	if flags != 0 {
		e.flags.set(flags)
	}
	gen := e.flags.generation()
	e.mu.Unlock()

	if flags != 0 {
		e.signalTransaction(tx.Flags&TransactionAnimation != 0)
		if tx.Flags&TransactionSynchronous != 0 && e.running.Load() {
			timeout := 2 * e.ds.Period()
			if !e.flags.waitCommit(gen, timeout) {
				logx.Logger().Warn("compose: synchronous transaction timed out", "timeout", timeout)
			}
		}
	}
	return errors.Join(errs...)
}

// CreateVirtualDisplay stages a virtual display. The returned token is
// valid as a transaction target only after the creation commits; the
// live device appears at the next transaction-processing step.
func (e *Engine) CreateVirtualDisplay(name string, cfg display.Config) display.Token {
	e.mu.Lock()
	token := e.registry.AllocToken()
	e.current.Displays[token] = display.DeviceState{Name: name, Virtual: true}
	e.pendingVirtual[token] = cfg
	e.flags.set(eDisplayTransactionNeeded)
	e.mu.Unlock()

	e.signalTransaction(false)
	return token
}

// SetPowerMode stages a display power transition, applied on the
// dispatch goroutine. Powering on the primary display enables hardware
// vsync and a resync; powering it off stops composition and hardware
// vsync for it.
func (e *Engine) SetPowerMode(token display.Token, mode display.PowerMode) error {
	if err := e.checkCaller("SetPowerMode"); err != nil {
		return err
	}
	if e.registry.Get(token) == nil {
		return &ValidationError{Op: "SetPowerMode", Target: uint64(token), Err: ErrInvalidDisplay}
	}

	e.mu.Lock()
	e.pendingPower[token] = mode
	e.flags.set(eDisplayTransactionNeeded)
	e.mu.Unlock()

	e.signalTransaction(false)
	return nil
}

// SetActiveConfig stages a switch to another display configuration.
// The switch is validated here and applied on the dispatch goroutine.
func (e *Engine) SetActiveConfig(token display.Token, id int) error {
	if err := e.checkCaller("SetActiveConfig"); err != nil {
		return err
	}
	d := e.registry.Get(token)
	if d == nil {
		return &ValidationError{Op: "SetActiveConfig", Target: uint64(token), Err: ErrInvalidDisplay}
	}
	if id < 0 || id >= len(d.Configs) {
		return &ValidationError{Op: "SetActiveConfig", Target: uint64(token), Err: ErrInvalidDisplay}
	}

	e.mu.Lock()
	e.pendingConfigs[token] = id
	e.flags.set(eDisplayTransactionNeeded)
	e.mu.Unlock()

	e.signalTransaction(false)
	return nil
}

// GetDisplayStats returns the display's timing diagnostics: last vsync
// time, modeled period, frame counts, and latency buckets.
func (e *Engine) GetDisplayStats(token display.Token) (display.StatsSnapshot, error) {
	d := e.registry.Get(token)
	if d == nil {
		return display.StatsSnapshot{}, &ValidationError{
			Op: "GetDisplayStats", Target: uint64(token), Err: ErrInvalidDisplay,
		}
	}
	return d.Stats.Snapshot(), nil
}

// DefaultDisplay returns the token of the primary physical display, or
// InvalidToken when none is connected yet.
func (e *Engine) DefaultDisplay() display.Token {
	if d := e.registry.Default(); d != nil {
		return d.Token
	}
	return display.InvalidToken
}

// RepaintEverything forces a full recomposition of all displays at the
// next tick.
func (e *Engine) RepaintEverything() {
	e.repaint.Store(true)
	e.source.RequestNextVsync()
}

// NumLayers returns the number of live layers, including those pending
// removal but not yet destroyed.
func (e *Engine) NumLayers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numLayers
}
