// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/hwc"
	"github.com/gogpu/compose/internal/msgq"
	"github.com/gogpu/compose/logx"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/scene"
	"github.com/gogpu/compose/vsync"
)

// Engine is the composition server. One dispatch goroutine owns the
// drawing state and all composition; any number of client goroutines
// call the public API concurrently.
type Engine struct {
	cfg Config

	// mu is the state lock. It guards the current state, the layer
	// table, pending-removal bookkeeping, and staged display changes.
	mu             sync.Mutex
	current        *scene.State
	drawing        *scene.State
	layers         map[scene.Handle]*scene.Layer
	pendingRemoval []*scene.Layer
	nextHandle     scene.Handle
	nameCounts     map[string]int
	numLayers      int
	pendingConfigs map[display.Token]int
	pendingPower   map[display.Token]display.PowerMode
	pendingVirtual map[display.Token]display.Config

	flags    *flagRegister
	queue    *msgq.Queue
	registry *display.Registry
	composer hwc.Composer
	renderer render.Renderer

	ds        *vsync.DispSync
	source    *vsync.Source
	modulator *vsync.Modulator

	// hwVsyncLock guards hardware vsync enablement, separate from mu
	// so toggling vsync never contends with transaction submission.
	hwVsyncLock      sync.Mutex
	hwVsyncEnabled   bool
	hwVsyncAvailable bool
	primaryHWCID     uint64

	seq     atomic.Int32
	running atomic.Bool
	repaint atomic.Bool

	// Dispatch goroutine only.
	visibleRegionsDirty bool

	done chan struct{}
}

// New creates a stopped engine over the given composer and renderer.
func New(cfg Config, composer hwc.Composer, renderer render.Renderer) *Engine {
	cfg.sanitize()
	e := &Engine{
		cfg:            cfg,
		current:        scene.NewState(scene.StateCurrent),
		drawing:        scene.NewState(scene.StateDrawing),
		layers:         make(map[scene.Handle]*scene.Layer),
		nextHandle:     1,
		nameCounts:     make(map[string]int),
		pendingConfigs: make(map[display.Token]int),
		pendingPower:   make(map[display.Token]display.PowerMode),
		pendingVirtual: make(map[display.Token]display.Config),
		flags:          newFlagRegister(),
		queue:          msgq.New(),
		registry:       display.NewRegistry(),
		composer:       composer,
		renderer:       renderer,
	}
	e.ds = vsync.NewDispSync(cfg.NominalRefreshPeriod)
	e.source = vsync.NewSource(e.ds, e.onTick)
	e.modulator = vsync.NewModulator(cfg.DefaultPhaseOffset, cfg.EarlyPhaseOffset, e.source)
	return e
}

// Start launches the dispatch loop and registers with the composer.
// Registration replays hotplug for connected displays; those displays
// are applied at the first transaction-processing step.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.done = make(chan struct{})
	go e.run()
	e.source.Start()
	seq := e.seq.Add(1)
	e.composer.RegisterCallbacks(e, seq)
	logx.Logger().Info("compose: engine started", "seq", seq)
}

// Stop terminates the dispatch loop and waits for it to exit.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	// Bump the sequence so late composer callbacks are discarded.
	e.seq.Add(1)
	e.queue.Post(msgq.SignalQuit)
	<-e.done
	e.source.Stop()
	logx.Logger().Info("compose: engine stopped")
}

// onTick runs on the vsync source goroutine.
func (e *Engine) onTick(ts time.Time) {
	if d := e.registry.Default(); d != nil {
		d.Stats.RecordVsync(ts, e.ds.Period())
	}
	e.queue.Post(msgq.SignalInvalidate)
}

// signalTransaction wakes the loop for pending transaction work.
func (e *Engine) signalTransaction(urgent bool) {
	e.modulator.TransactionStart(urgent)
	e.source.RequestNextVsync()
}

// signalLayerUpdate wakes the loop for newly queued layer content.
func (e *Engine) signalLayerUpdate() {
	e.source.RequestNextVsync()
}

// run is the dispatch loop: the sole writer of the drawing state.
func (e *Engine) run() {
	defer close(e.done)
	for {
		s := e.queue.Wait()
		if s&msgq.SignalQuit != 0 {
			return
		}
		if s&(msgq.SignalInvalidate|msgq.SignalTransaction) != 0 {
			e.handleMessageInvalidate()
		}
		if s&msgq.SignalRefresh != 0 {
			e.handleMessageRefresh()
		}
	}
}

// handleMessageInvalidate runs the commit and latch steps for one tick
// and schedules a refresh when composition work came out of them.
// Ordering within a tick is fixed: commit, then latch, then refresh.
func (e *Engine) handleMessageInvalidate() {
	refresh := e.handleMessageTransaction()
	if e.handlePageFlip() {
		refresh = true
	}
	if refresh || e.repaint.Load() {
		e.queue.Post(msgq.SignalRefresh)
	}
}

// handleMessageTransaction commits pending transactions and reports
// whether anything changed.
func (e *Engine) handleMessageTransaction() bool {
	taken := e.flags.getAndClear(eTransactionNeeded | eTraversalNeeded |
		eDisplayTransactionNeeded | eDisplayLayerStackChanged)
	if taken == 0 && !e.registry.HasPendingHotplug() {
		return false
	}

	e.mu.Lock()
	e.handleTransactionLocked(taken)
	e.mu.Unlock()

	e.modulator.TransactionHandled()
	e.flags.notifyCommit()
	return true
}

// handleTransactionLocked applies one commit: hotplug, staged config
// switches, per-layer state commit, display diffing, and finally the
// structural copy of current into drawing. Caller holds mu.
func (e *Engine) handleTransactionLocked(flags transactionFlags) {
	e.processHotplugLocked()
	e.processConfigChangesLocked()
	e.processPowerChangesLocked()

	if flags&eTraversalNeeded != 0 {
		// Layer set membership may have changed even when no per-layer
		// state differs, as with a freshly created layer.
		e.visibleRegionsDirty = true
	}
	if flags&(eTransactionNeeded|eTraversalNeeded) != 0 {
		e.current.Layers.TraverseInZOrder(func(l *scene.Layer) {
			if l.CommitState() {
				l.ContentDirty = true
				e.visibleRegionsDirty = true
			}
		})
	}

	e.processDisplayChangesLocked()
	e.commitTransactionLocked()
}

// processHotplugLocked drains queued hotplug events. Connects allocate
// a fresh token and a device with the composer's config list; the
// display starts powered off pending explicit configuration.
// Disconnects orphan the layer stack: layers remain, composition for
// that stack silently stops.
func (e *Engine) processHotplugLocked() {
	for _, ev := range e.registry.DrainHotplug() {
		if ev.Connected {
			if e.registry.ByHWCID(ev.HWCID) != nil {
				continue
			}
			configs, err := e.composer.Configs(ev.HWCID)
			if err != nil {
				logx.Logger().Warn("compose: hotplugged display has no configs", "hwc_id", ev.HWCID, "err", err)
				continue
			}
			token := e.registry.AllocToken()
			st := display.DeviceState{Name: fmt.Sprintf("display-%d", ev.HWCID)}
			d := display.NewDevice(token, ev.HWCID, st, configs)
			e.registry.Add(d)
			e.current.Displays[token] = st
			e.visibleRegionsDirty = true
			logx.Logger().Info("compose: display connected", "hwc_id", ev.HWCID, "token", token)
		} else {
			d := e.registry.ByHWCID(ev.HWCID)
			if d == nil {
				continue
			}
			delete(e.current.Displays, d.Token)
			e.registry.Remove(d.Token)
			logx.Logger().Info("compose: display disconnected", "hwc_id", ev.HWCID, "token", d.Token)
		}
	}
	e.updatePrimaryLocked()
}

// updatePrimaryLocked refreshes the cached primary display id used by
// the hardware vsync state machine.
func (e *Engine) updatePrimaryLocked() {
	var id uint64
	if d := e.registry.Default(); d != nil {
		id = d.HWCID
	}
	e.hwVsyncLock.Lock()
	e.primaryHWCID = id
	e.hwVsyncLock.Unlock()
}

// processConfigChangesLocked applies staged SetActiveConfig requests.
func (e *Engine) processConfigChangesLocked() {
	for token, id := range e.pendingConfigs {
		d := e.registry.Get(token)
		if d == nil {
			continue
		}
		if err := d.SetActiveConfig(id); err != nil {
			logx.Logger().Warn("compose: active config rejected", "token", token, "err", err)
			continue
		}
		e.visibleRegionsDirty = true
	}
	clear(e.pendingConfigs)
}

// processPowerChangesLocked applies staged power transitions. Power-on
// of the primary display makes hardware vsync available and starts a
// resync; power-off withdraws it and stops composition for the
// display.
func (e *Engine) processPowerChangesLocked() {
	for token, mode := range e.pendingPower {
		d := e.registry.Get(token)
		if d == nil {
			continue
		}
		if d.Power == mode {
			continue
		}
		d.Power = mode
		if d.HWCID != 0 {
			if err := e.composer.SetPowerMode(d.HWCID, mode); err != nil {
				logx.Logger().Warn("compose: composer power mode failed", "token", token, "err", err)
			}
		}
		logx.Logger().Info("compose: display power mode", "token", token, "mode", mode.String())
		if mode != display.PowerModeOff {
			d.Dirty.OrSelf(d.Bounds())
			e.visibleRegionsDirty = true
		}
		if primary := e.registry.Default(); primary != nil && primary.Token == token {
			e.setHardwareVsyncAvailable(mode != display.PowerModeOff)
		}
	}
	clear(e.pendingPower)
}

// processDisplayChangesLocked diffs the current display table against
// the live registry: staged virtual displays become devices, committed
// state lands on the device, layer-stack changes dirty the display.
func (e *Engine) processDisplayChangesLocked() {
	for token, st := range e.current.Displays {
		d := e.registry.Get(token)
		if d == nil {
			cfg, ok := e.pendingVirtual[token]
			if !ok {
				continue
			}
			delete(e.pendingVirtual, token)
			d = display.NewDevice(token, 0, st, []display.Config{cfg})
			e.registry.Add(d)
			logx.Logger().Info("compose: virtual display created", "token", token, "name", st.Name)
		}
		if d.State.LayerStack != st.LayerStack {
			d.Dirty.OrSelf(d.Bounds())
			e.visibleRegionsDirty = true
		}
		d.State = st
	}
}

// commitTransactionLocked converges drawing onto current and finishes
// deferred layer destruction. A pending-removal layer is destroyed only
// once neither state references it; its queued frames are abandoned so
// a latch never resurrects it.
func (e *Engine) commitTransactionLocked() {
	e.drawing.CopyFrom(e.current)
	e.current.ColorMatrixChanged = false

	e.drawing.Layers.TraverseInZOrder(func(l *scene.Layer) {
		l.Live |= scene.LiveInDrawing
	})

	if e.drawing.ColorMatrixChanged {
		for _, d := range e.registry.Devices() {
			d.Dirty.OrSelf(d.Bounds())
		}
	}

	if len(e.pendingRemoval) == 0 {
		return
	}
	for _, l := range e.pendingRemoval {
		l.Live &^= scene.LiveInDrawing
		if n := l.AbandonQueuedFrames(); n > 0 {
			logx.Logger().Debug("compose: abandoned queued frames of removed layer",
				"layer", l.Name, "frames", n)
		}
		e.dirtyLayerArea(l)
		if l.Live == 0 {
			delete(e.layers, l.Handle)
			e.numLayers--
		}
	}
	e.pendingRemoval = e.pendingRemoval[:0]
	e.visibleRegionsDirty = true
}

// dirtyLayerArea marks the screen area a layer occupied as damaged on
// every display showing its stack.
func (e *Engine) dirtyLayerArea(l *scene.Layer) {
	area := l.Drawing.ScreenBounds()
	if !l.VisibleRegion.IsEmpty() {
		area = l.VisibleRegion.Bounds()
	}
	for _, d := range e.registry.Devices() {
		if d.State.LayerStack != l.Drawing.LayerStack {
			continue
		}
		if r := area.Intersect(d.Bounds()); !r.Empty() {
			d.Dirty.OrSelf(r)
		}
	}
}

// handlePageFlip latches the newest queued frame per layer and reports
// whether any layer adopted new content. Superseded frames are dropped
// by the queue; removal-committed layers never reach this step because
// the commit already abandoned their queues.
func (e *Engine) handlePageFlip() bool {
	latched := false
	queuedAgain := false
	e.drawing.Layers.TraverseInZOrder(func(l *scene.Layer) {
		if !l.HasQueuedFrames() {
			return
		}
		released, ok := l.LatchFrame()
		if !ok {
			return
		}
		latched = true
		l.ContentDirty = true
		if released > 0 {
			logx.Logger().Debug("compose: dropped superseded frames", "layer", l.Name, "count", released)
		}
		damage := l.Latched.Damage
		e.dirtyLatchedLayer(l, damage)
		if l.HasQueuedFrames() {
			queuedAgain = true
		}
	})
	if queuedAgain {
		// A producer queued during the latch pass; catch it next tick.
		e.signalLayerUpdate()
	}
	return latched
}

// dirtyLatchedLayer adds the latched damage, mapped to screen space, to
// every display showing the layer's stack. An empty damage rectangle
// means the whole layer changed.
func (e *Engine) dirtyLatchedLayer(l *scene.Layer, damage image.Rectangle) {
	screen := l.Drawing.ScreenBounds()
	area := screen
	if !damage.Empty() {
		area = l.Drawing.Transform.MapRect(damage).Intersect(screen)
	}
	for _, d := range e.registry.Devices() {
		if d.State.LayerStack != l.Drawing.LayerStack {
			continue
		}
		if r := area.Intersect(d.Bounds()); !r.Empty() {
			d.Dirty.OrSelf(r)
		}
	}
}

// Composer callback surface. Callbacks arrive on arbitrary goroutines
// and only feed models or post messages; they never touch shared scene
// state directly. A sequence id different from the live registration
// marks a stale composer instance and the event is discarded.

// OnVsync implements hwc.Callbacks.
func (e *Engine) OnVsync(seq int32, hwcID uint64, ts time.Time) {
	if seq != e.seq.Load() {
		logx.Logger().Debug("compose: discarding stale vsync", "seq", seq, "hwc_id", hwcID)
		return
	}

	e.hwVsyncLock.Lock()
	if !e.hwVsyncEnabled || hwcID != e.primaryHWCID {
		e.hwVsyncLock.Unlock()
		return
	}
	needsMore := e.ds.AddResyncSample(ts)
	if !needsMore {
		// Model locked; the hardware pulse is no longer needed and the
		// model coasts on software-timed ticks until the next resync.
		e.ds.EndResync()
		e.hwVsyncEnabled = false
		e.source.SetHardwareLive(false)
		if err := e.composer.SetVsyncEnabled(hwcID, false); err != nil {
			logx.Logger().Warn("compose: disable hardware vsync failed", "err", err)
		}
	}
	e.hwVsyncLock.Unlock()
}

// OnHotplug implements hwc.Callbacks. The event is queued; it is
// applied only on the dispatch goroutine at the next transaction step.
func (e *Engine) OnHotplug(seq int32, hwcID uint64, connected bool) {
	if seq != e.seq.Load() {
		logx.Logger().Debug("compose: discarding stale hotplug", "seq", seq, "hwc_id", hwcID)
		return
	}
	e.registry.QueueHotplug(display.HotplugEvent{HWCID: hwcID, Connected: connected})
	e.flags.set(eDisplayTransactionNeeded)
	e.signalTransaction(false)
}

// OnRefresh implements hwc.Callbacks.
func (e *Engine) OnRefresh(seq int32, hwcID uint64) {
	if seq != e.seq.Load() {
		logx.Logger().Debug("compose: discarding stale refresh", "seq", seq, "hwc_id", hwcID)
		return
	}
	e.repaint.Store(true)
	e.source.RequestNextVsync()
}

var _ hwc.Callbacks = (*Engine)(nil)

// enableHardwareVsync begins a hardware resync burst if the primary
// display can deliver pulses and none are currently enabled.
func (e *Engine) enableHardwareVsync() {
	e.hwVsyncLock.Lock()
	defer e.hwVsyncLock.Unlock()
	if e.hwVsyncEnabled || !e.hwVsyncAvailable || e.primaryHWCID == 0 {
		return
	}
	e.ds.BeginResync()
	if err := e.composer.SetVsyncEnabled(e.primaryHWCID, true); err != nil {
		logx.Logger().Warn("compose: enable hardware vsync failed", "err", err)
		return
	}
	e.hwVsyncEnabled = true
	e.source.SetHardwareLive(true)
}

// setHardwareVsyncAvailable tracks primary display power: hardware
// vsync can only be expected from a powered-on display.
func (e *Engine) setHardwareVsyncAvailable(available bool) {
	e.hwVsyncLock.Lock()
	wasAvailable := e.hwVsyncAvailable
	e.hwVsyncAvailable = available
	if !available && e.hwVsyncEnabled {
		e.hwVsyncEnabled = false
		e.source.SetHardwareLive(false)
		if err := e.composer.SetVsyncEnabled(e.primaryHWCID, false); err != nil {
			logx.Logger().Warn("compose: disable hardware vsync failed", "err", err)
		}
	}
	e.hwVsyncLock.Unlock()

	if available && !wasAvailable {
		e.enableHardwareVsync()
	}
}
