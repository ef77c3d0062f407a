// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"image"
	"time"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/fence"
	"github.com/gogpu/compose/hwc"
	"github.com/gogpu/compose/logx"
	"github.com/gogpu/compose/region"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/scene"
)

// handleMessageRefresh runs the composition pipeline for every dirty,
// powered display. No fault in here may terminate the dispatch loop.
func (e *Engine) handleMessageRefresh() {
	repaint := e.repaint.Swap(false)
	e.rebuildLayerStacks()

	for _, d := range e.registry.Devices() {
		if !d.IsPoweredOn() {
			continue
		}
		if repaint {
			d.Dirty.OrSelf(d.Bounds())
		}
		if d.Dirty.IsEmpty() {
			continue
		}
		e.composeDisplay(d)
	}

	// Latched content has been consumed by this refresh.
	e.drawing.Layers.TraverseInZOrder(func(l *scene.Layer) {
		l.ContentDirty = false
	})

	e.modulator.Refreshed()
}

// rebuildLayerStacks recomputes per-layer visible regions when the
// committed scene changed. Regions are computed in layer-stack space,
// front to back, with opaque accumulation; displays sharing a stack
// share the per-layer results and clip to their own bounds at compose
// time.
func (e *Engine) rebuildLayerStacks() {
	if !e.visibleRegionsDirty {
		return
	}
	e.visibleRegionsDirty = false

	stacks := make(map[uint32]bool)
	e.drawing.Layers.TraverseInZOrder(func(l *scene.Layer) {
		stacks[l.Drawing.LayerStack] = true
	})
	for stack := range stacks {
		e.computeVisibleRegions(stack)
	}
}

// computeVisibleRegions walks one layer stack front to back. Each
// layer's visible region is its screen bounds minus everything opaque
// in front of it; opaque layers then join the accumulator so nothing
// behind them is composited. Region changes are added to the dirty
// region of every display showing the stack.
func (e *Engine) computeVisibleRegions(stack uint32) {
	var opaque region.Region

	e.drawing.Layers.TraverseInReverseZOrder(func(l *scene.Layer) {
		if l.Drawing.LayerStack != stack {
			return
		}

		var visible region.Region
		if l.Drawing.Visible && l.Drawing.Alpha > 0 {
			visible = region.FromRect(l.Drawing.ScreenBounds())
			visible.SubtractRegionSelf(opaque)
		}

		if !regionsEqual(&l.VisibleRegion, &visible) {
			// Expose both the vacated and the newly claimed area.
			e.dirtyStackRegion(stack, &l.VisibleRegion)
			e.dirtyStackRegion(stack, &visible)
		} else if l.ContentDirty {
			e.dirtyStackRegion(stack, &visible)
		}

		l.VisibleRegion = visible
		l.CoveredRegion = opaque.Copy()
		if l.IsOpaque() {
			for _, r := range visible.Rects() {
				opaque.OrSelf(r)
			}
		}
	})
}

func regionsEqual(a, b *region.Region) bool {
	ra, rb := a.Rects(), b.Rects()
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	return true
}

// dirtyStackRegion adds a stack-space region to the dirty region of
// every display showing the stack, clipped to display bounds.
func (e *Engine) dirtyStackRegion(stack uint32, rg *region.Region) {
	if rg.IsEmpty() {
		return
	}
	for _, d := range e.registry.Devices() {
		if d.State.LayerStack != stack {
			continue
		}
		bounds := d.Bounds()
		for _, r := range rg.Rects() {
			if c := r.Intersect(bounds); !c.Empty() {
				d.Dirty.OrSelf(c)
			}
		}
	}
}

// stackLayers returns the display's layers back to front, visible
// entries only.
func (e *Engine) stackLayers(d *display.Device) []*scene.Layer {
	var out []*scene.Layer
	e.drawing.Layers.TraverseInZOrder(func(l *scene.Layer) {
		if l.Drawing.LayerStack != d.State.LayerStack {
			return
		}
		if l.VisibleRegion.IsEmpty() {
			return
		}
		out = append(out, l)
	})
	return out
}

// composeDisplay runs one display's frame: offer geometry to the
// hardware composer, client-composite whatever it rejected, present,
// and feed the present fence back into the vsync model.
//
// Failure policy: a composer that rejects validation outright demotes
// the whole frame to client composition for this tick only; a renderer
// failure drops the frame, keeps the previous contents and the dirty
// region, and logs a warning.
func (e *Engine) composeDisplay(d *display.Device) {
	layers := e.stackLayers(d)
	dirty := d.Dirty.Copy()
	dirty.AndSelf(d.Bounds())
	dirtyRects := dirty.Rects()
	if len(dirtyRects) == 0 {
		d.Dirty.Clear()
		return
	}

	types := e.prepareFrame(d, layers)
	clientLayers := e.buildClientLayers(d, layers, types)

	if err := e.renderer.ComposeLayers(d.Target, clientLayers, dirtyRects); err != nil {
		logx.Logger().Warn("compose: client composition failed, dropping frame",
			"display", d.Token, "err", err)
		d.Stats.RecordMissed()
		return
	}
	if err := e.renderer.Flush(); err != nil {
		logx.Logger().Warn("compose: renderer flush failed, dropping frame",
			"display", d.Token, "err", err)
		d.Stats.RecordMissed()
		return
	}

	f := e.presentFrame(d)
	if f == nil {
		d.Stats.RecordMissed()
		return
	}

	d.Dirty.Clear()
	d.Stats.RecordFrame(time.Now())

	if e.ds.AddPresentFence(f) {
		// Present times drifted off the model; resample the hardware.
		e.enableHardwareVsync()
	}
}

// prepareFrame offers the display's geometry to the hardware composer
// and returns the per-layer dispositions. Any validation fault demotes
// every layer to client composition for this tick.
func (e *Engine) prepareFrame(d *display.Device, layers []*scene.Layer) []hwc.CompositionType {
	allClient := func() []hwc.CompositionType {
		types := make([]hwc.CompositionType, len(layers))
		return types // zero value is CompositionClient
	}
	if d.HWCID == 0 {
		// Virtual display: no hardware planes.
		return allClient()
	}

	offered := make([]hwc.Layer, len(layers))
	for i, l := range layers {
		offered[i] = hwc.Layer{
			Requested: hwc.CompositionDevice,
			Frame:     l.Drawing.ScreenBounds().Intersect(d.Bounds()),
			Opaque:    l.IsOpaque(),
			Alpha:     l.Drawing.Alpha,
		}
	}
	types, err := e.composer.ValidateDisplay(d.HWCID, offered)
	if err != nil || len(types) != len(layers) {
		logx.Logger().Warn("compose: frame rejected by composer, falling back to client composition",
			"display", d.Token, "err", err)
		return allClient()
	}
	return types
}

// buildClientLayers converts the client-disposed layers into renderer
// input, clipping visible regions to the display.
func (e *Engine) buildClientLayers(d *display.Device, layers []*scene.Layer, types []hwc.CompositionType) []render.ClientLayer {
	bounds := d.Bounds()
	out := make([]render.ClientLayer, 0, len(layers))
	for i, l := range layers {
		if types[i] != hwc.CompositionClient {
			continue
		}
		if l.Latched == nil || l.Latched.Image == nil {
			continue
		}
		var visible []image.Rectangle
		for _, r := range l.VisibleRegion.Rects() {
			if c := r.Intersect(bounds); !c.Empty() {
				visible = append(visible, c)
			}
		}
		if len(visible) == 0 {
			continue
		}
		out = append(out, render.ClientLayer{
			Source:     l.Latched.Image,
			SourceCrop: l.Latched.Image.Bounds(),
			DestFrame:  l.Drawing.ScreenBounds(),
			Visible:    visible,
			Alpha:      l.Drawing.Alpha,
			Opaque:     l.IsOpaque(),
		})
	}
	return out
}

// presentFrame submits the composited target. Virtual displays have no
// scanout; their present completes immediately.
func (e *Engine) presentFrame(d *display.Device) *fence.Fence {
	if d.HWCID == 0 {
		return fence.Signaled(time.Now())
	}
	f, err := e.composer.PresentDisplay(d.HWCID, d.Target)
	if err != nil {
		logx.Logger().Warn("compose: present failed", "display", d.Token, "err", err)
		return nil
	}
	return f
}
