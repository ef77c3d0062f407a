// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scene holds the compositor's scene graph: layers, the
// z-ordered layer vector, and the dual (Current/Drawing) scene states
// that transactions and the composition pipeline operate on.
//
// Locking contract: every LayerState under StateCurrent is guarded by
// the engine's state lock; everything under StateDrawing is owned by the
// engine's single dispatch goroutine and needs no lock. Frame queues
// have their own internal lock because content producers run on
// arbitrary goroutines.
package scene

import (
	"image"

	"github.com/gogpu/compose/region"
)

// Handle uniquely identifies a layer for the lifetime of the process.
type Handle uint64

// InvalidHandle is never assigned to a layer.
const InvalidHandle Handle = 0

// StateSet selects which of the two scene states an operation reads.
type StateSet int

// The two scene states.
const (
	// StateCurrent is the transaction-visible state, mutated by clients
	// under the engine state lock.
	StateCurrent StateSet = iota

	// StateDrawing is the committed state read by the composition
	// pipeline. Only the dispatch goroutine touches it.
	StateDrawing
)

// String returns the state set name.
func (s StateSet) String() string {
	switch s {
	case StateCurrent:
		return "Current"
	case StateDrawing:
		return "Drawing"
	default:
		return "Invalid"
	}
}

// Liveness generations for deferred layer destruction. A layer is only
// destroyed once neither scene state references it, which keeps layers
// alive while the pipeline may still hold them.
const (
	LiveInCurrent uint8 = 1 << iota
	LiveInDrawing
)

// LayerState is the double-buffered property block of a layer.
type LayerState struct {
	// Parent is the handle of the parent layer, or InvalidHandle for a
	// root-attached layer. Parent links are handles, not pointers, so
	// ownership stays with the scene states.
	Parent Handle

	// Z orders the layer among its siblings. Higher Z is closer to the
	// viewer.
	Z int32

	// LayerStack assigns the layer to a display stack.
	LayerStack uint32

	// Transform places layer content in layer-stack space.
	Transform Transform

	// Alpha is the layer opacity in [0, 1].
	Alpha float32

	// Visible is the client-requested visibility.
	Visible bool

	// Opaque promises that every pixel of the layer is fully opaque,
	// enabling occlusion culling behind it.
	Opaque bool

	// Width and Height are the content dimensions in layer space.
	Width, Height int
}

// Bounds returns the layer-space content rectangle.
func (s *LayerState) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

// ScreenBounds returns the layer's rectangle in layer-stack space.
func (s *LayerState) ScreenBounds() image.Rectangle {
	return s.Transform.MapRect(s.Bounds())
}

// Frame is one unit of layer content queued by a producer.
type Frame struct {
	// Seq is the per-layer queue sequence number.
	Seq uint64

	// Image is the frame's pixel content.
	Image *image.RGBA

	// Damage is the changed area in layer space. An empty rectangle
	// means full damage.
	Damage image.Rectangle
}

// Layer is one node of the scene graph.
type Layer struct {
	// Name is the client-supplied debug name, made unique on creation.
	Name string

	// Handle is the layer's identity.
	Handle Handle

	// Current is mutated by transactions under the engine state lock.
	Current LayerState

	// Drawing is the committed state; dispatch goroutine only.
	Drawing LayerState

	// PendingRemoval is set when the client destroys its handle. The
	// layer stays in the scene states until drained from Drawing.
	// Guarded by the engine state lock.
	PendingRemoval bool

	// Live tracks which scene states still reference the layer.
	// Guarded by the engine state lock.
	Live uint8

	// ContentDirty marks that a transaction changed committed state in
	// a way that requires recomposition. Dispatch goroutine only.
	ContentDirty bool

	// Latched is the most recently adopted frame. Dispatch goroutine only.
	Latched *Frame

	// VisibleRegion and CoveredRegion are recomputed every traversal by
	// computeVisibleRegions. Dispatch goroutine only.
	VisibleRegion region.Region
	CoveredRegion region.Region

	queue *FrameQueue
}

// NewLayer creates a layer with identity transform, full alpha, and an
// empty frame queue of the given depth.
func NewLayer(name string, handle Handle, width, height int, queueDepth int) *Layer {
	st := LayerState{
		Transform: IdentityTransform(),
		Alpha:     1,
		Visible:   true,
		Width:     width,
		Height:    height,
	}
	return &Layer{
		Name:    name,
		Handle:  handle,
		Current: st,
		Drawing: st,
		Live:    LiveInCurrent,
		queue:   NewFrameQueue(queueDepth),
	}
}

// State returns the property block for the given state set.
func (l *Layer) State(set StateSet) *LayerState {
	if set == StateDrawing {
		return &l.Drawing
	}
	return &l.Current
}

// CommitState copies Current into Drawing and reports whether anything
// changed. Called by the engine during transaction commit, with the
// state lock held.
func (l *Layer) CommitState() bool {
	if l.Drawing == l.Current {
		return false
	}
	l.Drawing = l.Current
	return true
}

// Queue returns the layer's frame queue.
func (l *Layer) Queue() *FrameQueue {
	return l.queue
}

// HasQueuedFrames reports whether a producer has queued content that
// has not been latched yet.
func (l *Layer) HasQueuedFrames() bool {
	return l.queue.HasNextFrame()
}

// LatchFrame adopts the newest queued frame, returning the frames
// superseded by it (already released back to the producer) and whether
// a new frame was latched. Dispatch goroutine only.
func (l *Layer) LatchFrame() (released int, latched bool) {
	frame, dropped := l.queue.AcquireLatest()
	if frame == nil {
		return 0, false
	}
	l.Latched = frame
	return dropped, true
}

// AbandonQueuedFrames releases all queued frames without latching,
// used when a committed removal precedes the latch step.
func (l *Layer) AbandonQueuedFrames() int {
	return l.queue.Abandon()
}

// IsOpaque reports whether the committed state hides everything behind
// the layer: content opacity promised and full alpha.
func (l *Layer) IsOpaque() bool {
	return l.Drawing.Opaque && l.Drawing.Alpha >= 1
}
