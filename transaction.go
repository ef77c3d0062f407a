// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"image"

	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/scene"
)

// TransactionFlags modify how a transaction is scheduled.
type TransactionFlags uint32

const (
	// TransactionSynchronous blocks the submitter until the commit has
	// been applied to the drawing state, bounded by about two vsync
	// periods.
	TransactionSynchronous TransactionFlags = 1 << iota

	// TransactionAnimation marks an urgent, interaction-triggered
	// change; the vsync modulator switches to the early phase offset.
	TransactionAnimation
)

// LayerChangeFlags select which LayerChange fields apply.
type LayerChangeFlags uint32

const (
	ChangeZ LayerChangeFlags = 1 << iota
	ChangeLayerStack
	ChangeTransform
	ChangeAlpha
	ChangeVisibility
	ChangeOpaque
	ChangeSize
	ChangeParent
)

// LayerChange is one layer entry in a transaction. Only the fields
// selected by What are applied.
type LayerChange struct {
	Handle scene.Handle
	What   LayerChangeFlags

	Z          int32
	LayerStack uint32
	Transform  scene.Transform
	Alpha      float32
	Visible    bool
	Opaque     bool
	Size       image.Point
	Parent     scene.Handle
}

// DisplayChangeFlags select which DisplayChange fields apply.
type DisplayChangeFlags uint32

const (
	ChangeDisplayLayerStack DisplayChangeFlags = 1 << iota
	ChangeDisplayProjection
	ChangeDisplayName
)

// DisplayChange is one display entry in a transaction.
type DisplayChange struct {
	Token display.Token
	What  DisplayChangeFlags

	LayerStack  uint32
	Viewport    image.Rectangle
	Frame       image.Rectangle
	Orientation int
	Name        string
}

// Transaction is an atomic batch of scene mutations. Entries failing
// validation are rejected individually; the rest of the batch applies.
type Transaction struct {
	Layers      []LayerChange
	Displays    []DisplayChange
	ColorMatrix *scene.ColorMatrix
	Flags       TransactionFlags
}

// setClientStateLocked applies one layer change to the layer's current
// state and returns the register bits it dirtied. An entry that alters
// nothing returns zero, so idempotent submissions set no flags.
// Caller holds the state lock.
func (e *Engine) setClientStateLocked(l *scene.Layer, ch *LayerChange) transactionFlags {
	var flags transactionFlags
	st := &l.Current

	if ch.What&ChangeZ != 0 && st.Z != ch.Z {
		st.Z = ch.Z
		e.current.Layers.Reorder(l.Handle)
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeLayerStack != 0 && st.LayerStack != ch.LayerStack {
		st.LayerStack = ch.LayerStack
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeTransform != 0 && st.Transform != ch.Transform {
		st.Transform = ch.Transform
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeAlpha != 0 && st.Alpha != ch.Alpha {
		st.Alpha = ch.Alpha
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeVisibility != 0 && st.Visible != ch.Visible {
		st.Visible = ch.Visible
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeOpaque != 0 && st.Opaque != ch.Opaque {
		st.Opaque = ch.Opaque
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeSize != 0 && (st.Width != ch.Size.X || st.Height != ch.Size.Y) {
		st.Width, st.Height = ch.Size.X, ch.Size.Y
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	if ch.What&ChangeParent != 0 && st.Parent != ch.Parent {
		st.Parent = ch.Parent
		flags |= eTransactionNeeded | eTraversalNeeded
	}
	return flags
}

// setDisplayStateLocked applies one display change to the current
// display table. Caller holds the state lock; the token has already
// been validated against the registry.
func (e *Engine) setDisplayStateLocked(ch *DisplayChange) transactionFlags {
	st, ok := e.current.Displays[ch.Token]
	if !ok {
		return 0
	}
	var flags transactionFlags

	if ch.What&ChangeDisplayLayerStack != 0 && st.LayerStack != ch.LayerStack {
		st.LayerStack = ch.LayerStack
		flags |= eDisplayTransactionNeeded | eDisplayLayerStackChanged
	}
	if ch.What&ChangeDisplayProjection != 0 &&
		(st.Viewport != ch.Viewport || st.Frame != ch.Frame || st.Orientation != ch.Orientation) {
		st.Viewport = ch.Viewport
		st.Frame = ch.Frame
		st.Orientation = ch.Orientation
		flags |= eDisplayTransactionNeeded
	}
	if ch.What&ChangeDisplayName != 0 && st.Name != ch.Name {
		st.Name = ch.Name
		flags |= eDisplayTransactionNeeded
	}
	if flags != 0 {
		e.current.Displays[ch.Token] = st
	}
	return flags
}
