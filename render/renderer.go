// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render composites client layers into a display target.
//
// Two implementations exist: Software runs on the CPU with image/draw,
// and gpu.Compositor (in the gpu subpackage) runs a compute pipeline on
// the hal backend. The engine falls back from GPU to software when no
// adapter is available.
package render

import (
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ClientLayer is one layer the engine must composite itself, in
// back-to-front order.
type ClientLayer struct {
	// Source is the latched buffer content.
	Source *image.RGBA

	// SourceCrop selects the portion of Source to sample.
	SourceCrop image.Rectangle

	// DestFrame is the destination rectangle in target space. When its
	// size differs from SourceCrop the content is scaled.
	DestFrame image.Rectangle

	// Visible restricts drawing to the layer's visible rectangles in
	// target space. An empty slice draws nothing.
	Visible []image.Rectangle

	// Alpha is the plane-wide alpha in [0, 1].
	Alpha float32

	// Opaque layers overwrite the destination instead of blending.
	Opaque bool
}

// Renderer composites client layers into a target image.
//
// Renderers are not safe for concurrent use; the engine calls them
// from the dispatch goroutine only.
type Renderer interface {
	// ComposeLayers draws layers back to front into target, restricted
	// to the dirty region's rectangles. Pixels outside every layer are
	// cleared to opaque black within the dirty area.
	ComposeLayers(target *image.RGBA, layers []ClientLayer, dirty []image.Rectangle) error

	// Flush blocks until pending work has reached the target. CPU
	// renderers return immediately.
	Flush() error
}

// DeviceHandle provides GPU device access from the host application.
// The host implements it (or passes one through from gogpu) so the GPU
// compositor can share the host's device instead of creating its own.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle with no device behind it, used
// where composition is CPU-only.
type NullDeviceHandle struct{}

func (NullDeviceHandle) Device() gpucontext.Device   { return nil }
func (NullDeviceHandle) Queue() gpucontext.Queue     { return nil }
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }

var _ DeviceHandle = NullDeviceHandle{}
