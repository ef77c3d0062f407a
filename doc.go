// Package compose is a display-composition server engine for Go.
//
// # Overview
//
// compose owns the authoritative scene graph of on-screen layers,
// synchronizes client-submitted state changes with the display's
// refresh cadence, and drives a hardware/software compositor to
// produce each displayed frame.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/compose"
//	    "github.com/gogpu/compose/hwc"
//	    "github.com/gogpu/compose/render"
//	)
//
//	composer := hwc.NewSoftware()
//	engine := compose.New(compose.DefaultConfig(), composer, render.NewSoftware())
//	engine.Start()
//	defer engine.Stop()
//
//	layer, _ := engine.CreateLayer("app", 800, 600, 0)
//	engine.SubmitTransaction(compose.Transaction{
//	    Layers: []compose.LayerChange{{Handle: layer, What: compose.ChangeZ, Z: 1}},
//	})
//
// # Architecture
//
// The engine keeps two copies of the scene graph: Current, mutated by
// incoming transactions under the state lock, and Drawing, read only by
// the composition pipeline. A single dispatch goroutine commits Current
// into Drawing on vsync-derived ticks, latches the newest queued frame
// per layer, and runs the per-display composition pipeline. All public
// API entry points are safe to call concurrently.
//
// Packages:
//   - scene: layers, z-ordered vector, dual scene states, frame queues
//   - region: rectangle-list region algebra for visibility and damage
//   - vsync: refresh model, tick source, phase-offset modulation
//   - display: device registry, hotplug queue, power modes, stats
//   - hwc: hardware composer contract and a software implementation
//   - render: client-composition renderers (CPU and GPU)
//   - fence: one-shot signalable fences with timestamps
package compose

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
