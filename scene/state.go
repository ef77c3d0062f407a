package scene

import (
	"github.com/gogpu/compose/display"
)

// ColorMatrix is a 4x4 color transform in row-major order applied to
// every composited pixel.
type ColorMatrix [16]float32

// IdentityColorMatrix returns the no-op color transform.
func IdentityColorMatrix() ColorMatrix {
	var m ColorMatrix
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// State is one of the engine's two scene states. Current is mutated by
// transactions; Drawing is consumed by the composition pipeline. The
// two converge exactly at commit time via CopyFrom.
type State struct {
	// Layers is the z-sorted layer collection.
	Layers LayerVector

	// Displays is the display-state table keyed by display token.
	Displays map[display.Token]display.DeviceState

	// ColorMatrix is the global color transform.
	ColorMatrix ColorMatrix

	// ColorMatrixChanged marks the matrix dirty; CopyFrom only copies
	// the matrix when set, mirroring its copy-on-write semantics.
	ColorMatrixChanged bool
}

// NewState creates an empty state for the given state set.
func NewState(set StateSet) *State {
	return &State{
		Layers:      NewLayerVector(set),
		Displays:    make(map[display.Token]display.DeviceState),
		ColorMatrix: IdentityColorMatrix(),
	}
}

// CopyFrom converges this state onto other: structural copy of the
// layer vector and display table, copy-on-write of the color matrix.
// The receiver's state set is preserved so a Drawing state keeps
// ordering by drawing z after the per-layer states commit.
func (s *State) CopyFrom(other *State) {
	s.Layers.CopyFrom(&other.Layers)
	if s.Displays == nil {
		s.Displays = make(map[display.Token]display.DeviceState, len(other.Displays))
	} else {
		clear(s.Displays)
	}
	for t, ds := range other.Displays {
		s.Displays[t] = ds
	}
	s.ColorMatrixChanged = other.ColorMatrixChanged
	if other.ColorMatrixChanged {
		s.ColorMatrix = other.ColorMatrix
	}
}
