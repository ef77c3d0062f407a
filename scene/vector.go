package scene

import (
	"sort"
)

// Visitor is called for each layer during a traversal.
type Visitor func(*Layer)

// LayerVector is an ordered collection of layers sorted by the z value
// of one state set, with the handle as tiebreaker. Siblings under
// different parents interleave freely; the sort key (parent-relative z,
// then handle) makes traversal order a pure function of z plus tree
// structure.
type LayerVector struct {
	set    StateSet
	layers []*Layer
}

// NewLayerVector creates an empty vector ordering by the given state set.
func NewLayerVector(set StateSet) LayerVector {
	return LayerVector{set: set}
}

// StateSet returns the state set this vector orders by.
func (v *LayerVector) StateSet() StateSet {
	return v.set
}

// less orders layers by (z, handle) of the vector's state set.
func (v *LayerVector) less(a, b *Layer) bool {
	za, zb := a.State(v.set).Z, b.State(v.set).Z
	if za != zb {
		return za < zb
	}
	return a.Handle < b.Handle
}

// Add inserts the layer at its sorted position. O(log n) search plus
// the slice shift. Duplicate insertion is the caller's bug; the vector
// does not check.
func (v *LayerVector) Add(l *Layer) {
	i := sort.Search(len(v.layers), func(i int) bool {
		return v.less(l, v.layers[i])
	})
	v.layers = append(v.layers, nil)
	copy(v.layers[i+1:], v.layers[i:])
	v.layers[i] = l
}

// Remove deletes the layer by handle and reports whether it was present.
func (v *LayerVector) Remove(h Handle) bool {
	for i, l := range v.layers {
		if l.Handle == h {
			v.layers = append(v.layers[:i], v.layers[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the layer with the given handle, or nil.
func (v *LayerVector) Get(h Handle) *Layer {
	for _, l := range v.layers {
		if l.Handle == h {
			return l
		}
	}
	return nil
}

// Contains reports whether a layer with the handle is present.
func (v *LayerVector) Contains(h Handle) bool {
	return v.Get(h) != nil
}

// Reorder re-sorts a single layer after its z changed: remove and
// re-insert at the new position.
func (v *LayerVector) Reorder(h Handle) bool {
	l := v.Get(h)
	if l == nil {
		return false
	}
	v.Remove(h)
	v.Add(l)
	return true
}

// Resort rebuilds the whole ordering. Used after a commit may have
// changed many z values at once.
func (v *LayerVector) Resort() {
	sort.SliceStable(v.layers, func(i, j int) bool {
		return v.less(v.layers[i], v.layers[j])
	})
}

// Len returns the number of layers.
func (v *LayerVector) Len() int {
	return len(v.layers)
}

// TraverseInZOrder visits layers back to front (painting order).
func (v *LayerVector) TraverseInZOrder(visit Visitor) {
	for _, l := range v.layers {
		visit(l)
	}
}

// TraverseInReverseZOrder visits layers front to back (occlusion order).
func (v *LayerVector) TraverseInReverseZOrder(visit Visitor) {
	for i := len(v.layers) - 1; i >= 0; i-- {
		visit(v.layers[i])
	}
}

// CopyFrom replaces this vector's contents with other's, keeping this
// vector's state set. Layers are shared, not cloned; during the commit
// window both states intentionally reference the same layers.
func (v *LayerVector) CopyFrom(other *LayerVector) {
	v.layers = append(v.layers[:0], other.layers...)
	v.Resort()
}
