package scene

import (
	"testing"
)

func makeLayer(h Handle, z int32) *Layer {
	l := NewLayer("layer", h, 100, 100, 0)
	l.Current.Z = z
	l.Drawing.Z = z
	return l
}

func handles(v *LayerVector, reverse bool) []Handle {
	var out []Handle
	visit := func(l *Layer) { out = append(out, l.Handle) }
	if reverse {
		v.TraverseInReverseZOrder(visit)
	} else {
		v.TraverseInZOrder(visit)
	}
	return out
}

func TestAddKeepsZOrder(t *testing.T) {
	v := NewLayerVector(StateDrawing)
	v.Add(makeLayer(1, 3))
	v.Add(makeLayer(2, 1))
	v.Add(makeLayer(3, 2))

	got := handles(&v, false)
	want := []Handle{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("z-order traversal = %v, want %v", got, want)
		}
	}
}

func TestHandleBreaksZTies(t *testing.T) {
	v := NewLayerVector(StateDrawing)
	v.Add(makeLayer(5, 1))
	v.Add(makeLayer(2, 1))
	v.Add(makeLayer(9, 1))

	got := handles(&v, false)
	want := []Handle{2, 5, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tied-z traversal = %v, want %v", got, want)
		}
	}
}

func TestReverseTraversalIsFrontToBack(t *testing.T) {
	v := NewLayerVector(StateDrawing)
	v.Add(makeLayer(1, 1))
	v.Add(makeLayer(2, 2))

	got := handles(&v, true)
	if got[0] != 2 || got[1] != 1 {
		t.Errorf("reverse traversal = %v, want [2 1]", got)
	}
}

func TestRemoveAndGet(t *testing.T) {
	v := NewLayerVector(StateDrawing)
	v.Add(makeLayer(1, 1))
	v.Add(makeLayer(2, 2))

	if v.Get(1) == nil {
		t.Fatal("Get(1) returned nil")
	}
	if !v.Remove(1) {
		t.Fatal("Remove(1) returned false")
	}
	if v.Remove(1) {
		t.Error("second Remove(1) should return false")
	}
	if v.Len() != 1 || v.Contains(1) {
		t.Error("layer 1 still present after removal")
	}
}

// Moving a layer's z re-sorts it among its siblings; equal z falls
// back to handle order so traversal stays deterministic.
func TestReorderAfterZChange(t *testing.T) {
	v := NewLayerVector(StateDrawing)
	l := makeLayer(10, 3)
	m := makeLayer(11, 1)
	n := makeLayer(12, 2)
	v.Add(l)
	v.Add(m)
	v.Add(n)

	l.Drawing.Z = 1
	v.Reorder(l.Handle)

	got := handles(&v, true)
	// Front-to-back visits highest z first: N(2), then the z=1 tie in
	// descending handle order: M(h11), L(h10).
	want := []Handle{12, 11, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("front-to-back after reorder = %v, want %v", got, want)
		}
	}
}

func TestVectorOrdersBySelectedStateSet(t *testing.T) {
	cur := NewLayerVector(StateCurrent)
	l := makeLayer(1, 5)
	m := makeLayer(2, 1)
	cur.Add(l)
	cur.Add(m)

	// Change current z only; drawing z is untouched.
	l.Current.Z = 0
	cur.Reorder(l.Handle)

	got := handles(&cur, false)
	if got[0] != 1 {
		t.Errorf("current-set ordering ignored current z: %v", got)
	}

	drw := NewLayerVector(StateDrawing)
	drw.Add(l)
	drw.Add(m)
	got = handles(&drw, false)
	if got[0] != 2 {
		t.Errorf("drawing-set ordering used current z: %v", got)
	}
}

func TestCopyFromSharesLayers(t *testing.T) {
	cur := NewLayerVector(StateCurrent)
	l := makeLayer(1, 1)
	cur.Add(l)

	drw := NewLayerVector(StateDrawing)
	drw.CopyFrom(&cur)

	if drw.Len() != 1 {
		t.Fatalf("copy has %d layers, want 1", drw.Len())
	}
	if drw.Get(1) != l {
		t.Error("CopyFrom should share layer pointers, not clone")
	}
	if drw.StateSet() != StateDrawing {
		t.Error("CopyFrom must preserve the receiver's state set")
	}
}
