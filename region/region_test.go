package region

import (
	"image"
	"testing"
)

func TestEmptyRegion(t *testing.T) {
	var rg Region
	if !rg.IsEmpty() {
		t.Error("zero value should be empty")
	}
	if rg.Area() != 0 {
		t.Errorf("empty region area = %d, want 0", rg.Area())
	}
	if !rg.Bounds().Empty() {
		t.Errorf("empty region bounds = %v, want empty", rg.Bounds())
	}
}

func TestFromRect(t *testing.T) {
	rg := FromRect(image.Rect(10, 10, 30, 20))
	if rg.Area() != 200 {
		t.Errorf("area = %d, want 200", rg.Area())
	}
	if got := rg.Bounds(); got != image.Rect(10, 10, 30, 20) {
		t.Errorf("bounds = %v", got)
	}
	if degenerate := FromRect(image.Rect(5, 5, 5, 10)); !degenerate.IsEmpty() {
		t.Error("degenerate rect should yield empty region")
	}
}

func TestOrSelfDisjoint(t *testing.T) {
	rg := FromRect(image.Rect(0, 0, 10, 10))
	rg.OrSelf(image.Rect(20, 0, 30, 10))
	if rg.Area() != 200 {
		t.Errorf("area = %d, want 200", rg.Area())
	}
	checkDisjoint(t, rg)
}

func TestOrSelfOverlap(t *testing.T) {
	rg := FromRect(image.Rect(0, 0, 10, 10))
	rg.OrSelf(image.Rect(5, 0, 15, 10))
	if rg.Area() != 150 {
		t.Errorf("area = %d, want 150", rg.Area())
	}
	checkDisjoint(t, rg)

	// Fully covered rect adds nothing.
	rg.OrSelf(image.Rect(2, 2, 8, 8))
	if rg.Area() != 150 {
		t.Errorf("area after covered union = %d, want 150", rg.Area())
	}
}

func TestAdjacentRectsMerge(t *testing.T) {
	rg := FromRect(image.Rect(0, 0, 10, 10))
	rg.OrSelf(image.Rect(10, 0, 20, 10))
	if len(rg.Rects()) != 1 {
		t.Errorf("adjacent rects not merged: %v", rg.Rects())
	}
	rg.OrSelf(image.Rect(0, 10, 20, 20))
	if len(rg.Rects()) != 1 {
		t.Errorf("vertically adjacent rects not merged: %v", rg.Rects())
	}
	if rg.Area() != 400 {
		t.Errorf("area = %d, want 400", rg.Area())
	}
}

func TestSubtractSelf(t *testing.T) {
	rg := FromRect(image.Rect(0, 0, 20, 20))
	rg.SubtractSelf(image.Rect(5, 5, 15, 15))
	if rg.Area() != 300 {
		t.Errorf("area = %d, want 300", rg.Area())
	}
	if rg.Contains(image.Pt(10, 10)) {
		t.Error("hole should not be contained")
	}
	if !rg.Contains(image.Pt(0, 0)) || !rg.Contains(image.Pt(19, 19)) {
		t.Error("corners should remain")
	}
	checkDisjoint(t, rg)

	rg.SubtractSelf(image.Rect(0, 0, 20, 20))
	if !rg.IsEmpty() {
		t.Error("subtracting everything should leave empty region")
	}
}

func TestAnd(t *testing.T) {
	a := FromRect(image.Rect(0, 0, 10, 10))
	b := FromRect(image.Rect(5, 5, 20, 20))
	got := And(a, b)
	if got.Area() != 25 {
		t.Errorf("area = %d, want 25", got.Area())
	}
	if got.Bounds() != image.Rect(5, 5, 10, 10) {
		t.Errorf("bounds = %v", got.Bounds())
	}
}

func TestAndSelfClip(t *testing.T) {
	rg := FromRect(image.Rect(-10, -10, 30, 30))
	rg.OrSelf(image.Rect(100, 100, 200, 200))
	rg.AndSelf(image.Rect(0, 0, 50, 50))
	if got := rg.Bounds(); got != image.Rect(0, 0, 30, 30) {
		t.Errorf("clipped bounds = %v", got)
	}
	checkDisjoint(t, rg)
}

func TestOcclusionAccumulation(t *testing.T) {
	// Front-to-back accumulation: each layer's visible region is its
	// frame minus the opaque coverage in front of it; opaque regions
	// must never overlap.
	display := image.Rect(0, 0, 100, 100)
	frames := []image.Rectangle{
		image.Rect(10, 10, 60, 60), // front, opaque
		image.Rect(40, 40, 90, 90), // behind, opaque
		image.Rect(0, 0, 100, 100), // wallpaper
	}

	var opaque Region
	var visibles []Region
	for _, f := range frames {
		vis := FromRect(f.Intersect(display))
		vis.SubtractRegionSelf(opaque)
		visibles = append(visibles, vis)
		opaque.OrSelf(f.Intersect(display))
	}

	// No two visible regions overlap.
	for i := range visibles {
		for j := i + 1; j < len(visibles); j++ {
			if overlap := And(visibles[i], visibles[j]); overlap.Area() != 0 {
				t.Errorf("visible regions %d and %d overlap", i, j)
			}
		}
	}
	// Union of visible regions equals total coverage, clipped to display.
	var union Region
	for _, v := range visibles {
		union = Or(union, v)
	}
	if union.Area() != 100*100 {
		t.Errorf("union area = %d, want %d", union.Area(), 100*100)
	}
	if !union.Bounds().In(display) {
		t.Errorf("union exceeds display bounds: %v", union.Bounds())
	}
}

func TestTranslate(t *testing.T) {
	rg := FromRect(image.Rect(0, 0, 10, 10))
	rg.Translate(5, 7)
	if got := rg.Bounds(); got != image.Rect(5, 7, 15, 17) {
		t.Errorf("translated bounds = %v", got)
	}
}

func TestCopyIndependence(t *testing.T) {
	a := FromRect(image.Rect(0, 0, 10, 10))
	b := a.Copy()
	b.SubtractSelf(image.Rect(0, 0, 10, 10))
	if a.IsEmpty() {
		t.Error("mutating copy changed original")
	}
}

// checkDisjoint verifies the region invariant: no two rectangles overlap.
func checkDisjoint(t *testing.T, rg Region) {
	t.Helper()
	rects := rg.Rects()
	for i := range rects {
		if rects[i].Empty() {
			t.Errorf("region contains empty rect %v", rects[i])
		}
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				t.Errorf("rects %v and %v overlap", rects[i], rects[j])
			}
		}
	}
}
