// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package region implements 2D region algebra over axis-aligned
// rectangles.
//
// A Region is a set of pixels represented as a list of disjoint,
// normalized rectangles sorted in (y, x) scan order. Regions are the
// currency of the composition pipeline: per-layer visible and opaque
// regions, per-display dirty regions, and the uncovered "wormhole"
// area all use this type.
//
// Regions are value types; operations ending in Self mutate the
// receiver, the rest return a new Region. Regions are not safe for
// concurrent mutation.
package region

import (
	"image"
	"sort"
)

// Region is a set of disjoint rectangles in scan order.
// The zero value is an empty region, ready for use.
type Region struct {
	rects []image.Rectangle
}

// FromRect returns a region covering a single rectangle.
// An empty rectangle yields an empty region.
func FromRect(r image.Rectangle) Region {
	r = r.Canon()
	if r.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{r}}
}

// IsEmpty reports whether the region covers no pixels.
func (rg *Region) IsEmpty() bool {
	return len(rg.rects) == 0
}

// Bounds returns the smallest rectangle enclosing the region.
func (rg *Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range rg.rects {
		b = b.Union(r)
	}
	return b
}

// Rects returns the region's rectangles in scan order.
// The returned slice is shared with the region; callers must not modify it.
func (rg *Region) Rects() []image.Rectangle {
	return rg.rects
}

// Area returns the number of pixels covered.
func (rg *Region) Area() int {
	a := 0
	for _, r := range rg.rects {
		a += r.Dx() * r.Dy()
	}
	return a
}

// Copy returns an independent copy of the region.
func (rg *Region) Copy() Region {
	if len(rg.rects) == 0 {
		return Region{}
	}
	out := make([]image.Rectangle, len(rg.rects))
	copy(out, rg.rects)
	return Region{rects: out}
}

// Clear empties the region.
func (rg *Region) Clear() {
	rg.rects = rg.rects[:0]
}

// Contains reports whether the point lies inside the region.
func (rg *Region) Contains(p image.Point) bool {
	for _, r := range rg.rects {
		if p.In(r) {
			return true
		}
	}
	return false
}

// Intersects reports whether any part of rect overlaps the region.
func (rg *Region) Intersects(rect image.Rectangle) bool {
	for _, r := range rg.rects {
		if r.Overlaps(rect) {
			return true
		}
	}
	return false
}

// Translate shifts the whole region by (dx, dy).
func (rg *Region) Translate(dx, dy int) {
	for i := range rg.rects {
		rg.rects[i] = rg.rects[i].Add(image.Pt(dx, dy))
	}
}

// OrSelf adds rect to the region.
func (rg *Region) OrSelf(rect image.Rectangle) {
	rect = rect.Canon()
	if rect.Empty() {
		return
	}
	// Keep existing rects; insert only the parts of rect they don't cover.
	pieces := []image.Rectangle{rect}
	for _, r := range rg.rects {
		pieces = subtractFromAll(pieces, r)
		if len(pieces) == 0 {
			return
		}
	}
	rg.rects = append(rg.rects, pieces...)
	rg.normalize()
}

// Or returns the union of two regions.
func Or(a, b Region) Region {
	out := a.Copy()
	for _, r := range b.rects {
		out.OrSelf(r)
	}
	return out
}

// AndSelf intersects the region with rect.
func (rg *Region) AndSelf(rect image.Rectangle) {
	rect = rect.Canon()
	out := rg.rects[:0]
	for _, r := range rg.rects {
		if ir := r.Intersect(rect); !ir.Empty() {
			out = append(out, ir)
		}
	}
	rg.rects = out
	rg.normalize()
}

// And returns the intersection of two regions.
func And(a, b Region) Region {
	var out Region
	for _, ra := range a.rects {
		for _, rb := range b.rects {
			if ir := ra.Intersect(rb); !ir.Empty() {
				out.rects = append(out.rects, ir)
			}
		}
	}
	out.normalize()
	return out
}

// SubtractSelf removes rect from the region.
func (rg *Region) SubtractSelf(rect image.Rectangle) {
	rect = rect.Canon()
	if rect.Empty() || len(rg.rects) == 0 {
		return
	}
	rg.rects = subtractFromAll(rg.rects, rect)
	rg.normalize()
}

// SubtractRegionSelf removes every rectangle of other from the region.
func (rg *Region) SubtractRegionSelf(other Region) {
	for _, r := range other.rects {
		rg.SubtractSelf(r)
	}
}

// Subtract returns a minus b.
func Subtract(a, b Region) Region {
	out := a.Copy()
	out.SubtractRegionSelf(b)
	return out
}

// subtractFromAll returns the parts of each rectangle in rects not
// covered by sub.
func subtractFromAll(rects []image.Rectangle, sub image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects)+3)
	for _, r := range rects {
		out = appendDifference(out, r, sub)
	}
	return out
}

// appendDifference appends r minus sub to dst. The difference of two
// rectangles is at most four rectangles: the bands above and below the
// overlap, and the left/right slivers beside it.
func appendDifference(dst []image.Rectangle, r, sub image.Rectangle) []image.Rectangle {
	ov := r.Intersect(sub)
	if ov.Empty() {
		return append(dst, r)
	}
	if top := image.Rect(r.Min.X, r.Min.Y, r.Max.X, ov.Min.Y); !top.Empty() {
		dst = append(dst, top)
	}
	if left := image.Rect(r.Min.X, ov.Min.Y, ov.Min.X, ov.Max.Y); !left.Empty() {
		dst = append(dst, left)
	}
	if right := image.Rect(ov.Max.X, ov.Min.Y, r.Max.X, ov.Max.Y); !right.Empty() {
		dst = append(dst, right)
	}
	if bottom := image.Rect(r.Min.X, ov.Max.Y, r.Max.X, r.Max.Y); !bottom.Empty() {
		dst = append(dst, bottom)
	}
	return dst
}

// normalize sorts rects into scan order and merges mergeable neighbors.
// Rectangles are assumed disjoint on entry.
func (rg *Region) normalize() {
	if len(rg.rects) < 2 {
		return
	}
	sort.Slice(rg.rects, func(i, j int) bool {
		a, b := rg.rects[i], rg.rects[j]
		if a.Min.Y != b.Min.Y {
			return a.Min.Y < b.Min.Y
		}
		return a.Min.X < b.Min.X
	})
	// Merge horizontally adjacent rects in the same band.
	out := rg.rects[:1]
	for _, r := range rg.rects[1:] {
		last := &out[len(out)-1]
		if r.Min.Y == last.Min.Y && r.Max.Y == last.Max.Y && r.Min.X == last.Max.X {
			last.Max.X = r.Max.X
			continue
		}
		out = append(out, r)
	}
	// Merge vertically adjacent rects with the same x span.
	merged := out[:1]
	for _, r := range out[1:] {
		done := false
		for i := range merged {
			m := &merged[i]
			if r.Min.X == m.Min.X && r.Max.X == m.Max.X && r.Min.Y == m.Max.Y {
				m.Max.Y = r.Max.Y
				done = true
				break
			}
		}
		if !done {
			merged = append(merged, r)
		}
	}
	rg.rects = merged
}
