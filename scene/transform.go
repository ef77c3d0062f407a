// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"image"

	"github.com/chewxy/math32"
)

// Transform is a layer's 2D placement: scale followed by translation.
// Rotation is expressed by the display orientation, not per layer, so a
// scale/offset pair covers every client-visible transform.
type Transform struct {
	SX, SY float32 // scale factors, 1 = identity
	TX, TY float32 // translation in layer-stack pixels
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{SX: 1, SY: 1}
}

const transformEpsilon = 1e-6

// IsIdentity reports whether the transform moves nothing.
func (t Transform) IsIdentity() bool {
	return math32.Abs(t.SX-1) < transformEpsilon &&
		math32.Abs(t.SY-1) < transformEpsilon &&
		math32.Abs(t.TX) < transformEpsilon &&
		math32.Abs(t.TY) < transformEpsilon
}

// IsTranslationOnly reports whether the transform scales nothing.
// Translation-only layers can be composited with a plain blit.
func (t Transform) IsTranslationOnly() bool {
	return math32.Abs(t.SX-1) < transformEpsilon &&
		math32.Abs(t.SY-1) < transformEpsilon
}

// MapRect maps a rectangle through the transform, rounding outward so
// the result always covers the true mapped area.
func (t Transform) MapRect(r image.Rectangle) image.Rectangle {
	x0 := t.SX*float32(r.Min.X) + t.TX
	y0 := t.SY*float32(r.Min.Y) + t.TY
	x1 := t.SX*float32(r.Max.X) + t.TX
	y1 := t.SY*float32(r.Max.Y) + t.TY
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return image.Rect(
		int(math32.Floor(x0)), int(math32.Floor(y0)),
		int(math32.Ceil(x1)), int(math32.Ceil(y1)),
	)
}

// Concat returns the transform equivalent to applying u first, then t.
func (t Transform) Concat(u Transform) Transform {
	return Transform{
		SX: t.SX * u.SX,
		SY: t.SY * u.SY,
		TX: t.SX*u.TX + t.TX,
		TY: t.SY*u.TY + t.TY,
	}
}
