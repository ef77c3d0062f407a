// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Software composites on the CPU. Unscaled layers go through
// image/draw; scaled layers go through golang.org/x/image/draw with
// bilinear filtering.
type Software struct {
	scaler xdraw.Scaler
}

// NewSoftware creates a CPU compositor.
func NewSoftware() *Software {
	return &Software{scaler: xdraw.BiLinear}
}

var opaqueBlack = image.NewUniform(color.RGBA{A: 0xff})

// ComposeLayers implements Renderer.
func (s *Software) ComposeLayers(target *image.RGBA, layers []ClientLayer, dirty []image.Rectangle) error {
	bounds := target.Bounds()
	for _, d := range dirty {
		d = d.Intersect(bounds)
		if d.Empty() {
			continue
		}
		draw.Draw(target, d, opaqueBlack, image.Point{}, draw.Src)
		for i := range layers {
			s.drawLayer(target, &layers[i], d)
		}
	}
	return nil
}

func (s *Software) drawLayer(target *image.RGBA, l *ClientLayer, dirty image.Rectangle) {
	if l.Source == nil || l.Alpha <= 0 {
		return
	}
	for _, vis := range l.Visible {
		clip := vis.Intersect(l.DestFrame).Intersect(dirty)
		if clip.Empty() {
			continue
		}
		if l.DestFrame.Dx() != l.SourceCrop.Dx() || l.DestFrame.Dy() != l.SourceCrop.Dy() {
			s.drawScaled(target, l, clip)
			continue
		}
		sp := l.SourceCrop.Min.Add(clip.Min.Sub(l.DestFrame.Min))
		op := draw.Over
		if l.Opaque && l.Alpha >= 1 {
			op = draw.Src
		}
		if l.Alpha >= 1 {
			draw.Draw(target, clip, l.Source, sp, op)
		} else {
			mask := image.NewUniform(color.Alpha{A: uint8(l.Alpha*255 + 0.5)})
			draw.DrawMask(target, clip, l.Source, sp, mask, image.Point{}, draw.Over)
		}
	}
}

// drawScaled maps the whole source crop onto the destination frame and
// clips the result to clip. The SubImage keeps target coordinates, so
// the destination rectangle stays the full frame.
func (s *Software) drawScaled(target *image.RGBA, l *ClientLayer, clip image.Rectangle) {
	sub, ok := target.SubImage(clip).(*image.RGBA)
	if !ok || sub.Bounds().Empty() {
		return
	}
	op := xdraw.Over
	if l.Opaque && l.Alpha >= 1 {
		op = xdraw.Src
	}
	var opts *xdraw.Options
	if l.Alpha < 1 {
		opts = &xdraw.Options{
			SrcMask: image.NewUniform(color.Alpha{A: uint8(l.Alpha*255 + 0.5)}),
		}
		op = xdraw.Over
	}
	s.scaler.Scale(sub, l.DestFrame, l.Source, l.SourceCrop, op, opts)
}

// Flush implements Renderer. CPU composition is synchronous.
func (s *Software) Flush() error { return nil }

var _ Renderer = (*Software)(nil)
