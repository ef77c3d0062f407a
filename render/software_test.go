package render

import (
	"image"
	"image/color"
	"testing"
)

func solidRGBA(r image.Rectangle, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestComposeOpaqueLayer(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 16, 16))
	red := solidRGBA(image.Rect(0, 0, 8, 8), color.RGBA{R: 0xff, A: 0xff})

	layers := []ClientLayer{{
		Source:     red,
		SourceCrop: image.Rect(0, 0, 8, 8),
		DestFrame:  image.Rect(4, 4, 12, 12),
		Visible:    []image.Rectangle{image.Rect(4, 4, 12, 12)},
		Alpha:      1,
		Opaque:     true,
	}}
	r := NewSoftware()
	if err := r.ComposeLayers(target, layers, []image.Rectangle{target.Bounds()}); err != nil {
		t.Fatal(err)
	}

	if got := target.RGBAAt(6, 6); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("inside layer = %v, want red", got)
	}
	if got := target.RGBAAt(0, 0); got != (color.RGBA{A: 0xff}) {
		t.Errorf("outside layer = %v, want opaque black", got)
	}
}

func TestComposeZOrder(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 8, 8))
	red := solidRGBA(image.Rect(0, 0, 8, 8), color.RGBA{R: 0xff, A: 0xff})
	green := solidRGBA(image.Rect(0, 0, 8, 8), color.RGBA{G: 0xff, A: 0xff})

	full := []image.Rectangle{image.Rect(0, 0, 8, 8)}
	layers := []ClientLayer{
		{Source: red, SourceCrop: red.Bounds(), DestFrame: red.Bounds(), Visible: full, Alpha: 1, Opaque: true},
		{Source: green, SourceCrop: green.Bounds(), DestFrame: green.Bounds(), Visible: full, Alpha: 1, Opaque: true},
	}
	r := NewSoftware()
	r.ComposeLayers(target, layers, full)

	// Later entries are in front.
	if got := target.RGBAAt(4, 4); got != (color.RGBA{G: 0xff, A: 0xff}) {
		t.Errorf("pixel = %v, want front layer green", got)
	}
}

func TestComposeAlphaBlend(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 4, 4))
	white := solidRGBA(image.Rect(0, 0, 4, 4), color.RGBA{0xff, 0xff, 0xff, 0xff})

	full := []image.Rectangle{image.Rect(0, 0, 4, 4)}
	layers := []ClientLayer{{
		Source: white, SourceCrop: white.Bounds(), DestFrame: white.Bounds(),
		Visible: full, Alpha: 0.5, Opaque: true,
	}}
	r := NewSoftware()
	r.ComposeLayers(target, layers, full)

	got := target.RGBAAt(2, 2)
	if got.R < 0x78 || got.R > 0x88 {
		t.Errorf("blended pixel = %v, want about half white over black", got)
	}
	if got.A != 0xff {
		t.Errorf("alpha = %#x, want opaque", got.A)
	}
}

func TestComposeRespectsVisibleRegion(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 8, 8))
	red := solidRGBA(image.Rect(0, 0, 8, 8), color.RGBA{R: 0xff, A: 0xff})

	layers := []ClientLayer{{
		Source: red, SourceCrop: red.Bounds(), DestFrame: red.Bounds(),
		Visible: []image.Rectangle{image.Rect(0, 0, 4, 8)},
		Alpha:   1, Opaque: true,
	}}
	r := NewSoftware()
	r.ComposeLayers(target, layers, []image.Rectangle{target.Bounds()})

	if got := target.RGBAAt(2, 2); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("visible half = %v, want red", got)
	}
	if got := target.RGBAAt(6, 2); got != (color.RGBA{A: 0xff}) {
		t.Errorf("occluded half = %v, want black", got)
	}
}

func TestComposeDirtyRestriction(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 8, 8))
	// Seed the target with a sentinel to detect writes outside dirty.
	sentinel := color.RGBA{B: 0xff, A: 0xff}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			target.SetRGBA(x, y, sentinel)
		}
	}

	red := solidRGBA(image.Rect(0, 0, 8, 8), color.RGBA{R: 0xff, A: 0xff})
	full := []image.Rectangle{image.Rect(0, 0, 8, 8)}
	layers := []ClientLayer{{
		Source: red, SourceCrop: red.Bounds(), DestFrame: red.Bounds(),
		Visible: full, Alpha: 1, Opaque: true,
	}}
	r := NewSoftware()
	r.ComposeLayers(target, layers, []image.Rectangle{image.Rect(0, 0, 4, 4)})

	if got := target.RGBAAt(2, 2); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("dirty area = %v, want red", got)
	}
	if got := target.RGBAAt(6, 6); got != sentinel {
		t.Errorf("clean area = %v, want untouched sentinel", got)
	}
}

func TestComposeScaled(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 16, 16))
	red := solidRGBA(image.Rect(0, 0, 4, 4), color.RGBA{R: 0xff, A: 0xff})

	layers := []ClientLayer{{
		Source:     red,
		SourceCrop: image.Rect(0, 0, 4, 4),
		DestFrame:  image.Rect(0, 0, 16, 16),
		Visible:    []image.Rectangle{image.Rect(0, 0, 16, 16)},
		Alpha:      1,
		Opaque:     true,
	}}
	r := NewSoftware()
	r.ComposeLayers(target, layers, []image.Rectangle{target.Bounds()})

	if got := target.RGBAAt(8, 8); got.R < 0xf0 {
		t.Errorf("scaled interior = %v, want red", got)
	}
	if got := target.RGBAAt(15, 15); got.R < 0xf0 {
		t.Errorf("scaled corner = %v, want red", got)
	}
}

func TestComposeSkipsDegenerateLayers(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 4, 4))
	full := []image.Rectangle{target.Bounds()}
	layers := []ClientLayer{
		{Source: nil, Alpha: 1, Visible: full},
		{Source: image.NewRGBA(image.Rect(0, 0, 4, 4)), SourceCrop: image.Rect(0, 0, 4, 4),
			DestFrame: image.Rect(0, 0, 4, 4), Visible: full, Alpha: 0},
		{Source: image.NewRGBA(image.Rect(0, 0, 4, 4)), SourceCrop: image.Rect(0, 0, 4, 4),
			DestFrame: image.Rect(0, 0, 4, 4), Visible: nil, Alpha: 1},
	}
	r := NewSoftware()
	if err := r.ComposeLayers(target, layers, full); err != nil {
		t.Fatal(err)
	}
	if got := target.RGBAAt(1, 1); got != (color.RGBA{A: 0xff}) {
		t.Errorf("pixel = %v, want cleared black", got)
	}
	if err := r.Flush(); err != nil {
		t.Errorf("Flush() = %v", err)
	}
}
