package scene

import (
	"image"
	"testing"
)

func TestTransformIdentity(t *testing.T) {
	id := IdentityTransform()
	if !id.IsIdentity() {
		t.Error("IdentityTransform().IsIdentity() = false")
	}
	if !id.IsTranslationOnly() {
		t.Error("identity should count as translation-only")
	}
	r := image.Rect(3, 4, 10, 20)
	if got := id.MapRect(r); got != r {
		t.Errorf("identity MapRect(%v) = %v", r, got)
	}
}

func TestTransformMapRect(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   image.Rectangle
		want image.Rectangle
	}{
		{"translate", Transform{SX: 1, SY: 1, TX: 10, TY: 5}, image.Rect(0, 0, 4, 4), image.Rect(10, 5, 14, 9)},
		{"scale", Transform{SX: 2, SY: 3}, image.Rect(1, 1, 3, 3), image.Rect(2, 3, 6, 9)},
		{"scale and translate", Transform{SX: 2, SY: 2, TX: -1, TY: -1}, image.Rect(0, 0, 2, 2), image.Rect(-1, -1, 3, 3)},
		{"fractional rounds outward", Transform{SX: 0.5, SY: 0.5}, image.Rect(1, 1, 3, 3), image.Rect(0, 0, 2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.MapRect(tt.in); got != tt.want {
				t.Errorf("MapRect(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransformIsTranslationOnly(t *testing.T) {
	if tr := (Transform{SX: 2, SY: 2, TX: 10, TY: 20}); tr.IsTranslationOnly() {
		t.Error("scaling transform reported translation-only")
	}
	if tr := (Transform{SX: 1, SY: 1, TX: 5, TY: 5}); !tr.IsTranslationOnly() {
		t.Error("translation not recognized")
	}
}

func TestTransformNegativeScaleNormalizes(t *testing.T) {
	tr := Transform{SX: -1, SY: 1}
	got := tr.MapRect(image.Rect(0, 0, 4, 2))
	if got != image.Rect(-4, 0, 0, 2) {
		t.Errorf("mirrored MapRect = %v, want (-4,0)-(0,2)", got)
	}
	if got.Min.X >= got.Max.X {
		t.Error("mapped rectangle not normalized")
	}
}

func TestTransformConcat(t *testing.T) {
	scale := Transform{SX: 2, SY: 2}
	move := Transform{SX: 1, SY: 1, TX: 3, TY: 4}

	// Apply move first, then scale: the translation is scaled too.
	got := scale.Concat(move)
	want := Transform{SX: 2, SY: 2, TX: 6, TY: 8}
	if got != want {
		t.Errorf("scale.Concat(move) = %+v, want %+v", got, want)
	}

	// The other order leaves the translation unscaled.
	got = move.Concat(scale)
	want = Transform{SX: 2, SY: 2, TX: 3, TY: 4}
	if got != want {
		t.Errorf("move.Concat(scale) = %+v, want %+v", got, want)
	}
}
