package scene

import (
	"image"
	"testing"

	"github.com/gogpu/compose/display"
)

func TestCommitState(t *testing.T) {
	l := NewLayer("app", 1, 100, 100, 0)
	if l.CommitState() {
		t.Error("fresh layer should have nothing to commit")
	}

	l.Current.Alpha = 0.5
	if !l.CommitState() {
		t.Fatal("changed state should commit")
	}
	if l.Drawing.Alpha != 0.5 {
		t.Errorf("drawing alpha = %v, want 0.5", l.Drawing.Alpha)
	}
	if l.CommitState() {
		t.Error("second commit of same state should report no change")
	}
}

func TestStateCopyFrom(t *testing.T) {
	cur := NewState(StateCurrent)
	drw := NewState(StateDrawing)

	l := NewLayer("app", 1, 64, 64, 0)
	cur.Layers.Add(l)
	cur.Displays[7] = display.DeviceState{Name: "internal", LayerStack: 0}
	cur.ColorMatrix[0] = 0.5
	cur.ColorMatrixChanged = true

	drw.CopyFrom(cur)

	if drw.Layers.Len() != 1 || drw.Layers.Get(1) != l {
		t.Error("layer vector not copied structurally")
	}
	if _, ok := drw.Displays[7]; !ok {
		t.Error("display table not copied")
	}
	if drw.ColorMatrix[0] != 0.5 {
		t.Error("changed color matrix not copied")
	}

	// Copy-on-write: an unchanged matrix must not overwrite drawing's.
	cur.ColorMatrixChanged = false
	cur.ColorMatrix[0] = 0.9
	drw.CopyFrom(cur)
	if drw.ColorMatrix[0] != 0.5 {
		t.Error("unchanged color matrix was copied")
	}

	// Removing from current then re-copying drops the layer.
	cur.Layers.Remove(1)
	delete(cur.Displays, 7)
	drw.CopyFrom(cur)
	if drw.Layers.Len() != 0 || len(drw.Displays) != 0 {
		t.Error("copy did not converge to emptied current state")
	}
}

func TestScreenBounds(t *testing.T) {
	l := NewLayer("app", 1, 100, 50, 0)
	l.Drawing.Transform = Transform{SX: 1, SY: 1, TX: 10, TY: 10}
	got := l.Drawing.ScreenBounds()
	if got != image.Rect(10, 10, 110, 60) {
		t.Errorf("screen bounds = %v", got)
	}
}

func TestLayerLatch(t *testing.T) {
	l := NewLayer("app", 1, 8, 8, 3)
	if _, latched := l.LatchFrame(); latched {
		t.Fatal("latch with empty queue should do nothing")
	}

	l.Queue().Queue(image.NewRGBA(image.Rect(0, 0, 8, 8)), image.Rectangle{})
	l.Queue().Queue(image.NewRGBA(image.Rect(0, 0, 8, 8)), image.Rectangle{})

	released, latched := l.LatchFrame()
	if !latched {
		t.Fatal("latch failed with queued frames")
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
	if l.Latched == nil || l.Latched.Seq != 2 {
		t.Errorf("latched frame = %+v, want seq 2", l.Latched)
	}
}
