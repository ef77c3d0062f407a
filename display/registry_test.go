package display

import (
	"sync"
	"testing"
	"time"
)

func testConfigs() []Config {
	return []Config{
		{Width: 800, Height: 600, RefreshPeriod: 16 * time.Millisecond},
		{Width: 1920, Height: 1080, RefreshPeriod: 8 * time.Millisecond},
	}
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	token := r.AllocToken()
	d := NewDevice(token, 42, DeviceState{Name: "internal"}, testConfigs())
	r.Add(d)

	if got := r.Get(token); got != d {
		t.Fatal("Get did not return added device")
	}
	if got := r.ByHWCID(42); got != d {
		t.Fatal("ByHWCID did not return added device")
	}

	r.Remove(token)
	if r.Get(token) != nil {
		t.Error("device still present after Remove")
	}
	if r.ByHWCID(42) != nil {
		t.Error("physical mapping still present after Remove")
	}
}

func TestTokensAreUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[Token]bool)
	for i := 0; i < 100; i++ {
		tok := r.AllocToken()
		if tok == InvalidToken {
			t.Fatal("allocated InvalidToken")
		}
		if seen[tok] {
			t.Fatalf("token %d allocated twice", tok)
		}
		seen[tok] = true
	}
}

func TestDefaultIsLowestHWCID(t *testing.T) {
	r := NewRegistry()
	ext := NewDevice(r.AllocToken(), 7, DeviceState{Name: "external"}, testConfigs())
	internal := NewDevice(r.AllocToken(), 1, DeviceState{Name: "internal"}, testConfigs())
	virt := NewDevice(r.AllocToken(), 0, DeviceState{Name: "virtual", Virtual: true}, testConfigs())
	r.Add(ext)
	r.Add(internal)
	r.Add(virt)

	if got := r.Default(); got != internal {
		t.Errorf("Default = %v, want internal display", got)
	}
}

func TestHotplugQueueDrain(t *testing.T) {
	r := NewRegistry()
	r.QueueHotplug(HotplugEvent{HWCID: 1, Connected: true})
	r.QueueHotplug(HotplugEvent{HWCID: 2, Connected: true})
	r.QueueHotplug(HotplugEvent{HWCID: 1, Connected: false})

	if !r.HasPendingHotplug() {
		t.Fatal("expected pending hotplug events")
	}
	events := r.DrainHotplug()
	if len(events) != 3 {
		t.Fatalf("drained %d events, want 3", len(events))
	}
	// Arrival order preserved.
	if events[0].HWCID != 1 || !events[0].Connected {
		t.Errorf("first event = %+v", events[0])
	}
	if events[2].HWCID != 1 || events[2].Connected {
		t.Errorf("last event = %+v", events[2])
	}
	if r.HasPendingHotplug() {
		t.Error("events still pending after drain")
	}
	if len(r.DrainHotplug()) != 0 {
		t.Error("second drain should be empty")
	}
}

func TestHotplugQueueConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.QueueHotplug(HotplugEvent{HWCID: id, Connected: true})
			}
		}(uint64(i + 1))
	}
	wg.Wait()
	if got := len(r.DrainHotplug()); got != 800 {
		t.Errorf("drained %d events, want 800", got)
	}
}

func TestSetActiveConfig(t *testing.T) {
	d := NewDevice(1, 1, DeviceState{Name: "internal"}, testConfigs())
	if d.Config().Width != 800 {
		t.Fatalf("initial config width = %d, want 800", d.Config().Width)
	}
	if err := d.SetActiveConfig(1); err != nil {
		t.Fatalf("SetActiveConfig(1): %v", err)
	}
	if d.Config().Width != 1920 {
		t.Errorf("active config width = %d, want 1920", d.Config().Width)
	}
	if d.Target.Bounds() != d.Bounds() {
		t.Error("target not reallocated for new config")
	}
	if d.Dirty.Area() != 1920*1080 {
		t.Error("config switch should dirty the whole display")
	}
	if err := d.SetActiveConfig(5); err == nil {
		t.Error("out-of-range config should fail")
	}
}

func TestStatsBuckets(t *testing.T) {
	var s Stats
	base := time.Unix(0, 0)
	s.RecordVsync(base, 16*time.Millisecond)

	s.RecordFrame(base)
	s.RecordFrame(base.Add(16 * time.Millisecond))  // 1 period
	s.RecordFrame(base.Add(48 * time.Millisecond))  // +2 periods
	s.RecordFrame(base.Add(300 * time.Millisecond)) // overflow

	snap := s.Snapshot()
	if snap.Frames != 4 {
		t.Errorf("frames = %d, want 4", snap.Frames)
	}
	if snap.Buckets[0] != 1 {
		t.Errorf("bucket[0] = %d, want 1", snap.Buckets[0])
	}
	if snap.Buckets[1] != 1 {
		t.Errorf("bucket[1] = %d, want 1", snap.Buckets[1])
	}
	if snap.Buckets[frameBuckets-1] != 1 {
		t.Errorf("overflow bucket = %d, want 1", snap.Buckets[frameBuckets-1])
	}
}
