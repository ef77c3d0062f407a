package fence

import (
	"testing"
	"time"
)

func TestSignalAndWait(t *testing.T) {
	f := New()
	if _, ok := f.SignaledAt(); ok {
		t.Fatal("new fence should not be signaled")
	}

	now := time.Now()
	go func() {
		f.Signal(now)
	}()

	if err := f.Wait(time.Second); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	at, ok := f.SignaledAt()
	if !ok {
		t.Fatal("fence should be signaled after Wait returns")
	}
	if !at.Equal(now) {
		t.Errorf("expected signal time %v, got %v", now, at)
	}
}

func TestWaitTimeout(t *testing.T) {
	f := New()
	if err := f.Wait(10 * time.Millisecond); err != ErrTimedOut {
		t.Errorf("expected ErrTimedOut, got %v", err)
	}
}

func TestFirstTimestampWins(t *testing.T) {
	f := New()
	first := time.Unix(100, 0)
	second := time.Unix(200, 0)
	f.Signal(first)
	f.Signal(second)

	at, _ := f.SignaledAt()
	if !at.Equal(first) {
		t.Errorf("expected first timestamp %v, got %v", first, at)
	}
}

func TestNoFence(t *testing.T) {
	if err := NoFence.Wait(time.Millisecond); err != nil {
		t.Errorf("NoFence should always be signaled, got %v", err)
	}
	if _, ok := NoFence.SignaledAt(); !ok {
		t.Error("NoFence should report signaled")
	}
}

func TestDoneChannel(t *testing.T) {
	f := New()
	select {
	case <-f.Done():
		t.Fatal("Done closed before Signal")
	default:
	}
	f.Signal(time.Now())
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Signal")
	}
}
