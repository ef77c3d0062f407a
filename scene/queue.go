package scene

import (
	"image"
	"sync"
)

// DefaultQueueDepth is the frame queue depth when none is configured.
// Three entries correspond to triple buffering.
const DefaultQueueDepth = 3

// FrameQueue is a layer's bounded producer queue. Producers queue
// frames from arbitrary goroutines; the dispatch goroutine latches the
// newest frame each tick. The queue never blocks either side: when a
// producer outruns the consumer, the oldest queued frame is dropped and
// counted as released.
type FrameQueue struct {
	mu      sync.Mutex
	frames  []*Frame
	depth   int
	nextSeq uint64

	// queued counts frames ever queued; released counts frames returned
	// to the producer without being displayed.
	queued   uint64
	released uint64
}

// NewFrameQueue creates a queue holding at most depth frames.
// A non-positive depth selects DefaultQueueDepth.
func NewFrameQueue(depth int) *FrameQueue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &FrameQueue{depth: depth}
}

// Queue adds a frame of content. If the queue is full the oldest frame
// is dropped so producers are never blocked beyond one queue depth.
// Returns the sequence number assigned to the frame.
func (q *FrameQueue) Queue(img *image.RGBA, damage image.Rectangle) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	q.queued++
	q.frames = append(q.frames, &Frame{Seq: q.nextSeq, Image: img, Damage: damage})
	if len(q.frames) > q.depth {
		over := len(q.frames) - q.depth
		q.released += uint64(over)
		q.frames = append(q.frames[:0], q.frames[over:]...)
	}
	return q.nextSeq
}

// HasNextFrame reports whether a frame is waiting to be latched.
func (q *FrameQueue) HasNextFrame() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) > 0
}

// AcquireLatest removes and returns the newest queued frame. Older
// queued frames are dropped and counted as released; their count is
// returned. Returns (nil, 0) when the queue is empty.
func (q *FrameQueue) AcquireLatest() (*Frame, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	if n == 0 {
		return nil, 0
	}
	latest := q.frames[n-1]
	dropped := n - 1
	q.released += uint64(dropped)
	q.frames = q.frames[:0]
	return latest, dropped
}

// Abandon drops every queued frame without latching and returns how
// many were released.
func (q *FrameQueue) Abandon() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.released += uint64(n)
	q.frames = q.frames[:0]
	return n
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Counts returns the lifetime queued and released frame counts.
func (q *FrameQueue) Counts() (queued, released uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued, q.released
}
