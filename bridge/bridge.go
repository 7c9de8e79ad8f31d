// Package bridge provides the handoff queues between the real-time
// audio callback and the network threads. The callback side must
// never block: enqueue drops the oldest frame on overflow, dequeue
// reports underflow instead of waiting. The lock only ever covers a
// single queue operation, never I/O or codec work.
package bridge

import (
	"sync"

	"github.com/gammazero/deque"
)

// FrameQueue is a fixed-capacity single-producer single-consumer
// queue of PCM frames.
type FrameQueue struct {
	mu       sync.Mutex
	q        deque.Deque[[]byte]
	capacity int
}

func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{capacity: capacity}
}

// Enqueue adds a frame. On overflow the oldest queued frame is dropped
// to admit the newest, bounding latency instead of loss. It reports
// whether a frame was dropped.
func (f *FrameQueue) Enqueue(frame []byte) (dropped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.q.Len() >= f.capacity {
		f.q.PopFront()
		dropped = true
	}
	f.q.PushBack(frame)
	return dropped
}

// Dequeue removes the oldest frame. It never blocks; ok is false on an
// empty queue and the caller substitutes concealment output.
func (f *FrameQueue) Dequeue() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.q.Len() == 0 {
		return nil, false
	}
	return f.q.PopFront(), true
}

// Len returns the number of queued frames.
func (f *FrameQueue) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q.Len()
}

// Clear drops all queued frames.
func (f *FrameQueue) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.q.Clear()
}
