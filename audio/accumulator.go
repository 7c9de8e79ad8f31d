// Package audio provides the PCM plumbing around the stream engine:
// frame accumulation, concealment shaping, block fitting, resampling
// and WAV file endpoints. All PCM is interleaved 16 bit little endian.
package audio

import (
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Accumulator collects variable-size capture blocks and cuts them into
// exact frame-size chunks for encoding. When the buffer is full the
// oldest audio is discarded so latency stays bounded.
type Accumulator struct {
	mu         sync.Mutex
	rb         *ringbuffer.RingBuffer
	frameBytes int
	dropped    int
}

// NewAccumulator creates an accumulator holding up to capacityFrames
// frames of frameBytes each.
func NewAccumulator(frameBytes, capacityFrames int) *Accumulator {
	return &Accumulator{
		rb:         ringbuffer.New(frameBytes * capacityFrames),
		frameBytes: frameBytes,
	}
}

// Write appends a capture block. On overflow the oldest bytes are
// discarded to make room, never the incoming block.
func (a *Accumulator) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if free := a.rb.Free(); free < len(p) {
		scratch := make([]byte, len(p)-free)
		_, _ = a.rb.Read(scratch)
		a.dropped += len(scratch)
	}
	return a.rb.Write(p)
}

// NextFrame returns one complete frame, or false when less than a full
// frame is buffered. The returned slice is owned by the caller.
func (a *Accumulator) NextFrame() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rb.Length() < a.frameBytes {
		return nil, false
	}

	frame := make([]byte, a.frameBytes)
	_, _ = a.rb.Read(frame)
	return frame, true
}

// Buffered returns the number of complete frames currently held.
func (a *Accumulator) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rb.Length() / a.frameBytes
}

// Dropped returns how many bytes were discarded due to overflow.
func (a *Accumulator) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Reset discards all buffered audio.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rb.Reset()
	a.dropped = 0
}
