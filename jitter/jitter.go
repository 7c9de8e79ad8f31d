// Package jitter implements the receive-side jitter buffer: it
// reorders packets that arrive out of sequence, absorbs arrival-time
// variance and keeps the playback cadence steady by synthesizing
// concealment frames for packets that never show up.
package jitter

import (
	"log/slog"
	"time"

	"github.com/audiolink/audiolink-go/audio"
	"github.com/audiolink/audiolink-go/codec"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/wire"
)

const (
	// emptyRunShrink is how many consecutive empty cycles the buffer
	// must see before the target depth is reduced.
	emptyRunShrink = 50
	// concealGain is the starting attenuation for concealment frames.
	concealGain = 0.5
)

// Config sizes the engine for one stream.
type Config struct {
	// MinDepth and MaxDepth bound the adaptive target depth, in frames.
	MinDepth int
	MaxDepth int
	// FramePeriod is the audio duration of one packet.
	FramePeriod time.Duration
	// FrameSamples is the PCM sample count per frame and channel.
	FrameSamples int
	// FrameBytes is the decoded PCM size of one frame.
	FrameBytes int
}

// Frame is one unit of playback output released by the engine.
type Frame struct {
	Sequence  uint32
	PCM       []byte
	Concealed bool
}

type slot struct {
	timestamp uint64
	payload   []byte
}

// Engine holds pending packets keyed by sequence number and releases
// them strictly in order. All state is owned by the processing loop
// calling Admit and ReleaseDue; the engine itself is not locked.
type Engine struct {
	cfg    Config
	dec    codec.Decoder
	col    *metrics.Collector
	logger *slog.Logger

	slots        map[uint32]slot
	expected     uint32
	started      bool
	targetDepth  int
	lastReleased []byte // decoded PCM of the most recent release
	waitingSince time.Time
	emptyCycles  int
}

func NewEngine(cfg Config, dec codec.Decoder, col *metrics.Collector) *Engine {
	e := &Engine{
		cfg:         cfg,
		dec:         dec,
		col:         col,
		logger:      slog.Default().With(slog.String("component", "jitter")),
		slots:       make(map[uint32]slot),
		targetDepth: cfg.MinDepth,
	}
	col.SetBufferDepth(e.targetDepth)
	return e
}

// Admit inserts a packet into the buffer. Packets older than the next
// expected sequence and duplicates of buffered packets are dropped.
func (e *Engine) Admit(p wire.Packet) bool {
	if !e.started {
		e.started = true
		e.expected = p.Sequence
	} else if seqBefore(p.Sequence, e.expected) {
		// too late to matter, its slot already played out
		return false
	}

	if _, ok := e.slots[p.Sequence]; ok {
		return false
	}

	e.slots[p.Sequence] = slot{timestamp: p.Timestamp, payload: p.Payload}
	e.col.SetOccupancy(len(e.slots))
	return true
}

// ReleaseDue runs one playback cycle. It returns the next in-order
// frame if it is available or overdue (concealed), and false when the
// engine decides to keep waiting. Invoked once per frame period by the
// processing loop, never from the audio callback.
func (e *Engine) ReleaseDue(now time.Time) (Frame, bool) {
	if !e.started {
		return Frame{}, false
	}

	s, ok := e.slots[e.expected]
	if ok {
		frame := e.release(s)
		e.adapt()
		return frame, true
	}

	// An empty buffer is starvation, not loss: without later packets
	// there is no evidence the stream moved past this slot, so the
	// wait clock only runs while something newer is buffered.
	if len(e.slots) == 0 {
		e.waitingSince = time.Time{}
		e.adapt()
		return Frame{}, false
	}

	if e.waitingSince.IsZero() {
		e.waitingSince = now
	}

	// The slot is missing but newer packets are queued behind it.
	// Wait while the buffer is still shallow and the slot has not been
	// overdue for longer than the target depth allows; afterwards
	// concede the packet and conceal the gap.
	waited := now.Sub(e.waitingSince)
	overdue := waited > time.Duration(e.targetDepth)*e.cfg.FramePeriod
	backedUp := len(e.slots) > e.targetDepth

	if !overdue && !backedUp {
		e.adapt()
		return Frame{}, false
	}

	frame := e.conceal()
	e.col.CountLost(1)
	e.adapt()
	return frame, true
}

func (e *Engine) release(s slot) Frame {
	seq := e.expected
	delete(e.slots, seq)
	e.advance()

	pcm, err := e.dec.Decode(s.payload, e.cfg.FrameSamples)
	if err != nil {
		// corrupt payload, treat like a lost slot
		e.logger.Debug("decode failed", slog.Uint64("seq", uint64(seq)), slog.Any("err", err))
		e.col.CountDecodeError()
		f := e.concealPCM()
		return Frame{Sequence: seq, PCM: f, Concealed: true}
	}

	e.lastReleased = pcm
	return Frame{Sequence: seq, PCM: pcm}
}

func (e *Engine) conceal() Frame {
	seq := e.expected
	e.advance()
	return Frame{Sequence: seq, PCM: e.concealPCM(), Concealed: true}
}

// concealPCM synthesizes substitute audio for a missing slot: an
// attenuated fade of the last released frame, or silence when the
// stream has produced nothing yet. The concealed frame becomes the new
// reference so repeated losses decay toward silence.
func (e *Engine) concealPCM() []byte {
	e.col.CountConcealed()

	if e.lastReleased == nil {
		return audio.Silence(e.cfg.FrameBytes)
	}

	pcm := audio.Attenuate(e.lastReleased, concealGain, 0)
	e.lastReleased = pcm
	return pcm
}

func (e *Engine) advance() {
	e.expected++
	e.waitingSince = time.Time{}
	e.col.SetOccupancy(len(e.slots))
}

// adapt trades latency for loss tolerance continuously: bursts grow
// the target depth, a sustained empty buffer shrinks it back.
func (e *Engine) adapt() {
	occ := len(e.slots)

	switch {
	case occ > e.targetDepth:
		if e.targetDepth < e.cfg.MaxDepth {
			e.targetDepth++
			e.logger.Debug("jitter buffer grown", slog.Int("target_depth", e.targetDepth))
		}
		e.emptyCycles = 0
	case occ == 0:
		e.emptyCycles++
		if e.emptyCycles >= emptyRunShrink && e.targetDepth > e.cfg.MinDepth {
			e.targetDepth--
			e.emptyCycles = 0
			e.logger.Debug("jitter buffer shrunk", slog.Int("target_depth", e.targetDepth))
		}
	default:
		e.emptyCycles = 0
	}

	e.col.SetBufferDepth(e.targetDepth)
	e.col.SetOccupancy(occ)
}

// Occupancy returns the number of buffered packets.
func (e *Engine) Occupancy() int { return len(e.slots) }

// TargetDepth returns the current adaptive depth in frames.
func (e *Engine) TargetDepth() int { return e.targetDepth }

// Reset clears all per-stream state for a restart.
func (e *Engine) Reset() {
	e.slots = make(map[uint32]slot)
	e.started = false
	e.expected = 0
	e.targetDepth = e.cfg.MinDepth
	e.lastReleased = nil
	e.waitingSince = time.Time{}
	e.emptyCycles = 0
	e.col.SetBufferDepth(e.targetDepth)
	e.col.SetOccupancy(0)
}

func seqBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
