// Package audiolink streams low latency PCM audio over an unreliable
// datagram link. A Sender paces captured frames onto the wire, a
// Receiver reorders and smooths what arrives and hands steady frames
// to playback.
package audiolink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolink/audiolink-go/audio"
	"github.com/audiolink/audiolink-go/codec"
	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/sched"
	"github.com/audiolink/audiolink-go/transport"
	"github.com/audiolink/audiolink-go/wire"
)

// accumulatorFrames bounds how much captured audio may queue ahead of
// the transmission loop before the oldest is discarded.
const accumulatorFrames = 8

// Sender owns the capture-to-wire half of a stream. Captured audio is
// written through WriteCapture from any goroutine (typically an audio
// callback); a single transmission loop cuts it into frames, encodes
// them and paces them onto the connection.
type Sender struct {
	id     string
	logger *slog.Logger
	cfg    config.Config
	conn   transport.Conn
	enc    codec.Encoder
	col    *metrics.Collector
	sched  *sched.Scheduler
	acc    *audio.Accumulator

	statsFunc  func(metrics.Snapshot)
	statsEvery int

	seq         uint32
	lastDropped int

	closeOnce sync.Once
	close     chan struct{}
	done      chan struct{}
}

func NewSender(opts ...Option) (*Sender, error) {
	o := newOptions(opts...)
	if o.conn == nil {
		return nil, fmt.Errorf("sender: no connection configured")
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sender{
		id: o.id,
		logger: o.logger.With(
			slog.String("component", "sender"),
			slog.String("id", o.id),
		),
		cfg:        o.cfg,
		conn:       o.conn,
		enc:        o.encoder,
		col:        o.collector,
		acc:        audio.NewAccumulator(o.cfg.FrameBytes(), accumulatorFrames),
		statsFunc:  o.statsFunc,
		statsEvery: o.cfg.Logging.StatsInterval,
		close:      make(chan struct{}),
		done:       make(chan struct{}),
	}

	s.sched = sched.New(sched.Config{
		FramePeriod: o.cfg.FramePeriod(),
		RetryCount:  o.cfg.Send.RetryCount,
		RetryDelay:  time.Duration(o.cfg.Send.RetryDelayMS) * time.Millisecond,
	}, s.conn.Send, s.col)

	return s, nil
}

// WriteCapture appends a block of interleaved 16 bit PCM from the
// capture side. It never blocks; when the transmission loop falls
// behind the oldest buffered audio is dropped.
func (s *Sender) WriteCapture(p []byte) {
	_, _ = s.acc.Write(p)

	if d := s.acc.Dropped(); d > s.lastDropped {
		s.col.CountOverrun()
		s.lastDropped = d
	}
}

// Run drives the transmission loop until the context is cancelled or
// Close is called. When the capture side starves, silence is
// substituted so the wire cadence never stutters.
func (s *Sender) Run(ctx context.Context) error {
	s.logger.Info("sender running",
		slog.Int("sample_rate", s.cfg.Audio.SampleRate),
		slog.Int("channels", s.cfg.Audio.Channels),
		slog.Duration("frame_period", s.cfg.FramePeriod()),
	)

	defer func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Error("failed to close connection", slog.Any("err", err))
		}
		close(s.done)
		s.logger.Info("sender stopped", slog.Uint64("packets_sent", s.col.PacketsSent()))
	}()

	frameBytes := s.cfg.FrameBytes()
	frameSamples := s.cfg.FrameSamples()

	for {
		select {
		case <-s.close:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		pcm, ok := s.acc.NextFrame()
		if !ok {
			// capture starvation, keep the cadence with silence
			s.col.CountUnderrun()
			pcm = audio.Silence(frameBytes)
		}

		payload, err := s.enc.Encode(pcm, frameSamples)
		if err != nil {
			// drop the frame but hold the cadence
			s.logger.Error("encode failed", slog.Any("err", err))
			time.Sleep(s.cfg.FramePeriod())
			continue
		}

		s.sched.Send(wire.Encode(s.seq, uint64(time.Now().UnixMicro()), payload))
		s.seq++

		s.maybePublishStats()
	}
}

func (s *Sender) maybePublishStats() {
	if s.statsEvery <= 0 {
		return
	}
	sent := s.col.PacketsSent()
	if sent == 0 || sent%uint64(s.statsEvery) != 0 {
		return
	}

	snap := s.col.Snapshot()
	s.logger.Info("tx stats",
		slog.Uint64("packets_sent", snap.PacketsSent),
		slog.Uint64("send_errors", snap.SendErrors),
		slog.Uint64("send_retries", snap.SendRetries),
		slog.Uint64("underruns", snap.Underruns),
		slog.Float64("tx_packet_rate", snap.TxPacketRate),
		slog.Duration("adaptive_delay", snap.AdaptiveDelay),
	)
	if s.statsFunc != nil {
		s.statsFunc(snap)
	}
}

// Close stops the transmission loop and closes the connection, waiting
// up to timeout for the loop to exit.
func (s *Sender) Close(timeout time.Duration) error {
	s.closeOnce.Do(func() {
		close(s.close)
	})

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sender: close timed out after %s", timeout)
	}
}

// Metrics exposes the sender's collector.
func (s *Sender) Metrics() *metrics.Collector { return s.col }
