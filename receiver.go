package audiolink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/pool/pbytes"

	"github.com/audiolink/audiolink-go/bridge"
	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/jitter"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/transport"
	"github.com/audiolink/audiolink-go/wire"
)

const (
	// recvTimeout bounds a single blocking receive so the loop stays
	// responsive to shutdown.
	recvTimeout = 100 * time.Millisecond
	// maxDatagram is the largest datagram the receive loop accepts.
	maxDatagram = 65536
	// playbackFrames bounds how many released frames may queue ahead
	// of the render side.
	playbackFrames = 8
)

// Receiver owns the wire-to-playback half of a stream. A receive loop
// pulls datagrams off the connection into the jitter buffer; a release
// loop ticks once per frame period and queues steady in-order frames
// for the render side, which drains them through ReadRender.
type Receiver struct {
	id     string
	logger *slog.Logger
	cfg    config.Config
	conn   transport.Conn
	col    *metrics.Collector

	mu       sync.Mutex // guards eng and tracker across the two loops
	eng      *jitter.Engine
	tracker  *wire.Tracker
	playback *bridge.FrameQueue

	statsFunc  func(metrics.Snapshot)
	statsEvery int

	closeOnce sync.Once
	close     chan struct{}
	done      chan struct{}
}

func NewReceiver(opts ...Option) (*Receiver, error) {
	o := newOptions(opts...)
	if o.conn == nil {
		return nil, fmt.Errorf("receiver: no connection configured")
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Receiver{
		id: o.id,
		logger: o.logger.With(
			slog.String("component", "receiver"),
			slog.String("id", o.id),
		),
		cfg:        o.cfg,
		conn:       o.conn,
		col:        o.collector,
		tracker:    wire.NewTracker(),
		playback:   bridge.NewFrameQueue(playbackFrames),
		statsFunc:  o.statsFunc,
		statsEvery: o.cfg.Logging.StatsInterval,
		close:      make(chan struct{}),
		done:       make(chan struct{}),
	}

	r.eng = jitter.NewEngine(jitter.Config{
		MinDepth:     o.cfg.Jitter.MinDepth,
		MaxDepth:     o.cfg.Jitter.MaxDepth,
		FramePeriod:  o.cfg.FramePeriod(),
		FrameSamples: o.cfg.FrameSamples(),
		FrameBytes:   o.cfg.FrameBytes(),
	}, o.decoder, o.collector)

	return r, nil
}

// Run drives the receive and release loops until the context is
// cancelled or Close is called.
func (r *Receiver) Run(ctx context.Context) error {
	r.logger.Info("receiver running",
		slog.Int("min_depth", r.cfg.Jitter.MinDepth),
		slog.Int("max_depth", r.cfg.Jitter.MaxDepth),
		slog.Duration("frame_period", r.cfg.FramePeriod()),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.recvLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.releaseLoop(ctx)
	}()
	wg.Wait()

	if err := r.conn.Close(); err != nil {
		r.logger.Error("failed to close connection", slog.Any("err", err))
	}
	close(r.done)
	r.logger.Info("receiver stopped", slog.Uint64("packets_received", r.col.PacketsReceived()))
	return nil
}

func (r *Receiver) recvLoop(ctx context.Context) {
	buf := pbytes.GetLen(maxDatagram)
	defer pbytes.Put(buf)

	for {
		select {
		case <-r.close:
			return
		case <-ctx.Done():
			return
		default:
		}

		n, err := r.conn.Recv(buf, recvTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Error("recv failed", slog.Any("err", err))
			continue
		}

		r.handleDatagram(buf[:n])
	}
}

func (r *Receiver) handleDatagram(data []byte) {
	pkt, err := wire.Decode(data)
	if err != nil {
		r.col.CountMalformed()
		return
	}

	r.col.CountReceived(len(data))
	r.col.ObserveArrival(pkt.Timestamp, time.Now())

	r.mu.Lock()
	obs := r.tracker.Observe(pkt.Sequence)
	switch obs.Class {
	case wire.Duplicate:
		r.col.CountDuplicate()
		r.mu.Unlock()
		return
	case wire.Late:
		r.col.CountLate()
	}
	r.eng.Admit(pkt)
	r.mu.Unlock()

	r.maybePublishStats()
}

func (r *Receiver) releaseLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.FramePeriod())
	defer ticker.Stop()

	for {
		select {
		case <-r.close:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			frame, ok := r.eng.ReleaseDue(now)
			r.mu.Unlock()
			if !ok {
				continue
			}
			if dropped := r.playback.Enqueue(frame.PCM); dropped {
				r.col.CountOverrun()
			}
		}
	}
}

// ReadRender fills p with the next playback frame, or with silence on
// underflow. It never blocks and is safe to call from an audio
// callback; p should be one frame long.
func (r *Receiver) ReadRender(p []byte) int {
	pcm, ok := r.playback.Dequeue()
	if !ok {
		r.col.CountUnderrun()
		for i := range p {
			p[i] = 0
		}
		return len(p)
	}

	n := copy(p, pcm)
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p)
}

func (r *Receiver) maybePublishStats() {
	if r.statsEvery <= 0 {
		return
	}
	received := r.col.PacketsReceived()
	if received == 0 || received%uint64(r.statsEvery) != 0 {
		return
	}

	snap := r.col.Snapshot()
	r.logger.Info("rx stats",
		slog.Uint64("packets_received", snap.PacketsReceived),
		slog.Uint64("packets_lost", snap.PacketsLost),
		slog.Float64("loss_percent", snap.LossPercent),
		slog.Uint64("concealed", snap.Concealed),
		slog.Uint64("late", snap.PacketsLate),
		slog.Uint64("duplicates", snap.Duplicates),
		slog.Float64("jitter_ms", snap.JitterMs),
		slog.Uint64("buffer_depth", uint64(snap.BufferDepth)),
		slog.Float64("rx_packet_rate", snap.RxPacketRate),
	)
	if r.statsFunc != nil {
		r.statsFunc(snap)
	}
}

// Close stops both loops and closes the connection, waiting up to
// timeout for them to exit.
func (r *Receiver) Close(timeout time.Duration) error {
	r.closeOnce.Do(func() {
		close(r.close)
	})

	select {
	case <-r.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("receiver: close timed out after %s", timeout)
	}
}

// Metrics exposes the receiver's collector.
func (r *Receiver) Metrics() *metrics.Collector { return r.col }
