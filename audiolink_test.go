package audiolink

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/transport/direct"
	"github.com/audiolink/audiolink-go/wire"
)

// testConfig keeps frames small so tests stream quickly.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameDurationMS = 10
	cfg.Jitter.MinDepth = 1
	cfg.Jitter.MaxDepth = 5
	cfg.Logging.StatsInterval = 0
	return cfg
}

func startPair(t *testing.T, cfg config.Config, opts ...Option) (*Sender, *Receiver) {
	t.Helper()

	txConn, rxConn := direct.Pipe(64)

	tx, err := NewSender(WithConfig(cfg), WithConn(txConn))
	require.NoError(t, err)

	rxOpts := append([]Option{WithConfig(cfg), WithConn(rxConn)}, opts...)
	rx, err := NewReceiver(rxOpts...)
	require.NoError(t, err)

	go tx.Run(context.Background())
	go rx.Run(context.Background())

	t.Cleanup(func() {
		require.NoError(t, tx.Close(2*time.Second))
		require.NoError(t, rx.Close(2*time.Second))
	})

	return tx, rx
}

func TestStreamEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	tx, rx := startPair(t, cfg)

	// feed a recognizable capture signal
	block := make([]byte, cfg.FrameBytes())
	for i := 0; i < len(block); i += 2 {
		block[i] = 0x34
		block[i+1] = 0x12
	}
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		for i := 0; i < 60; i++ {
			tx.WriteCapture(block)
			time.Sleep(cfg.FramePeriod())
		}
	}()

	require.Eventually(t, func() bool {
		return rx.Metrics().PacketsReceived() >= 30
	}, 5*time.Second, 10*time.Millisecond)

	// the render side must eventually see the captured signal
	require.Eventually(t, func() bool {
		frame := make([]byte, cfg.FrameBytes())
		rx.ReadRender(frame)
		return frame[0] == 0x34 && frame[1] == 0x12
	}, 5*time.Second, cfg.FramePeriod())

	<-feedDone

	snap := rx.Metrics().Snapshot()
	require.Zero(t, snap.Malformed)
	require.Zero(t, snap.Duplicates)

	require.NoError(t, tx.Close(2*time.Second))
	require.NoError(t, rx.Close(2*time.Second))
}

func TestStreamConcealsDroppedPackets(t *testing.T) {
	cfg := testConfig()

	txConn, rxConn := direct.Pipe(64)
	txConn.DropEvery(5)

	tx, err := NewSender(WithConfig(cfg), WithConn(txConn))
	require.NoError(t, err)
	rx, err := NewReceiver(WithConfig(cfg), WithConn(rxConn))
	require.NoError(t, err)

	go tx.Run(context.Background())
	go rx.Run(context.Background())
	defer func() {
		require.NoError(t, tx.Close(2*time.Second))
		require.NoError(t, rx.Close(2*time.Second))
	}()

	require.Eventually(t, func() bool {
		snap := rx.Metrics().Snapshot()
		return snap.PacketsLost > 0 && snap.Concealed > 0
	}, 10*time.Second, 20*time.Millisecond)

	snap := rx.Metrics().Snapshot()
	require.Positive(t, snap.LossPercent)
	require.Zero(t, snap.Malformed)
}

func TestStatsFuncInvoked(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.StatsInterval = 20

	var calls atomic.Int32
	_, rx := startPair(t, cfg, WithStatsFunc(func(snap metrics.Snapshot) {
		calls.Add(1)
	}))

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 10*time.Second, 20*time.Millisecond)
	require.Positive(t, rx.Metrics().PacketsReceived())
}

func TestByteAccountingUsesWireSize(t *testing.T) {
	cfg := testConfig()
	tx, rx := startPair(t, cfg)

	require.Eventually(t, func() bool {
		return rx.Metrics().PacketsReceived() >= 20
	}, 5*time.Second, 10*time.Millisecond)

	// both directions count full datagrams, header included, so the
	// tx and rx byte figures stay comparable
	wireSize := uint64(wire.HeaderSize + cfg.FrameBytes())

	require.NoError(t, tx.Close(2*time.Second))
	txSnap := tx.Metrics().Snapshot()
	require.Equal(t, txSnap.PacketsSent*wireSize, txSnap.BytesSent)

	require.Eventually(t, func() bool {
		snap := rx.Metrics().Snapshot()
		return snap.PacketsReceived > 0 &&
			snap.BytesReceived == snap.PacketsReceived*wireSize
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReadRenderNeverBlocks(t *testing.T) {
	cfg := testConfig()
	_, rx := startPair(t, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame := make([]byte, cfg.FrameBytes())
		for i := 0; i < 1000; i++ {
			rx.ReadRender(frame)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("render path blocked")
	}
}

func TestSenderRequiresConn(t *testing.T) {
	_, err := NewSender(WithConfig(testConfig()))
	require.Error(t, err)

	_, err = NewReceiver(WithConfig(testConfig()))
	require.Error(t, err)
}

func TestSenderSubstitutesSilenceOnStarvation(t *testing.T) {
	cfg := testConfig()
	tx, rx := startPair(t, cfg)

	// no capture written at all, the wire cadence must hold anyway
	require.Eventually(t, func() bool {
		return rx.Metrics().PacketsReceived() >= 20
	}, 5*time.Second, 10*time.Millisecond)

	require.Positive(t, tx.Metrics().Snapshot().Underruns)

	frame := make([]byte, cfg.FrameBytes())
	rx.ReadRender(frame)
	for _, b := range frame {
		require.Zero(t, b)
	}
}
