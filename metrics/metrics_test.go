package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.CountSent(100)
	c.CountSent(100)
	c.CountReceived(80)
	c.CountLost(3)
	c.CountLate()
	c.CountDuplicate()
	c.CountConcealed()
	c.CountUnderrun()
	c.CountOverrun()
	c.SetBufferDepth(5)
	c.SetOccupancy(2)
	c.SetAdaptiveDelay(2 * time.Millisecond)

	s := c.Snapshot()
	require.Equal(t, uint64(2), s.PacketsSent)
	require.Equal(t, uint64(1), s.PacketsReceived)
	require.Equal(t, uint64(3), s.PacketsLost)
	require.Equal(t, uint64(1), s.PacketsLate)
	require.Equal(t, uint64(1), s.Duplicates)
	require.Equal(t, uint64(1), s.Concealed)
	require.Equal(t, uint64(1), s.Underruns)
	require.Equal(t, uint64(1), s.Overruns)
	require.Equal(t, uint32(5), s.BufferDepth)
	require.Equal(t, uint32(2), s.BufferOccupancy)
	require.Equal(t, 2*time.Millisecond, s.AdaptiveDelay)
	require.InDelta(t, 75.0, s.LossPercent, 0.01)
}

func TestCollectorByteTotals(t *testing.T) {
	c := NewCollector()

	c.CountSent(176)
	c.CountSent(176)
	c.CountReceived(176)

	s := c.Snapshot()
	require.Equal(t, uint64(352), s.BytesSent)
	require.Equal(t, uint64(176), s.BytesReceived)
}

func TestCollectorJitterEstimate(t *testing.T) {
	c := NewCollector()

	base := time.Now()
	// perfectly paced packets produce (near) zero jitter
	for i := 0; i < 10; i++ {
		capture := uint64(base.Add(time.Duration(i) * 20 * time.Millisecond).UnixMicro())
		arrival := base.Add(time.Duration(i)*20*time.Millisecond + 5*time.Millisecond)
		c.ObserveArrival(capture, arrival)
	}
	require.InDelta(t, 0.0, c.Snapshot().JitterMs, 0.001)

	// a delayed arrival bumps the estimate
	capture := uint64(base.Add(200 * time.Millisecond).UnixMicro())
	c.ObserveArrival(capture, base.Add(240*time.Millisecond))
	require.Greater(t, c.Snapshot().JitterMs, 1.0)
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")

	sink, err := NewCSVSink(path)
	require.NoError(t, err)

	c := NewCollector()
	c.CountSent(10)
	require.NoError(t, sink.Write(c.Snapshot()))
	require.NoError(t, sink.Write(c.Snapshot()))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two snapshots
	require.Equal(t, csvHeader, rows[0])
	require.Len(t, rows[1], len(csvHeader))
}

func TestCSVSinkAppendsWithoutDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")

	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(NewCollector().Snapshot()))
	require.NoError(t, sink.Close())

	sink, err = NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(NewCollector().Snapshot()))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // one header, two rows
}
