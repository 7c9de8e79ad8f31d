// Package metrics collects the stream counters and rate estimates
// exposed to logging and diagnostics sinks. Components own their
// counters through a shared Collector; sinks only ever see read-only
// snapshots.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prep/average"
)

const (
	rateWindow      = 10 * time.Second
	rateGranularity = time.Second
)

// Collector aggregates counters from all stream components. All
// methods are safe for concurrent use.
type Collector struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	packetsLost     atomic.Uint64
	packetsLate     atomic.Uint64
	duplicates      atomic.Uint64
	malformed       atomic.Uint64
	decodeErrors    atomic.Uint64
	sendErrors      atomic.Uint64
	sendRetries     atomic.Uint64
	concealed       atomic.Uint64
	underruns       atomic.Uint64
	overruns        atomic.Uint64
	timingErrors    atomic.Uint64

	bufferDepth     atomic.Uint32 // jitter buffer target depth in frames
	bufferOccupancy atomic.Uint32
	adaptiveDelayNs atomic.Int64

	rxRate  *average.SlidingWindow
	rxBytes *average.SlidingWindow
	txRate  *average.SlidingWindow
	txBytes *average.SlidingWindow

	mu          sync.Mutex
	jitter      float64 // seconds, RFC 3550 style smoothed estimate
	lastTransit float64
	hasTransit  bool

	startedAt time.Time
}

func NewCollector() *Collector {
	c := &Collector{startedAt: time.Now()}
	c.rxRate, _ = average.New(rateWindow, rateGranularity)
	c.rxBytes, _ = average.New(rateWindow, rateGranularity)
	c.txRate, _ = average.New(rateWindow, rateGranularity)
	c.txBytes, _ = average.New(rateWindow, rateGranularity)
	return c
}

// CountSent records one transmitted datagram of wireBytes bytes.
// Byte accounting uses the full wire size, header included, on both
// directions so tx and rx figures stay comparable.
func (c *Collector) CountSent(wireBytes int) {
	c.packetsSent.Add(1)
	c.bytesSent.Add(uint64(wireBytes))
	c.txRate.Add(1)
	c.txBytes.Add(int64(wireBytes))
}

// CountReceived records one accepted datagram of wireBytes bytes.
func (c *Collector) CountReceived(wireBytes int) {
	c.packetsReceived.Add(1)
	c.bytesReceived.Add(uint64(wireBytes))
	c.rxRate.Add(1)
	c.rxBytes.Add(int64(wireBytes))
}

func (c *Collector) CountLost(n uint64)     { c.packetsLost.Add(n) }
func (c *Collector) CountLate()             { c.packetsLate.Add(1) }
func (c *Collector) CountDuplicate()        { c.duplicates.Add(1) }
func (c *Collector) CountMalformed()        { c.malformed.Add(1) }
func (c *Collector) CountDecodeError()      { c.decodeErrors.Add(1) }
func (c *Collector) CountSendError()        { c.sendErrors.Add(1) }
func (c *Collector) CountSendRetry()        { c.sendRetries.Add(1) }
func (c *Collector) CountConcealed()        { c.concealed.Add(1) }
func (c *Collector) CountUnderrun()         { c.underruns.Add(1) }
func (c *Collector) CountOverrun()          { c.overruns.Add(1) }
func (c *Collector) CountTimingError()      { c.timingErrors.Add(1) }
func (c *Collector) SetBufferDepth(d int)   { c.bufferDepth.Store(uint32(d)) }
func (c *Collector) SetOccupancy(n int)     { c.bufferOccupancy.Store(uint32(n)) }
func (c *Collector) PacketsSent() uint64    { return c.packetsSent.Load() }
func (c *Collector) PacketsReceived() uint64 { return c.packetsReceived.Load() }

func (c *Collector) SetAdaptiveDelay(d time.Duration) {
	c.adaptiveDelayNs.Store(int64(d))
}

// ObserveArrival feeds the inter-arrival jitter estimate with one
// packet's capture timestamp (microseconds) and local arrival time.
// The estimate uses the usual 1/16 exponential smoothing.
func (c *Collector) ObserveArrival(captureMicros uint64, arrival time.Time) {
	transit := float64(arrival.UnixMicro()-int64(captureMicros)) / 1e6

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasTransit {
		d := math.Abs(transit - c.lastTransit)
		c.jitter += (d - c.jitter) / 16.0
	}
	c.lastTransit = transit
	c.hasTransit = true
}

// Snapshot is a read-only view of the collector, suitable for
// serialization by logging and diagnostics sinks.
type Snapshot struct {
	Timestamp       time.Time     `json:"timestamp"`
	Uptime          time.Duration `json:"uptime"`
	PacketsSent     uint64        `json:"packets_sent"`
	PacketsReceived uint64        `json:"packets_received"`
	BytesSent       uint64        `json:"bytes_sent"`
	BytesReceived   uint64        `json:"bytes_received"`
	PacketsLost     uint64        `json:"packets_lost"`
	PacketsLate     uint64        `json:"packets_late"`
	Duplicates      uint64        `json:"duplicates"`
	Malformed       uint64        `json:"malformed"`
	DecodeErrors    uint64        `json:"decode_errors"`
	SendErrors      uint64        `json:"send_errors"`
	SendRetries     uint64        `json:"send_retries"`
	Concealed       uint64        `json:"concealed"`
	Underruns       uint64        `json:"underruns"`
	Overruns        uint64        `json:"overruns"`
	TimingErrors    uint64        `json:"timing_errors"`
	BufferDepth     uint32        `json:"buffer_depth"`
	BufferOccupancy uint32        `json:"buffer_occupancy"`
	AdaptiveDelay   time.Duration `json:"adaptive_delay"`
	JitterMs        float64       `json:"jitter_ms"`
	RxPacketRate    float64       `json:"rx_packet_rate"`
	RxByteRate      float64       `json:"rx_byte_rate"`
	TxPacketRate    float64       `json:"tx_packet_rate"`
	TxByteRate      float64       `json:"tx_byte_rate"`
	LossPercent     float64       `json:"loss_percent"`
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	jitter := c.jitter
	c.mu.Unlock()

	s := Snapshot{
		Timestamp:       time.Now(),
		Uptime:          time.Since(c.startedAt),
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		PacketsLost:     c.packetsLost.Load(),
		PacketsLate:     c.packetsLate.Load(),
		Duplicates:      c.duplicates.Load(),
		Malformed:       c.malformed.Load(),
		DecodeErrors:    c.decodeErrors.Load(),
		SendErrors:      c.sendErrors.Load(),
		SendRetries:     c.sendRetries.Load(),
		Concealed:       c.concealed.Load(),
		Underruns:       c.underruns.Load(),
		Overruns:        c.overruns.Load(),
		TimingErrors:    c.timingErrors.Load(),
		BufferDepth:     c.bufferDepth.Load(),
		BufferOccupancy: c.bufferOccupancy.Load(),
		AdaptiveDelay:   time.Duration(c.adaptiveDelayNs.Load()),
		JitterMs:        jitter * 1000,
		RxPacketRate:    c.rxRate.Average(rateWindow),
		RxByteRate:      c.rxBytes.Average(rateWindow),
		TxPacketRate:    c.txRate.Average(rateWindow),
		TxByteRate:      c.txBytes.Average(rateWindow),
	}

	total := s.PacketsReceived + s.PacketsLost
	if total > 0 {
		s.LossPercent = float64(s.PacketsLost) / float64(total) * 100
	}
	return s
}
