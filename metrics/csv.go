package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"uptime_s",
	"packets_sent",
	"packets_received",
	"packets_lost",
	"loss_percent",
	"packets_late",
	"duplicates",
	"malformed",
	"decode_errors",
	"send_errors",
	"send_retries",
	"concealed",
	"underruns",
	"overruns",
	"timing_errors",
	"buffer_depth",
	"buffer_occupancy",
	"adaptive_delay_ms",
	"jitter_ms",
	"rx_packet_rate",
	"tx_packet_rate",
}

// CSVSink appends periodic metric snapshots to a CSV file. The header
// row is written once when the file is created; an existing file is
// appended to so restarts keep one continuous log.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}

	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if !exists {
		if err := s.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv sink: %w", err)
		}
		s.w.Flush()
	}
	return s, nil
}

func (s *CSVSink) Write(snap Snapshot) error {
	row := []string{
		snap.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatFloat(snap.Uptime.Seconds(), 'f', 3, 64),
		strconv.FormatUint(snap.PacketsSent, 10),
		strconv.FormatUint(snap.PacketsReceived, 10),
		strconv.FormatUint(snap.PacketsLost, 10),
		strconv.FormatFloat(snap.LossPercent, 'f', 2, 64),
		strconv.FormatUint(snap.PacketsLate, 10),
		strconv.FormatUint(snap.Duplicates, 10),
		strconv.FormatUint(snap.Malformed, 10),
		strconv.FormatUint(snap.DecodeErrors, 10),
		strconv.FormatUint(snap.SendErrors, 10),
		strconv.FormatUint(snap.SendRetries, 10),
		strconv.FormatUint(snap.Concealed, 10),
		strconv.FormatUint(snap.Underruns, 10),
		strconv.FormatUint(snap.Overruns, 10),
		strconv.FormatUint(snap.TimingErrors, 10),
		strconv.FormatUint(uint64(snap.BufferDepth), 10),
		strconv.FormatUint(uint64(snap.BufferOccupancy), 10),
		strconv.FormatFloat(float64(snap.AdaptiveDelay)/1e6, 'f', 3, 64),
		strconv.FormatFloat(snap.JitterMs, 'f', 3, 64),
		strconv.FormatFloat(snap.RxPacketRate, 'f', 1, 64),
		strconv.FormatFloat(snap.TxPacketRate, 'f', 1, 64),
	}

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}
