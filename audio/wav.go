package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavSource streams interleaved 16 bit PCM from a WAV file, acting as
// a file-backed capture device.
type WavSource struct {
	f   *os.File
	dec *wav.Decoder
	buf *gaudio.IntBuffer
}

func OpenWavSource(path string) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav source: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wav source: %s is not a valid wav file", path)
	}

	return &WavSource{f: f, dec: dec}, nil
}

func (s *WavSource) SampleRate() int { return int(s.dec.SampleRate) }
func (s *WavSource) Channels() int   { return int(s.dec.NumChans) }

// Read fills p with PCM bytes, returning io.EOF at the end of the file.
func (s *WavSource) Read(p []byte) (int, error) {
	samples := len(p) / 2
	if s.buf == nil || len(s.buf.Data) != samples {
		s.buf = &gaudio.IntBuffer{
			Format: &gaudio.Format{
				SampleRate:  s.SampleRate(),
				NumChannels: s.Channels(),
			},
			Data: make([]int, samples),
		}
	}

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("wav source: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(s.buf.Data[i])))
	}
	return n * 2, nil
}

func (s *WavSource) Close() error {
	return s.f.Close()
}

// WavSink writes interleaved 16 bit PCM to a WAV file, acting as a
// file-backed render device.
type WavSink struct {
	f   *os.File
	enc *wav.Encoder
}

func CreateWavSink(path string, sampleRate, channels int) (*WavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav sink: %w", err)
	}

	return &WavSink{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, 16, channels, 1),
	}, nil
}

func (s *WavSink) Write(p []byte) (int, error) {
	samples := len(p) / 2
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			SampleRate:  s.enc.SampleRate,
			NumChannels: s.enc.NumChans,
		},
		SourceBitDepth: 16,
		Data:           make([]int, samples),
	}
	for i := 0; i < samples; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(p[i*2:])))
	}

	if err := s.enc.Write(buf); err != nil {
		return 0, fmt.Errorf("wav sink: %w", err)
	}
	return len(p), nil
}

func (s *WavSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("wav sink: %w", err)
	}
	return s.f.Close()
}
