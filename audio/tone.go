package audio

import (
	"encoding/binary"
	"math"
)

// ToneSource generates a sine wave, useful as a capture stand-in when
// no input file is available.
type ToneSource struct {
	freq       float64
	sampleRate int
	channels   int
	amplitude  float64
	phase      float64
}

func NewToneSource(freq float64, sampleRate, channels int) *ToneSource {
	return &ToneSource{
		freq:       freq,
		sampleRate: sampleRate,
		channels:   channels,
		amplitude:  0.3,
	}
}

func (t *ToneSource) Read(p []byte) (int, error) {
	frames := len(p) / 2 / t.channels
	step := 2 * math.Pi * t.freq / float64(t.sampleRate)

	for i := 0; i < frames; i++ {
		v := int16(t.amplitude * math.Sin(t.phase) * math.MaxInt16)
		for ch := 0; ch < t.channels; ch++ {
			binary.LittleEndian.PutUint16(p[(i*t.channels+ch)*2:], uint16(v))
		}
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return frames * t.channels * 2, nil
}
