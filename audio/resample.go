package audio

import (
	"encoding/binary"
	"errors"
)

var ErrOddPCM = errors.New("audio: input must be 16-bit PCM")

// Resample converts 16 bit mono PCM between sample rates using linear
// interpolation. Good enough for matching a WAV file's rate to the
// stream rate; not meant for production-grade fidelity.
func Resample(data []byte, srcRate, dstRate float64) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddPCM
	}
	if srcRate == dstRate {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	ratio := dstRate / srcRate
	samples := len(data) / 2
	outSamples := int(float64(samples) * ratio)
	out := make([]byte, outSamples*2)

	for i := 0; i < outSamples; i++ {
		pos := float64(i) / ratio
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= samples {
			i1 = samples - 1
		}
		frac := pos - float64(i0)

		s0 := int16(binary.LittleEndian.Uint16(data[i0*2:]))
		s1 := int16(binary.LittleEndian.Uint16(data[i1*2:]))
		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	return out, nil
}
