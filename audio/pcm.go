package audio

import "encoding/binary"

// Silence returns a zeroed PCM buffer of n bytes.
func Silence(n int) []byte {
	return make([]byte, n)
}

// Attenuate scales interleaved 16 bit PCM with a gain ramp running
// linearly from start to end across the buffer. Used to shape
// concealment frames so a lost slot fades instead of clicking.
func Attenuate(pcm []byte, start, end float64) []byte {
	out := make([]byte, len(pcm))
	samples := len(pcm) / 2
	if samples == 0 {
		return out
	}

	for i := 0; i < samples; i++ {
		frac := float64(i) / float64(samples)
		gain := start + (end-start)*frac
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(float64(s)*gain)))
	}
	return out
}

// FitBlock pads or truncates a PCM frame to exactly blockBytes, so a
// decoded frame always matches what the render sink asked for.
func FitBlock(pcm []byte, blockBytes int) []byte {
	if len(pcm) == blockBytes {
		return pcm
	}
	out := make([]byte, blockBytes)
	copy(out, pcm)
	return out
}
