package codec

import "fmt"

// PCM is the identity codec: frames travel uncompressed. It still
// validates frame sizes so malformed payloads surface as decode
// errors like they would with a real codec.
type PCM struct {
	channels int
}

func NewPCM(channels int) *PCM {
	return &PCM{channels: channels}
}

func (c *PCM) frameBytes(frameSamples int) int {
	return frameSamples * c.channels * 2
}

func (c *PCM) Encode(pcm []byte, frameSamples int) ([]byte, error) {
	if len(pcm) != c.frameBytes(frameSamples) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrEncode, len(pcm), c.frameBytes(frameSamples))
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return out, nil
}

func (c *PCM) Decode(payload []byte, frameSamples int) ([]byte, error) {
	if len(payload) != c.frameBytes(frameSamples) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrDecode, len(payload), c.frameBytes(frameSamples))
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

var _ Encoder = &PCM{}
var _ Decoder = &PCM{}
