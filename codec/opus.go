package codec

import (
	"fmt"

	"github.com/pion/opus"
)

// Opus decodes Opus payloads using the pure Go pion decoder. The
// library only ships a decoder, so sending Opus requires an external
// Encoder implementation; receive-only relays can pair this with any
// Opus-producing sender.
type Opus struct {
	dec      opus.Decoder
	channels int
}

func NewOpus(channels int) *Opus {
	return &Opus{
		dec:      opus.NewDecoder(),
		channels: channels,
	}
}

func (o *Opus) Decode(payload []byte, frameSamples int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	out := make([]byte, frameSamples*o.channels*2)
	_, _, err := o.dec.Decode(payload, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

var _ Decoder = &Opus{}
