// Package codec defines the encoder and decoder collaborator
// interfaces the stream engine calls and ships a PCM passthrough
// implementation. Payloads on the wire are opaque to the rest of the
// system, so any codec satisfying these interfaces can be plugged in.
package codec

import "errors"

var (
	ErrEncode = errors.New("codec: encode failed")
	ErrDecode = errors.New("codec: decode failed")
)

// Encoder turns one raw PCM frame into a compressed payload.
type Encoder interface {
	// Encode compresses frameSamples samples of interleaved 16 bit
	// PCM. It returns ErrEncode when pcm has the wrong length.
	Encode(pcm []byte, frameSamples int) ([]byte, error)
}

// Decoder turns a compressed payload back into one raw PCM frame.
type Decoder interface {
	// Decode decompresses a payload into frameSamples samples of
	// interleaved 16 bit PCM. It returns ErrDecode on corrupt input.
	Decode(payload []byte, frameSamples int) ([]byte, error)
}
