package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCMRoundTrip(t *testing.T) {
	c := NewPCM(2)
	pcm := make([]byte, 960*2*2) // 960 samples, stereo, 16 bit
	for i := range pcm {
		pcm[i] = byte(i)
	}

	payload, err := c.Encode(pcm, 960)
	require.NoError(t, err)

	out, err := c.Decode(payload, 960)
	require.NoError(t, err)
	require.Equal(t, pcm, out)
}

func TestPCMEncodeWrongLength(t *testing.T) {
	c := NewPCM(2)
	_, err := c.Encode(make([]byte, 100), 960)
	require.ErrorIs(t, err, ErrEncode)
}

func TestPCMDecodeWrongLength(t *testing.T) {
	c := NewPCM(1)
	_, err := c.Decode(make([]byte, 3), 960)
	require.ErrorIs(t, err, ErrDecode)
}

func TestPCMCopiesData(t *testing.T) {
	c := NewPCM(1)
	pcm := make([]byte, 10*2)
	payload, err := c.Encode(pcm, 10)
	require.NoError(t, err)

	pcm[0] = 0xff
	require.Equal(t, byte(0), payload[0])
}

func TestOpusDecodeEmptyPayload(t *testing.T) {
	o := NewOpus(1)
	_, err := o.Decode(nil, 960)
	require.ErrorIs(t, err, ErrDecode)
}

func TestOpusDecodeGarbage(t *testing.T) {
	o := NewOpus(1)
	_, err := o.Decode([]byte{0xde, 0xad, 0xbe, 0xef}, 960)
	require.ErrorIs(t, err, ErrDecode)
}
