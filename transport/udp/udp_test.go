package udp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiolink/audiolink-go/transport"
)

func TestSendRecvLoopback(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 65536)
	require.NoError(t, err)
	defer recv.Close()

	send, err := Dial(recv.LocalAddr().String(), 8192)
	require.NoError(t, err)
	defer send.Close()

	require.NoError(t, send.Send([]byte("frame")))

	buf := make([]byte, 1500)
	n, err := recv.Recv(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, "frame", string(buf[:n]))
}

func TestRecvTimeout(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer recv.Close()

	buf := make([]byte, 1500)
	start := time.Now()
	_, err = recv.Recv(buf, 50*time.Millisecond)
	require.Error(t, err)
	require.True(t, transport.IsTimeout(err))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDialBadAddress(t *testing.T) {
	_, err := Dial("not-an-address::::", 0)
	require.Error(t, err)
}

func TestDatagramBoundariesPreserved(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 65536)
	require.NoError(t, err)
	defer recv.Close()

	send, err := Dial(recv.LocalAddr().String(), 8192)
	require.NoError(t, err)
	defer send.Close()

	require.NoError(t, send.Send([]byte{1, 2}))
	require.NoError(t, send.Send([]byte{3}))

	buf := make([]byte, 1500)
	n, err := recv.Recv(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = recv.Recv(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
