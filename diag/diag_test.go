package diag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/audiolink/audiolink-go/metrics"
)

func TestPublishReachesClient(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	ctx := context.Background()
	require.NoError(t, srv.Run(ctx))
	defer srv.Shutdown(ctx)

	url := fmt.Sprintf("ws://127.0.0.1:%d/metrics", srv.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// wait for the server to register the connection
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 1
	}, time.Second, 5*time.Millisecond)

	srv.Publish(metrics.Snapshot{PacketsReceived: 42, JitterMs: 1.5})

	var snap metrics.Snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&snap))
	require.Equal(t, uint64(42), snap.PacketsReceived)
	require.InDelta(t, 1.5, snap.JitterMs, 1e-9)
}

func TestPublishWithoutClients(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	ctx := context.Background()
	require.NoError(t, srv.Run(ctx))
	defer srv.Shutdown(ctx)

	// must not panic or block
	srv.Publish(metrics.Snapshot{})
}

func TestShutdownDisconnectsClients(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	ctx := context.Background()
	require.NoError(t, srv.Run(ctx))

	url := fmt.Sprintf("ws://127.0.0.1:%d/metrics", srv.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, srv.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}
