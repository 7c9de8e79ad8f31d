// Package udp provides the UDP implementation of transport.Conn.
package udp

import (
	"fmt"
	"net"
	"time"

	"github.com/audiolink/audiolink-go/transport"
)

// Conn wraps a UDP socket as a transport.Conn.
type Conn struct {
	conn *net.UDPConn
}

// Dial creates the sender-side socket. The kernel send buffer is kept
// small so stale audio is dropped instead of queued.
func Dial(target string, sendBufferSize int) (*Conn, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", target, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", target, err)
	}

	if sendBufferSize > 0 {
		if err := conn.SetWriteBuffer(sendBufferSize); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: set send buffer: %w", err)
		}
	}

	return &Conn{conn: conn}, nil
}

// Listen creates the receiver-side socket bound to addr.
func Listen(addr string, recvBufferSize int) (*Conn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: listen %s: %w", addr, err)
	}

	if recvBufferSize > 0 {
		if err := conn.SetReadBuffer(recvBufferSize); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: set recv buffer: %w", err)
		}
	}

	return &Conn{conn: conn}, nil
}

func (c *Conn) Send(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

func (c *Conn) Recv(buf []byte, timeout time.Duration) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the bound address, useful when listening on an
// ephemeral port.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

var _ transport.Conn = &Conn{}
