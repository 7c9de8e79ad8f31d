// Package transport abstracts the datagram link the stream runs over.
package transport

import (
	"errors"
	"time"
)

// ErrTimeout is returned by Recv when no datagram arrived within the
// timeout. Receive loops treat it as a normal wake-up, not a failure.
var ErrTimeout = errors.New("transport: receive timeout")

// ErrClosed is returned once the connection has been closed.
var ErrClosed = errors.New("transport: closed")

// Conn is a connected, unreliable datagram endpoint. Send never
// blocks longer than the kernel requires; Recv blocks at most for the
// given timeout so loops stay responsive to shutdown.
type Conn interface {
	Send(p []byte) error
	Recv(buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// IsTimeout reports whether err is a receive timeout from any Conn
// implementation.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
