// Package direct provides an in-memory datagram pipe with UDP-like
// semantics: packets may be dropped on overflow and are never
// retransmitted. It stands in for a real socket in tests.
package direct

import (
	"sync"
	"time"

	"github.com/audiolink/audiolink-go/transport"
)

// pipeState is shared by both endpoints so closing either side tears
// down the whole pipe exactly once.
type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

func (p *pipeState) close() {
	p.once.Do(func() {
		close(p.closed)
	})
}

type Endpoint struct {
	in    chan []byte
	out   chan []byte
	state *pipeState

	mu        sync.Mutex
	dropEvery int
	sent      int
}

// Pipe returns two connected endpoints. Each side holds up to cap
// in-flight datagrams; like UDP, sends into a full pipe are silently
// dropped.
func Pipe(capacity int) (*Endpoint, *Endpoint) {
	aToB := make(chan []byte, capacity)
	bToA := make(chan []byte, capacity)
	state := &pipeState{closed: make(chan struct{})}

	a := &Endpoint{in: bToA, out: aToB, state: state}
	b := &Endpoint{in: aToB, out: bToA, state: state}
	return a, b
}

// DropEvery makes the endpoint silently discard every nth sent packet,
// for loss-injection tests. Zero disables dropping.
func (e *Endpoint) DropEvery(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropEvery = n
}

func (e *Endpoint) Send(p []byte) error {
	select {
	case <-e.state.closed:
		return transport.ErrClosed
	default:
	}

	e.mu.Lock()
	e.sent++
	drop := e.dropEvery > 0 && e.sent%e.dropEvery == 0
	e.mu.Unlock()
	if drop {
		return nil
	}

	data := make([]byte, len(p))
	copy(data, p)

	select {
	case e.out <- data:
	default:
		// pipe full, the datagram evaporates like on a real link
	}
	return nil
}

func (e *Endpoint) Recv(buf []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.state.closed:
		return 0, transport.ErrClosed
	case data := <-e.in:
		return copy(buf, data), nil
	case <-timer.C:
		return 0, transport.ErrTimeout
	}
}

func (e *Endpoint) Close() error {
	e.state.close()
	return nil
}

var _ transport.Conn = &Endpoint{}
