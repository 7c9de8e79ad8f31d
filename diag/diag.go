// Package diag serves live metrics snapshots over websocket so a
// dashboard or curl-style client can watch a running stream.
package diag

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/audiolink/audiolink-go/metrics"
)

type Server struct {
	logger *slog.Logger
	addr   string
	port   int

	http     *http.Server
	listener net.Listener

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(addr string) *Server {
	s := &Server{
		logger: slog.Default().With(
			slog.String("component", "diag"),
		),
		addr:  addr,
		conns: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", upgradeHandler(s))

	s.http = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func upgradeHandler(s *Server) func(http.ResponseWriter, *http.Request) {
	var upgrader = websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With(
			slog.String("remote_addr", r.RemoteAddr),
		)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("upgrade failed", slog.Any("err", err))
			return
		}

		logger.Debug("diag client connected")

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		// drain control frames until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()

		logger.Debug("diag client disconnected")
	}
}

// Publish sends a snapshot to every connected client. Clients that
// fail to accept the write are dropped.
func (s *Server) Publish(snap metrics.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		if err := conn.WriteJSON(snap); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

func (s *Server) Port() int {
	return s.port
}

func (s *Server) Run(ctx context.Context) error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
		s.logger = s.logger.With(slog.String("addr", tcpAddr.String()))
	}

	s.logger.Info("diag listening")

	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		close(ready)
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
		return nil
	case err := <-serveErr:
		return err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
	s.mu.Unlock()

	return s.http.Shutdown(ctx)
}
