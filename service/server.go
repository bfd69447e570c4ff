package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vocdoni/silentvote/log"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// httpServer runs an http.Server over its own listener, so a zero port
// lets the system pick one.
type httpServer struct {
	name string
	host string
	port int

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func (s *httpServer) start(handler http.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("service already running")
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	go func() {
		log.Infow("starting http server", "service", s.name, "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "http server failed")
		}
	}()
	return nil
}

func (s *httpServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warnw("http server shutdown", "service", s.name, "error", err.Error())
	}
	s.srv = nil
	s.ln = nil
}

// addr returns the listening address, empty if the server is stopped.
func (s *httpServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
