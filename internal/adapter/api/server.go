package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// StatusServer serves the status router on its own listener.
type StatusServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// NewStatusServer creates a server for handler on addr. It does not listen until Start.
func NewStatusServer(addr string, handler http.Handler, logger *slog.Logger) *StatusServer {
	return &StatusServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "status_server"),
	}
}

// Start binds the listen address and serves in the background.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln

	go func() {
		s.logger.Info("starting status server", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *StatusServer) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Stop keeps serving for linger so the final run state can still be read, then shuts down.
// Cancelling ctx cuts the linger short.
func (s *StatusServer) Stop(ctx context.Context, linger time.Duration) error {
	if linger > 0 {
		s.logger.Info("keeping status server up", "linger", linger)
		timer := time.NewTimer(linger)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}
