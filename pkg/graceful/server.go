// Package graceful ties an http.Server's lifetime to a context.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server runs an http.Server until its context is canceled, then drains
// in-flight requests within the shutdown timeout.
type Server struct {
	srv     *http.Server
	log     *slog.Logger
	timeout time.Duration
}

func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		srv:     srv,
		log:     log,
		timeout: shutdownTimeout,
	}
}

// ListenAndServe blocks until ctx is canceled or the listener fails. A clean
// shutdown returns nil; http.ErrServerClosed is swallowed here so callers
// only see real failures.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.srv.Addr))
		serveErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		// Listener died before shutdown was requested.
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("draining http server", slog.Duration("timeout", s.timeout))

	drainCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		s.log.Error("http server drain failed", slog.Any("error", err))
		return err
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
