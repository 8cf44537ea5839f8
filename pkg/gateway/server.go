package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/openfidc/gateway/internal/logger"
)

// httpServer wraps one http.Server with context-driven lifecycle and
// graceful shutdown. Both the main listener and the metrics listener
// use it.
type httpServer struct {
	name            string
	server          *http.Server
	shutdownTimeout timeoutFn
	shutdownOnce    sync.Once
}

type timeoutFn func() (context.Context, context.CancelFunc)

func newHTTPServer(name string, srv *http.Server, shutdownTimeout timeoutFn) *httpServer {
	return &httpServer{name: name, server: srv, shutdownTimeout: shutdownTimeout}
}

// Start runs the server and blocks until the context is cancelled or
// the listener fails. Cancellation triggers graceful shutdown.
func (s *httpServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "server", s.name, "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("server shutdown signal received", "server", s.name)
		// A fresh context: the cancelled one would abort the drain
		// immediately.
		shutdownCtx, cancel := s.shutdownTimeout()
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *httpServer) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("%s server shutdown error: %w", s.name, err)
			logger.Error("server shutdown error", "server", s.name, logger.KeyError, err.Error())
		} else {
			logger.Info("server stopped gracefully", "server", s.name)
		}
	})
	return shutdownErr
}
