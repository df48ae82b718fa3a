package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"captioner/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, handler http.Handler, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:   bind,
		logger: logger.With(logging.String("component", "api-server")),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			// Uploads and renders hold the connection for the whole job.
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 30 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.shutdown()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}
