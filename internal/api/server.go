package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"feeScope/internal/model"
)

const shutdownTimeout = 10 * time.Second

// EventStore is the read-side slice of the store the API needs.
type EventStore interface {
	EventsByIntegrator(ctx context.Context, integrator string, limit, offset int) ([]model.FeeEvent, error)
	Watermarks(ctx context.Context) ([]model.Watermark, error)
}

// Server serves the read-side query API and Prometheus metrics.
type Server struct {
	server  *http.Server
	handler *Handler
	logger  *zap.Logger
}

// NewServer creates the API server listening on addr.
func NewServer(addr string, store EventStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := NewHandler(store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /v1/events", handler.GetEvents)
	mux.HandleFunc("GET /v1/status", handler.GetStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = recoveryMiddleware(logger)(h)
	h = loggingMiddleware(logger)(h)

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("api server start", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}
