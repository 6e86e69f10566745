package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/config"
	"github.com/datastash/datastash/pkg/stash"
)

// Server is the HTTP control surface. It is created stopped; Start
// serves until the context is cancelled, then shuts down gracefully.
type Server struct {
	server *http.Server
	port   int
}

// NewServer creates the control API server for one stash instance.
func NewServer(cfg config.APIConfig, s *stash.Stash) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(s),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		port: cfg.Port,
	}
}

// Start serves requests until ctx is cancelled or the listener fails.
// Returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("control API shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control API server failed: %w", err)
	}
}

// Stop shuts the server down, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("control API shutdown: %w", err)
	}
	return nil
}
