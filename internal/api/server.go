// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"property-tracker/internal/common/config"
	"property-tracker/internal/common/logger"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 90 * time.Second
)

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// NewServer binds handler to the configured address. The write timeout has to
// cover a blocking extraction request.
func NewServer(cfg config.ServerConfig, handler http.Handler, log logger.Logger) *Server {
	read := time.Duration(cfg.ReadTimeout) * time.Millisecond
	if read <= 0 {
		read = defaultReadTimeout
	}
	write := time.Duration(cfg.WriteTimeout) * time.Millisecond
	if write <= 0 {
		write = defaultWriteTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  read,
			WriteTimeout: write,
			IdleTimeout:  2 * time.Minute,
		},
		logger: log,
	}
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down", nil)
	return s.httpServer.Shutdown(ctx)
}
