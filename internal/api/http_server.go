package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"kaptam/internal/config"

	"github.com/rs/zerolog"
)

// HTTPServer wraps the router in an http.Server.
type HTTPServer struct {
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, handler http.Handler, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: logger,
	}
}

func (s *HTTPServer) Addr() string { return s.server.Addr }

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve runs the server on an existing listener.
func (s *HTTPServer) Serve(lis net.Listener) error {
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
