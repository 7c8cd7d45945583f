// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fbox-dev/fbox/session"
)

// Server is the HTTP front of the session broker.
type Server struct {
	listenAddress string
	service       *session.Service
	httpServer    *http.Server
	listener      net.Listener
	logger        *slog.Logger
}

// Config holds configuration for creating a new Server.
type Config struct {
	// ListenAddress is the TCP address to serve on (e.g., ":8080").
	ListenAddress string

	// Service is the session broker the routes drive.
	Service *session.Service

	Logger *slog.Logger
}

// New creates an HTTP server for the given broker.
func New(config Config) (*Server, error) {
	if config.ListenAddress == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if config.Service == nil {
		return nil, fmt.Errorf("session service is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := &handler{service: config.Service, logger: logger.With("component", "fbox")}

	server := &Server{
		listenAddress: config.ListenAddress,
		service:       config.Service,
		logger:        logger,
		httpServer: &http.Server{
			Handler: handler.routes(),
			// No write timeout: file downloads and the WebSocket are
			// long-lived streams with no upper bound.
			ReadHeaderTimeout: 30 * time.Second,
		},
	}
	return server, nil
}

// Start begins listening and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddress, err)
	}
	s.listener = listener

	s.logger.Info("server started", "address", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddress
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the context deadline. Live WebSocket connections are closed by
// the http.Server close path; their broker state unwinds through each
// connection's own teardown.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		// Shutdown timed out with streams still open; cut them.
		closeErr := s.httpServer.Close()
		if closeErr != nil {
			return closeErr
		}
	}
	return err
}
