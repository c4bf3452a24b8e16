// package server contains middleware & handlers for the notes HTTP API
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/desertthunder/recordkit/internal/shared"
)

// Options configures a [Server].
type Options struct {
	Config  shared.ServerConfig
	Notes   NoteController
	Logger  *log.Logger
	Version string
}

// Server serves the notes API.
type Server struct {
	config  shared.ServerConfig
	handler http.Handler
	logger  *log.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds a [Server] and its router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := opts.Logger.WithPrefix("http")

	return &Server{
		config:  opts.Config,
		handler: NewRouter(opts.Notes, opts.Config, logger, opts.Version),
		logger:  logger,
	}
}

// NewRouter wires middleware, the health check and the notes routes.
func NewRouter(notes NoteController, config shared.ServerConfig, logger *log.Logger, version string) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(RateLimit(config.RateLimit, config.Burst))

	health := NewHealthHandler(version)
	router.GET("/health", health.Health)

	v1 := router.Group("/api/v1")
	v1.GET("/health", health.Health)
	NewNotesHandler(notes).Register(v1)

	return router
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.config.Addr() }

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until [Server.Shutdown] is called.
func (s *Server) Serve(ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("server starting", "addr", ln.Addr().String())
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down server")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
