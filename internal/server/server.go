package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr    string // Server bind address (e.g., ":8090")
	DevMode bool   // Enable development mode (detailed error responses)
	APIKey  string // Optional API key for authentication
}

// shutdownGrace bounds how long Shutdown waits for in-flight settlements
// to drain before the listener is torn down.
const shutdownGrace = 10 * time.Second

// Server owns the echo instance and its shutdown lifecycle. Start blocks
// until the listener stops; Shutdown drains in-flight requests and WaitClosed
// lets the caller hold process exit until the drain has finished.
type Server struct {
	e      *echo.Echo
	cfg    ServerConfig
	closed chan struct{}
}

// NewServer builds the HTTP server around the given handlers.
func NewServer(h *Handlers, cfg ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Swaps settle synchronously against the in-process ledger, so request
	// handling is fast; the one slow path is the AI endpoint, which the
	// write timeout has to accommodate.
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 60 * time.Second
	e.Server.IdleTimeout = 90 * time.Second

	RegisterRoutes(e, h, cfg)

	return &Server{e: e, cfg: cfg, closed: make(chan struct{})}
}

// Start serves HTTP on the configured address until Shutdown is called.
// A graceful close is not reported as an error.
func (s *Server) Start() error {
	err := s.e.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests,
// giving up after shutdownGrace.
func (s *Server) Shutdown(ctx context.Context) error {
	defer close(s.closed)
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// WaitClosed blocks until Shutdown has finished or the context expires.
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}

// defaultHeaders forces JSON content and disables caching. Prices and
// settlement records go stale the moment the next swap lands, so no
// response from this API may be cached.
func defaultHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		h.Set("Cache-Control", "no-store")
		return next(c)
	}
}
