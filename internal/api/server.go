package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/autoguard/cloak/internal/config"
)

// Server is the decision-engine HTTP surface: POST /v1/decide for the edge
// process, /v1/admin/* for operators, and /health for the load balancer.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
}

func NewServer(cfg config.ServerConfig, h *Handlers, hc *HealthChecker) *Server {
	return &Server{cfg: cfg, handler: SetupRoutes(h, hc)}
}

// Handler returns the HTTP handler, for use in tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the HTTP server. Timeouts are tight relative to the
// teacher's multi-GB-upload server, since every request here is decide()'s
// hard millisecond-scale budget or a small admin call.
func (s *Server) ListenAndServe() error {
	port := s.cfg.Port
	if port == 0 {
		port = 8080
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.GetHost(), port),
		Handler:           s.handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
