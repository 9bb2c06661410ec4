// Package server exposes the conversation engine over HTTP: chat turns,
// session inspection, stage status, and a liveness summary. All responses
// are JSON; failures are reported in a {"error": ...} body and internal
// errors never leak to the client.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	patientapp "github.com/vinodyk/patient-appointments"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/security"
)

// Server is the public API listener.
type Server struct {
	engine  *patientapp.Engine
	limiter *security.RateLimiter
	log     logging.Logger
	handler http.Handler
	start   time.Time

	httpSrv *http.Server
}

// New wires the API routes. A nil limiter disables rate limiting; a nil
// logger discards request logs.
func New(engine *patientapp.Engine, limiter *security.RateLimiter, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoOp{}
	}
	s := &Server{
		engine:  engine,
		limiter: limiter,
		log:     log.With("component", "server"),
		start:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/session/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/session/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/agents/status", s.handleAgentStatus)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	var handler http.Handler = mux
	handler = withRateLimit(handler, s.limiter)
	handler = withLogging(handler, s.log)
	handler = withRecovery(handler, s.log)
	s.handler = handler
	return s
}

// Handler returns the fully wrapped route handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves the API on the given port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("api server listening", "port", port)

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
