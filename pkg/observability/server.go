package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Server exposes health and metrics endpoints on a port separate from the
// chat API, so probes and scrapes never compete with patient traffic.
type Server struct {
	httpServer *http.Server
	port       int
}

func NewServer(port int) *Server {
	return &Server{
		port: port,
	}
}

// Start listens until Shutdown is called. A graceful close returns nil.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight scrapes and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
