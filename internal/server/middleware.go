package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/observability"
	"github.com/vinodyk/patient-appointments/pkg/security"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRecovery converts an in-handler panic into a 500 with a generic
// message. The engine has its own recovery; this net catches everything
// outside it.
func withRecovery(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError,
					"I'm sorry, something went wrong while processing your request. Please try again.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withLogging records every request with its status and latency.
func withLogging(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), elapsed)
	})
}

// withRateLimit rejects clients that exceed their token bucket with a 429.
// A nil limiter disables limiting.
func withRateLimit(next http.Handler, limiter *security.RateLimiter) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientID(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID identifies the caller for per-client buckets: the first
// X-Forwarded-For hop when present, otherwise the remote address host.
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
