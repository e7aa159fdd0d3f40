// Package api provides the HTTP surface of atendai.
//
// The only business endpoint is the CRM webhook ingress; everything
// else is operational (health and readiness probes). Batch processing
// triggered by a webhook runs on a supervised background task so the
// provider gets its 200 immediately.
//
// File structure:
//   - server.go: server setup, routes, lifecycle
//   - webhook.go: POST /webhook/messages ingress
//   - middleware.go: recovery, logging, CORS
//   - ratelimit.go: per-IP token bucket
//   - health.go: /health and /ready probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to stop Slowloris-style
	// connection hoarding.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout caps keep-alive connection idle time.
	IdleTimeout = 120 * time.Second
)

// Config carries the server's tunables.
type Config struct {
	// RateLimit is the webhook rate limiter refill rate, in requests
	// per second per client IP. Zero means 10.
	RateLimit float64

	// RateBurst is the rate limiter burst size per IP. Zero means 30.
	RateBurst int

	// TrustProxy enables X-Real-IP/X-Forwarded-For for client IP
	// resolution. Only set behind a reverse proxy.
	TrustProxy bool
}

// Server is the webhook HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates the server with all routes registered. pool may be
// nil, which degrades /ready to a static probe.
func NewServer(ing ingestor, proc batchProcessor, reg taskRegistry, pool *pgxpool.Pool,
	cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(limit, burst)

	wh := &webhookHandler{ingestor: ing, processor: proc, tasks: reg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health)
	mux.Handle("GET /ready", readiness(pool))

	// Middleware on the ingress only: recovery → logging → ratelimit.
	var handler http.Handler = http.HandlerFunc(wh.receive)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)
	handler = corsMiddleware()(handler)
	mux.Handle("/webhook/messages", handler)

	return &Server{mux: mux, logger: logger}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
