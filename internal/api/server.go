// Package api provides the HTTP surface of the video publisher.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amillerrr/video-publisher/internal/auth"
	"github.com/amillerrr/video-publisher/internal/config"
	"github.com/amillerrr/video-publisher/internal/health"
)

// Server timeouts. Reads are long because uploads stream through the
// handler while the pipeline runs.
const (
	ReadTimeout       = 15 * time.Minute
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 20 * time.Minute
	IdleTimeout       = 120 * time.Second
	MaxHeaderBytes    = 1 << 20 // 1 MB
)

// Server represents the HTTP server for the API.
type Server struct {
	httpServer  *http.Server
	cfg         *config.Config
	log         *slog.Logger
	rateLimiter *auth.RateLimiter
}

// ServerConfig holds dependencies for the server.
type ServerConfig struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         VideoStore
	Pipeline      Pipeline
	JWTService    *auth.JWTService
	RateLimiter   *auth.RateLimiter
	HealthChecker *health.Checker
}

// NewRouter registers every route and wraps the mux in the shared middleware.
func NewRouter(cfg *ServerConfig) http.Handler {
	handlers := NewHandlers(&HandlersConfig{
		Config:      cfg.Config,
		Logger:      cfg.Logger,
		Store:       cfg.Store,
		Pipeline:    cfg.Pipeline,
		JWTService:  cfg.JWTService,
		RateLimiter: cfg.RateLimiter,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", cfg.HealthChecker.Handler())
	mux.HandleFunc("GET /health/deep", cfg.HealthChecker.DeepHandler())
	mux.HandleFunc("POST /api/login", handlers.LoginHandler)

	requireAuth := cfg.JWTService.Middleware(cfg.RateLimiter)
	mux.HandleFunc("POST /api/videos", requireAuth(handlers.CreateVideoHandler))
	mux.HandleFunc("GET /api/videos/{videoID}", requireAuth(handlers.GetVideoHandler))
	mux.HandleFunc("POST /api/videos/{videoID}/upload", requireAuth(handlers.UploadVideoHandler))

	mux.Handle("GET /metrics", internalOnlyMiddleware(promhttp.Handler()))

	var handler http.Handler = mux
	handler = MetricsMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = CORSMiddleware(cfg.Config.CORS.AllowedOrigins)(handler)
	return handler
}

// NewServer creates a new API server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Pipeline == nil || cfg.JWTService == nil || cfg.HealthChecker == nil {
		return nil, errors.New("server requires store, pipeline, JWT service and health checker")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Config.API.Port,
		Handler:           NewRouter(cfg),
		ReadTimeout:       ReadTimeout,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
		MaxHeaderBytes:    MaxHeaderBytes,
	}

	return &Server{
		httpServer:  httpServer,
		cfg:         cfg.Config,
		log:         cfg.Logger,
		rateLimiter: cfg.RateLimiter,
	}, nil
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "port", s.cfg.API.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down API server...")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}
