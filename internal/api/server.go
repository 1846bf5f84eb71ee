package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bherbruck/scriptcache/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	handler    *Handler
	config     *Config
	httpServer *http.Server
}

// NewServer creates a new API server. db may be nil when script storage is disabled.
func NewServer(config *Config, engine ScriptEngine, db *storage.DB) *Server {
	s := &Server{
		handler: NewHandler(engine, db),
		config:  config,
	}
	s.httpServer = &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the HTTP handler with all routes and middleware applied
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	apiMux := http.NewServeMux()

	auth := NewAuthMiddleware(s.config)

	// Script execution is open to any caller that can reach the API
	apiMux.HandleFunc("GET /scripts", s.handler.ListScripts)
	apiMux.HandleFunc("POST /scripts/{name}/exec", s.handler.ExecuteScript)
	apiMux.HandleFunc("POST /scripts/{name}/evalsha", s.handler.EvalSha)

	// Stored rows, changes to the script set and the cache need an admin token
	apiMux.Handle("GET /scripts/stored", auth(AdminOnly(http.HandlerFunc(s.handler.ListStoredScripts))))
	apiMux.Handle("POST /scripts", auth(AdminOnly(http.HandlerFunc(s.handler.RegisterScript))))
	apiMux.Handle("POST /cache/invalidate", auth(AdminOnly(http.HandlerFunc(s.handler.InvalidateCache))))

	// Mount API under /api
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))

	// Health check endpoint (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Prometheus metrics endpoint (no auth required)
	mux.Handle("GET /metrics", promhttp.Handler())

	return LoggingMiddleware(CORSMiddleware(mux))
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	slog.Info("HTTP API server started", "address", s.config.HTTPAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
