// Package api serves a document store over HTTP.
//
// All document routes live under /api/v1 and require the X-API-Key header
// when an API key is configured. Documents are addressed by ksuid; values
// inside a document by path ("tags.0", "address.city").
//
//	GET    /api/v1/health
//	GET    /api/v1/schema
//	GET    /api/v1/stats
//	POST   /api/v1/docs                 create from JSON or raw buffer bytes
//	GET    /api/v1/docs                 list in scan order
//	GET    /api/v1/docs/{id}?path=      JSON, or CBOR with Accept: application/cbor
//	GET    /api/v1/docs/{id}/raw        buffer bytes
//	PUT    /api/v1/docs/{id}?path=      set the value at path from JSON
//	DELETE /api/v1/docs/{id}?path=      delete the value at path, or the document
//	POST   /api/v1/docs/{id}/compact
//	POST   /api/v1/compact
//
// Prometheus metrics are served unauthenticated at /metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	metricsInterval = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server holds the API server state
type Server struct {
	store   DocumentStore
	config  ServerConfig
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewServer creates a new API server. metrics and log may be nil.
func NewServer(store DocumentStore, config ServerConfig, metrics *Metrics, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		log:     log,
	}
}

// Router returns the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))

	m := s.metrics
	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/schema", m.InstrumentHandler("GET", "/api/v1/schema", s.handleSchema))
		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))

		// Documents
		r.Post("/docs", m.InstrumentHandler("POST", "/api/v1/docs", s.handleCreate))
		r.Get("/docs", m.InstrumentHandler("GET", "/api/v1/docs", s.handleList))
		r.Get("/docs/{id}", m.InstrumentHandler("GET", "/api/v1/docs/{id}", s.handleGet))
		r.Get("/docs/{id}/raw", m.InstrumentHandler("GET", "/api/v1/docs/{id}/raw", s.handleGetRaw))
		r.Put("/docs/{id}", m.InstrumentHandler("PUT", "/api/v1/docs/{id}", s.handleSet))
		r.Delete("/docs/{id}", m.InstrumentHandler("DELETE", "/api/v1/docs/{id}", s.handleDelete))

		// Compaction
		r.Post("/docs/{id}/compact", m.InstrumentHandler("POST", "/api/v1/docs/{id}/compact", s.handleCompact))
		r.Post("/compact", m.InstrumentHandler("POST", "/api/v1/compact", s.handleCompactAll))
	})

	return r
}

// StartServer serves the API on config.Bind:config.Port until ctx is done,
// then shuts down gracefully.
func StartServer(ctx context.Context, store DocumentStore, config ServerConfig, metrics *Metrics, log *zap.SugaredLogger) error {
	server := NewServer(store, config, metrics, log)

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	updaterDone := make(chan struct{})
	defer func() {
		cancel()
		<-updaterDone
	}()

	// Start background metrics updater
	go func() {
		defer close(updaterDone)
		server.startMetricsUpdater(ctx)
	}()

	errc := make(chan error, 1)
	go func() {
		server.log.Infow("starting arenabuf REST API server", "addr", addr, "metrics", "/metrics")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	server.log.Infow("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// startMetricsUpdater refreshes the store gauges until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	s.updateStoreMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateStoreMetrics(ctx)
		}
	}
}

func (s *Server) updateStoreMetrics(ctx context.Context) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warnw("failed to collect store stats", "error", err)
		}
		return
	}
	s.metrics.UpdateStoreStats(stats.Documents, stats.Bytes)
}
