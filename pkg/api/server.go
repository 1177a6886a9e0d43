// Package api serves metric samples over a REST API.
//
// All routes under /api/v1 require the X-API-Key header when a key is
// configured. /metrics is unprotected for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("api")

const (
	statsUpdateInterval = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// NewRouter builds the HTTP routes of server
func NewRouter(server *Server) http.Handler {
	metrics := server.metrics

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(server.config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))

		r.Post("/samples", metrics.InstrumentHandler("POST", "/api/v1/samples", server.handleAppend))
		r.Post("/samples/encode", metrics.InstrumentHandler("POST", "/api/v1/samples/encode", server.handleEncode))
		r.Post("/samples/decode", metrics.InstrumentHandler("POST", "/api/v1/samples/decode", server.handleDecode))
		r.Get("/samples/{topic}/{partition}", metrics.InstrumentHandler("GET",
			"/api/v1/samples/{topic}/{partition}", server.handleQuery))
		r.Get("/samples/{topic}/{partition}/latest", metrics.InstrumentHandler("GET",
			"/api/v1/samples/{topic}/{partition}/latest", server.handleLatest))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts the HTTP
// server down gracefully. index may be nil.
func StartServer(ctx context.Context, sampleStore ISampleStore, index ISampleIndex, config ServerConfig) error {
	metrics := NewMetrics()
	server := NewServer(sampleStore, index, config, metrics)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	updaterCtx, stopUpdater := context.WithCancel(ctx)
	defer stopUpdater()
	go server.startMetricsUpdater(updaterCtx, statsUpdateInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting sample API server", "addr", addr, "index", index != nil)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down sample API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}
