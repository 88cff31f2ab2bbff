// Package status serves run observability over HTTP: Prometheus metrics,
// liveness and a JSON progress snapshot. It is not a query interface over
// the stores.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/pipeline"
)

// NewServer builds the status server. Start it with Serve; shut it down
// with the returned *http.Server's Shutdown.
func NewServer(port int, reg *prometheus.Registry, progress *pipeline.Progress, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(progress.Snapshot()); err != nil {
			logger.Warn("progress encode failed", zap.Error(err))
		}
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs the server in the background, logging a startup line and any
// terminal error.
func Serve(srv *http.Server, logger *zap.Logger) {
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server error", zap.Error(err))
		}
	}()
}
