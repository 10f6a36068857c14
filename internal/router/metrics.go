package router

import (
	"net/http"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewMetricsRouter serves the scrape endpoint on its own port so it can be
// kept off the public listener.
func NewMetricsRouter(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"metrics"}`)); err != nil {
			logger.Debug("Failed to write health response", zap.Error(err))
		}
	})

	if cfg.Monitoring.EnableMetrics {
		r.Handle("/metrics", metricsHandler(reg))
	}

	return r
}
