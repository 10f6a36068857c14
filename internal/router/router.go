package router

import (
	"net/http"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/handlers"
	"github.com/amerfu/llmrouter/internal/middleware"
	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Router   handlers.ChatRouter
	Registry queue.Registry
	Sink     metrics.Sink
	// Tracker is nil when Redis is not configured.
	Tracker *metrics.LatencyTracker
	// Breakers is nil in mock mode.
	Breakers *circuitbreaker.Manager
	// Prometheus backs /metrics and receives the HTTP collectors.
	Prometheus *prometheus.Registry
}

func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	httpMetrics := middleware.NewHTTPMetrics(deps.Prometheus)

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(httpMetrics.Middleware(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	chatHandler := handlers.NewChatHandler(logger, deps.Router, deps.Sink)
	healthHandler := handlers.NewHealthHandler(logger, cfg.MockMode())
	statsHandler := handlers.NewStatsHandler(logger, deps.Registry, deps.Tracker, deps.Breakers, cfg.ModelIDs())

	r.Get("/", healthHandler.Root)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/stats", statsHandler.Stats)

	r.Route("/route", func(r chi.Router) {
		r.Post("/chat", chatHandler.RouteChat)
	})

	if cfg.Monitoring.EnableMetrics {
		r.Handle("/metrics", metricsHandler(deps.Prometheus))
	}

	return r
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
