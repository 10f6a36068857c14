package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const slowRequestThreshold = 10 * time.Second

// HTTPMetrics holds the transport-level collectors. Routing metrics live in
// services/metrics.
type HTTPMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	responseSize      *prometheus.HistogramVec
	activeConnections prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrouter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmrouter_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),
		responseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmrouter_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "llmrouter_http_active_requests",
				Help: "Number of in-flight HTTP requests",
			},
		),
	}
}

// Middleware collects Prometheus metrics for every request.
func (m *HTTPMetrics) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.activeConnections.Inc()
			defer m.activeConnections.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// chi fills the pattern in while routing, so read it afterwards
			routePattern := getRoutePattern(r)
			elapsed := time.Since(start)
			code := strconv.Itoa(status(ww))

			m.requestsTotal.WithLabelValues(r.Method, routePattern, code).Inc()
			m.requestDuration.WithLabelValues(r.Method, routePattern, code).Observe(elapsed.Seconds())
			m.responseSize.WithLabelValues(r.Method, routePattern).Observe(float64(ww.BytesWritten()))

			if elapsed > slowRequestThreshold {
				logger.Warn("Slow request detected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", elapsed),
					zap.Int("status", status(ww)),
				)
			}
		})
	}
}

func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	// Unmatched paths collapse into one label to bound cardinality.
	return "unmatched"
}
