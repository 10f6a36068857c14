package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exports routing metrics to Prometheus.
type Collector struct {
	decisions  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
	errors     *prometheus.CounterVec
	degraded   *prometheus.CounterVec
}

// NewCollector registers the routing metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them through promhttp.Handler().
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_routing_decisions_total",
				Help: "Total number of routing decisions",
			},
			[]string{"model", "reason"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Backend call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"model"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llm_queue_depth",
				Help: "In-flight requests per model at selection time",
			},
			[]string{"model"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_errors_total",
				Help: "Total number of routing errors",
			},
			[]string{"model", "error_type"},
		),
		degraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_degraded_completions_total",
				Help: "Completions replaced by an error message because the backend was unavailable",
			},
			[]string{"model"},
		),
	}
}

func (c *Collector) RecordRoutingDecision(model, reason string) {
	c.decisions.WithLabelValues(model, reason).Inc()
}

func (c *Collector) ObserveLatency(model string, seconds float64) {
	c.latency.WithLabelValues(model).Observe(seconds)
}

func (c *Collector) SetQueueDepth(model string, depth int64) {
	c.queueDepth.WithLabelValues(model).Set(float64(depth))
}

func (c *Collector) RecordError(model, errorType string) {
	c.errors.WithLabelValues(model, errorType).Inc()
}

func (c *Collector) RecordDegraded(model string) {
	c.degraded.WithLabelValues(model).Inc()
}
