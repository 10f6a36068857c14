package handlers

import (
	"net/http"

	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
	"go.uber.org/zap"
)

type StatsResponse struct {
	QueueDepths     map[string]int64                 `json:"queue_depths"`
	Latency         map[string]*metrics.LatencyStats `json:"latency,omitempty"`
	CircuitBreakers map[string]circuitbreaker.State  `json:"circuit_breakers,omitempty"`
}

type StatsHandler struct {
	baseHandler
	registry queue.Registry
	tracker  *metrics.LatencyTracker
	breakers *circuitbreaker.Manager
	models   []string
}

// NewStatsHandler creates the stats handler. tracker is nil when Redis is
// not configured and breakers is nil in mock mode.
func NewStatsHandler(logger *zap.Logger, registry queue.Registry, tracker *metrics.LatencyTracker, breakers *circuitbreaker.Manager, models []string) *StatsHandler {
	return &StatsHandler{
		baseHandler: baseHandler{logger: logger},
		registry:    registry,
		tracker:     tracker,
		breakers:    breakers,
		models:      models,
	}
}

// Stats handles GET /stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	depths, err := h.registry.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("Failed to read queue depths", zap.Error(err))
		h.sendError(w, http.StatusServiceUnavailable, "queue depths unavailable")
		return
	}

	response := StatsResponse{QueueDepths: depths}

	if h.tracker != nil {
		latency, err := h.tracker.AllStats(r.Context(), h.models)
		if err != nil {
			h.logger.Warn("Failed to read latency stats", zap.Error(err))
		} else {
			response.Latency = latency
		}
	}

	if h.breakers != nil {
		response.CircuitBreakers = h.breakers.States()
	}

	h.sendJSON(w, http.StatusOK, response)
}
