package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

const (
	serviceName    = "LLM Smart Router"
	serviceVersion = "1.0.0"
)

type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Note   string `json:"note"`
}

type ServiceInfo struct {
	Service    string            `json:"service"`
	Version    string            `json:"version"`
	Mode       string            `json:"mode"`
	Message    string            `json:"message"`
	LocalSetup string            `json:"local_setup,omitempty"`
	Endpoints  map[string]string `json:"endpoints"`
}

type HealthHandler struct {
	baseHandler
	mockMode bool
}

func NewHealthHandler(logger *zap.Logger, mockMode bool) *HealthHandler {
	return &HealthHandler{
		baseHandler: baseHandler{logger: logger},
		mockMode:    mockMode,
	}
}

func (h *HealthHandler) mode() string {
	if h.mockMode {
		return "mock"
	}
	return "live"
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	note := "Running with real LLM models"
	if h.mockMode {
		note = "Running in mock mode with simulated responses. Set MOCK_MODE=false and start Ollama for real completions."
	}

	h.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Mode:   h.mode(),
		Note:   note,
	})
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	info := ServiceInfo{
		Service: serviceName,
		Version: serviceVersion,
		Mode:    h.mode(),
		Message: "Live version with real LLM models",
		Endpoints: map[string]string{
			"chat":    "/route/chat",
			"health":  "/healthz",
			"stats":   "/stats",
			"metrics": "/metrics",
		},
	}
	if h.mockMode {
		info.Message = "Mock mode: routing logic runs against simulated responses."
		info.LocalSetup = "To run with real models locally: set MOCK_MODE=false and ensure Ollama is running"
	}

	h.sendJSON(w, http.StatusOK, info)
}
