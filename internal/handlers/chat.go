package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/routing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRouter is the routing entry point the chat handler depends on.
type ChatRouter interface {
	Route(ctx context.Context, req routing.Request) (*routing.Response, error)
}

type ChatMessage struct {
	Role    string `json:"role" validate:"required,max=32"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,dive"`
	LatencyHint string        `json:"latency_hint" validate:"max=32"`
	Priority    string        `json:"priority" validate:"max=32"`
}

type ChatMeta struct {
	Reason     string `json:"reason"`
	LatencyMS  int64  `json:"latency_ms"`
	QueueDepth int64  `json:"queue_depth"`
	Degraded   bool   `json:"degraded"`
	RequestID  string `json:"request_id"`
}

type ChatResponse struct {
	ModelSelected string   `json:"model_selected"`
	Completion    string   `json:"completion"`
	Meta          ChatMeta `json:"meta"`
}

type ChatHandler struct {
	baseHandler
	router ChatRouter
	sink   metrics.Sink
}

func NewChatHandler(logger *zap.Logger, router ChatRouter, sink metrics.Sink) *ChatHandler {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &ChatHandler{
		baseHandler: baseHandler{logger: logger},
		router:      router,
		sink:        sink,
	}
}

// RouteChat handles POST /route/chat.
func (h *ChatHandler) RouteChat(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	var request ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Failed to decode request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := ValidateStruct(request); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			h.sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message, Fields: vErr.Fields})
			return
		}
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if request.LatencyHint == "" {
		request.LatencyHint = "normal"
	}
	if request.Priority == "" {
		request.Priority = "normal"
	}

	logger := h.logger.With(zap.String("request_id", requestID))
	logger.Info("Routing request",
		zap.String("latency_hint", request.LatencyHint),
		zap.String("priority", request.Priority),
		zap.Int("messages_count", len(request.Messages)))

	messages := make([]backends.Message, len(request.Messages))
	for i, m := range request.Messages {
		messages[i] = backends.Message{Role: m.Role, Content: m.Content}
	}

	// A disconnecting client does not abort the backend call.
	ctx := context.WithoutCancel(r.Context())

	resp, err := h.router.Route(ctx, routing.Request{
		Messages:    messages,
		LatencyHint: request.LatencyHint,
		Priority:    request.Priority,
	})
	if err != nil {
		logger.Error("Routing failed", zap.Error(err))
		h.sink.RecordError("unknown", "request_failed")
		h.sendError(w, http.StatusInternalServerError, "routing failed")
		return
	}

	h.sink.RecordRoutingDecision(resp.ModelSelected, resp.Decision.Reason)
	h.sink.ObserveLatency(resp.ModelSelected, float64(resp.Decision.LatencyMS)/1000.0)
	h.sink.SetQueueDepth(resp.ModelSelected, resp.Decision.QueueDepth)
	if resp.Degraded {
		h.sink.RecordDegraded(resp.ModelSelected)
	}

	logger.Info("Request routed",
		zap.String("model_selected", resp.ModelSelected),
		zap.String("reason", resp.Decision.Reason),
		zap.Int64("latency_ms", resp.Decision.LatencyMS),
		zap.Bool("degraded", resp.Degraded))

	h.sendJSON(w, http.StatusOK, ChatResponse{
		ModelSelected: resp.ModelSelected,
		Completion:    resp.Completion,
		Meta: ChatMeta{
			Reason:     resp.Decision.Reason,
			LatencyMS:  resp.Decision.LatencyMS,
			QueueDepth: resp.Decision.QueueDepth,
			Degraded:   resp.Degraded,
			RequestID:  requestID,
		},
	})
}
