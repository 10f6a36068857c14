package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/internal/services/routing"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
)

type stubRouter struct {
	resp *routing.Response
	err  error
	got  routing.Request
	ctx  context.Context
}

func (s *stubRouter) Route(ctx context.Context, req routing.Request) (*routing.Response, error) {
	s.got = req
	s.ctx = ctx
	return s.resp, s.err
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []string
	latencies []float64
	depths    map[string]int64
	errors    []string
	degraded  []string
}

func (s *recordingSink) RecordRoutingDecision(model, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, model+"/"+reason)
}

func (s *recordingSink) ObserveLatency(_ string, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, seconds)
}

func (s *recordingSink) SetQueueDepth(model string, depth int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depths == nil {
		s.depths = make(map[string]int64)
	}
	s.depths[model] = depth
}

func (s *recordingSink) RecordError(model, errorType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, model+"/"+errorType)
}

func (s *recordingSink) RecordDegraded(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded = append(s.degraded, model)
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/route/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.RouteChat(w, req)
	return w
}

func TestChatHandler_RouteChat(t *testing.T) {
	router := &stubRouter{resp: &routing.Response{
		ModelSelected: "llama3.2-1b-fast",
		Completion:    "Hello! How can I help?",
		Decision: routing.Decision{
			SelectedModel: "llama3.2-1b-fast",
			Reason:        "greeting+fallback",
			LatencyMS:     250,
			QueueDepth:    1,
		},
	}}
	sink := &recordingSink{}
	h := NewChatHandler(zap.NewNop(), router, sink)

	w := postChat(t, h, `{"messages":[{"role":"user","content":"hello there"}],"latency_hint":"fast"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "llama3.2-1b-fast", resp.ModelSelected)
	assert.Equal(t, "Hello! How can I help?", resp.Completion)
	assert.Equal(t, "greeting+fallback", resp.Meta.Reason)
	assert.Equal(t, int64(250), resp.Meta.LatencyMS)
	assert.Equal(t, int64(1), resp.Meta.QueueDepth)
	assert.False(t, resp.Meta.Degraded)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.Meta.RequestID)

	assert.Equal(t, "fast", router.got.LatencyHint)
	assert.Equal(t, "normal", router.got.Priority)
	require.Len(t, router.got.Messages, 1)
	assert.Equal(t, "hello there", router.got.Messages[0].Content)

	assert.Equal(t, []string{"llama3.2-1b-fast/greeting+fallback"}, sink.decisions)
	assert.InDelta(t, 0.25, sink.latencies[0], 1e-9)
	assert.Equal(t, int64(1), sink.depths["llama3.2-1b-fast"])
	assert.Empty(t, sink.errors)
	assert.Empty(t, sink.degraded)
}

func TestChatHandler_DetachesClientCancellation(t *testing.T) {
	router := &stubRouter{resp: &routing.Response{ModelSelected: "m"}}
	h := NewChatHandler(zap.NewNop(), router, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/route/chat",
		bytes.NewBufferString(`{"messages":[{"role":"user","content":"hi"}]}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.RouteChat(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, router.ctx.Err())
}

func TestChatHandler_Degraded(t *testing.T) {
	router := &stubRouter{resp: &routing.Response{
		ModelSelected: "llama3.2-1b-creative",
		Completion:    "Error: Could not reach llama3.2-1b-creative.",
		Degraded:      true,
		Decision:      routing.Decision{SelectedModel: "llama3.2-1b-creative", Reason: "creative+preferred"},
	}}
	sink := &recordingSink{}
	h := NewChatHandler(zap.NewNop(), router, sink)

	w := postChat(t, h, `{"messages":[{"role":"user","content":"write a poem"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Meta.Degraded)
	assert.Equal(t, []string{"llama3.2-1b-creative"}, sink.degraded)
}

func TestChatHandler_RoutingFailure(t *testing.T) {
	router := &stubRouter{err: errors.New("fallback model exploded")}
	sink := &recordingSink{}
	h := NewChatHandler(zap.NewNop(), router, sink)

	w := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "routing failed", resp.Error)
	assert.NotContains(t, w.Body.String(), "exploded")
	assert.Equal(t, []string{"unknown/request_failed"}, sink.errors)
	assert.Empty(t, sink.decisions)
}

func TestChatHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "malformed json", body: `{"messages":`},
		{name: "missing messages", body: `{}`, field: "ChatRequest.Messages"},
		{name: "message without role", body: `{"messages":[{"content":"hi"}]}`, field: "ChatRequest.Messages[0].Role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := &stubRouter{}
			h := NewChatHandler(zap.NewNop(), router, nil)

			w := postChat(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Contains(t, resp.Fields, tt.field)
			}
			assert.Nil(t, router.got.Messages)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		mockMode bool
		mode     string
	}{
		{name: "mock", mockMode: true, mode: "mock"},
		{name: "live", mockMode: false, mode: "live"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(zap.NewNop(), tt.mockMode)

			w := httptest.NewRecorder()
			h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var health HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Equal(t, "healthy", health.Status)
			assert.Equal(t, tt.mode, health.Mode)
			assert.NotEmpty(t, health.Note)

			w = httptest.NewRecorder()
			h.Root(w, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var info ServiceInfo
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
			assert.Equal(t, "LLM Smart Router", info.Service)
			assert.Equal(t, tt.mode, info.Mode)
			assert.Equal(t, "/route/chat", info.Endpoints["chat"])
			assert.Equal(t, tt.mockMode, info.LocalSetup != "")
		})
	}
}

type failingRegistry struct {
	queue.Registry
}

func (failingRegistry) Snapshot(context.Context) (map[string]int64, error) {
	return nil, errors.New("redis down")
}

func TestStatsHandler(t *testing.T) {
	models := []string{"fast", "creative"}
	registry := queue.NewMemoryRegistry(models)
	_, err := registry.Increment(context.Background(), "creative")
	require.NoError(t, err)

	t.Run("queue depths only", func(t *testing.T) {
		h := NewStatsHandler(zap.NewNop(), registry, nil, nil, models)

		w := httptest.NewRecorder()
		h.Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp StatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, map[string]int64{"fast": 0, "creative": 1}, resp.QueueDepths)
		assert.Nil(t, resp.Latency)
	})

	t.Run("with latency tracker", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		tracker := metrics.NewLatencyTracker(client, "test", zap.NewNop())
		require.NoError(t, tracker.RecordLatency(context.Background(), "fast", 120*time.Millisecond))

		breakers := circuitbreaker.NewManager(1, time.Minute)
		breakers.Get("creative").RecordFailure()

		h := NewStatsHandler(zap.NewNop(), registry, tracker, breakers, models)

		w := httptest.NewRecorder()
		h.Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp StatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Contains(t, resp.Latency, "fast")
		assert.Equal(t, int64(1), resp.Latency["fast"].SampleCount)
		assert.Equal(t, circuitbreaker.StateOpen, resp.CircuitBreakers["creative"])
	})

	t.Run("registry failure", func(t *testing.T) {
		h := NewStatsHandler(zap.NewNop(), failingRegistry{}, nil, nil, models)

		w := httptest.NewRecorder()
		h.Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
