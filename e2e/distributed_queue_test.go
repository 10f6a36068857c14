package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/internal/services/routing"
)

// gateBackend blocks completions for one model until released.
type gateBackend struct {
	model   string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateBackend(model string) *gateBackend {
	return &gateBackend{
		model:   model,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateBackend) Complete(ctx context.Context, model config.ModelDescriptor, _ []backends.Message) (string, error) {
	if model.ID == g.model {
		g.once.Do(func() { close(g.started) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "completion from " + model.ID, nil
}

func newPodConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	zero := 0
	cfg.RawModelList[1].MaxQueueDepth = &zero
	require.NoError(t, cfg.Finalize())
	return cfg
}

func userMessage(content string) []backends.Message {
	return []backends.Message{{Role: "user", Content: content}}
}

// TestDistributedQueueDepth runs two router replicas against one Redis and
// checks that an in-flight request on one replica closes the creative gate
// on the other.
func TestDistributedQueueDepth(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zap.NewNop()
	cfg := newPodConfig(t)
	ctx := context.Background()

	registry1, err := queue.NewRedisRegistry(ctx, redisClient, "e2e", cfg.ModelIDs(), logger.Named("pod1"))
	require.NoError(t, err)
	registry2, err := queue.NewRedisRegistry(ctx, redisClient, "e2e", cfg.ModelIDs(), logger.Named("pod2"))
	require.NoError(t, err)

	gate := newGateBackend(cfg.CreativeModel())
	pod1 := routing.NewRouter(cfg, registry1, gate, logger.Named("pod1"))
	pod2 := routing.NewRouter(cfg, registry2, gate, logger.Named("pod2"))

	type result struct {
		resp *routing.Response
		err  error
	}
	inFlight := make(chan result, 1)
	go func() {
		resp, err := pod1.Route(ctx, routing.Request{Messages: userMessage("write a poem about redis")})
		inFlight <- result{resp, err}
	}()

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("creative completion never started on pod1")
	}

	depth, err := registry2.Depth(ctx, cfg.CreativeModel())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth, "pod2 should observe pod1's in-flight request")

	resp, err := pod2.Route(ctx, routing.Request{Messages: userMessage("write a story")})
	require.NoError(t, err)
	assert.Equal(t, cfg.FallbackModel(), resp.ModelSelected)
	assert.Equal(t, "creative+fallback", resp.Decision.Reason)

	close(gate.release)
	first := <-inFlight
	require.NoError(t, first.err)
	assert.Equal(t, cfg.CreativeModel(), first.resp.ModelSelected)
	assert.Equal(t, "creative+preferred", first.resp.Decision.Reason)

	resp, err = pod2.Route(ctx, routing.Request{Messages: userMessage("write a story")})
	require.NoError(t, err)
	assert.Equal(t, cfg.CreativeModel(), resp.ModelSelected)

	snapshot, err := registry1.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{cfg.FastModel(): 0, cfg.CreativeModel(): 0}, snapshot)
}

// TestDistributedLatencyStats checks that replicas writing through their own
// trackers report identical percentiles.
func TestDistributedLatencyStats(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zap.NewNop()
	pod1 := metrics.NewLatencyTracker(redisClient, "e2e", logger)
	pod2 := metrics.NewLatencyTracker(redisClient, "e2e", logger)

	model := config.DefaultFastModel
	for i, ms := range []int{100, 300, 200, 400} {
		tracker := pod1
		if i%2 == 1 {
			tracker = pod2
		}
		tracker.ObserveLatency(model, float64(ms)/1000.0)
	}

	stats1, err := pod1.Stats(context.Background(), model)
	require.NoError(t, err)
	stats2, err := pod2.Stats(context.Background(), model)
	require.NoError(t, err)

	assert.Equal(t, stats1, stats2)
	assert.Equal(t, int64(4), stats1.SampleCount)
	assert.Equal(t, 250*time.Millisecond, stats1.Average)
	assert.Equal(t, 100*time.Millisecond, stats1.Min)
	assert.Equal(t, 400*time.Millisecond, stats1.Max)
}
