package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/stretchr/testify/require"
)

const (
	fastID     = config.DefaultFastModel
	creativeID = config.DefaultCreativeModel
)

// testConfig returns the default two-model configuration, optionally
// modified and re-finalized.
func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
		require.NoError(t, cfg.Finalize())
	}
	return cfg
}

func userMessage(content string) []backends.Message {
	return []backends.Message{{Role: "user", Content: content}}
}

// stubBackend answers with "<model>: ok" unless fn overrides the result.
type stubBackend struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, model config.ModelDescriptor) (string, error)
}

func (b *stubBackend) Complete(ctx context.Context, model config.ModelDescriptor, _ []backends.Message) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, model.ID)
	b.mu.Unlock()

	if b.fn != nil {
		return b.fn(ctx, model)
	}
	return model.ID + ": ok", nil
}

func (b *stubBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// flakyRegistry fails depth reads for selected models.
type flakyRegistry struct {
	queue.Registry
	failDepth map[string]bool
}

var errRegistryDown = errors.New("registry down")

func (r *flakyRegistry) Depth(ctx context.Context, model string) (int64, error) {
	if r.failDepth[model] {
		return 0, errRegistryDown
	}
	return r.Registry.Depth(ctx, model)
}

func setDepth(t *testing.T, reg queue.Registry, model string, depth int) {
	t.Helper()
	for i := 0; i < depth; i++ {
		_, err := reg.Increment(context.Background(), model)
		require.NoError(t, err)
	}
}
