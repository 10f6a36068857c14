package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"go.uber.org/zap"
)

// Completion is the result of one model call. A Degraded completion means
// the backend was unavailable; Text then carries a message naming the
// model and Cause holds the underlying error.
type Completion struct {
	Text     string
	Degraded bool
	Cause    error
	Latency  time.Duration
}

// Invoker wraps a backend call with queue-depth accounting.
type Invoker struct {
	cfg      ConfigView
	registry queue.Registry
	backend  backends.Backend
	logger   *zap.Logger
}

func NewInvoker(cfg ConfigView, registry queue.Registry, backend backends.Backend, logger *zap.Logger) *Invoker {
	return &Invoker{
		cfg:      cfg,
		registry: registry,
		backend:  backend,
		logger:   logger,
	}
}

// Invoke calls the model. The model's depth is raised for the duration of
// the call and lowered again on every exit path, panics included.
//
// Unavailable backends produce a Degraded completion and a nil error. Other
// failures, including recovered panics, are returned as errors.
func (inv *Invoker) Invoke(ctx context.Context, modelID string, messages []backends.Message) (completion Completion, err error) {
	model, ok := inv.cfg.Model(modelID)
	if !ok {
		return Completion{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	if _, err := inv.registry.Increment(ctx, modelID); err != nil {
		return Completion{}, fmt.Errorf("failed to acquire queue slot for %s: %w", modelID, err)
	}
	defer inv.release(modelID)

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("Backend panicked",
				zap.String("model", modelID),
				zap.Any("panic", r))
			completion = Completion{}
			err = fmt.Errorf("%w: %s: %v", ErrBackendPanic, modelID, r)
		}
	}()

	text, callErr := inv.backend.Complete(ctx, model, messages)
	latency := time.Since(start)

	if callErr != nil {
		if !errors.Is(callErr, backends.ErrUnavailable) {
			return Completion{}, fmt.Errorf("call to %s failed: %w", modelID, callErr)
		}

		inv.logger.Warn("Backend unavailable, returning degraded completion",
			zap.String("model", modelID),
			zap.Duration("latency", latency),
			zap.Error(callErr))

		return Completion{
			Text:     degradedText(model),
			Degraded: true,
			Cause:    callErr,
			Latency:  latency,
		}, nil
	}

	return Completion{Text: text, Latency: latency}, nil
}

// release uses a detached context so the slot is returned even when the
// request context is already done.
func (inv *Invoker) release(modelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := inv.registry.Decrement(ctx, modelID); err != nil {
		inv.logger.Error("Failed to release queue slot",
			zap.String("model", modelID),
			zap.Error(err))
	}
}

func degradedText(model config.ModelDescriptor) string {
	if model.API == config.APIOpenAI {
		return fmt.Sprintf("Error: Could not reach %s. Please ensure the endpoint %s is serving model %s.", model.ID, model.Endpoint, model.ModelName)
	}
	return fmt.Sprintf("Error: Could not reach %s. Please ensure Ollama is running with model %s loaded.", model.ID, model.ModelName)
}
