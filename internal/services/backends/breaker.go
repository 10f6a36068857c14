package backends

import (
	"context"
	"errors"
	"fmt"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is wrapped together with ErrUnavailable when a model's
// breaker rejects the call without contacting the endpoint.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerBackend short-circuits models whose endpoint keeps failing. Only
// ErrUnavailable counts as a failure.
type BreakerBackend struct {
	next     Backend
	breakers *circuitbreaker.Manager
	logger   *zap.Logger
}

func NewBreakerBackend(next Backend, breakers *circuitbreaker.Manager, logger *zap.Logger) *BreakerBackend {
	return &BreakerBackend{
		next:     next,
		breakers: breakers,
		logger:   logger,
	}
}

func (b *BreakerBackend) Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error) {
	breaker := b.breakers.Get(model.ID)
	if !breaker.Allow() {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, model.ID, ErrCircuitOpen)
	}

	reported := false
	defer func() {
		// a panicking backend still has to release a half-open probe
		if !reported {
			breaker.RecordFailure()
		}
	}()

	text, err := b.next.Complete(ctx, model, messages)
	reported = true

	if errors.Is(err, ErrUnavailable) {
		breaker.RecordFailure()
		if state, failures := breaker.State(); state == circuitbreaker.StateOpen {
			b.logger.Warn("Circuit opened for model",
				zap.String("model", model.ID),
				zap.Int("consecutive_failures", failures))
		}
		return text, err
	}

	breaker.RecordSuccess()
	return text, err
}
