// Package routing decides which model serves a chat request and drives the
// call, including the single fallback hop on failure.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/internal/services/retry"
	"go.uber.org/zap"
)

// Request is one inbound chat request.
type Request struct {
	Messages    []backends.Message
	LatencyHint string
	Priority    string
}

// Decision describes how a request was routed.
type Decision struct {
	SelectedModel string `json:"selected_model"`
	Reason        string `json:"reason"`
	LatencyMS     int64  `json:"latency_ms"`
	QueueDepth    int64  `json:"queue_depth"`
}

// Response is the routed result.
type Response struct {
	ModelSelected string
	Completion    string
	Degraded      bool
	Cause         error
	Decision      Decision
}

// Router classifies, selects, invokes and falls back.
type Router struct {
	cfg         ConfigView
	registry    queue.Registry
	selector    *Selector
	invoker     *Invoker
	retryPolicy *retry.Policy
	logger      *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRetryPolicy sets the backoff used when retry-before-fallback is
// enabled. The attempt count always comes from the configured max retries.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(r *Router) {
		r.retryPolicy = p
	}
}

func NewRouter(cfg ConfigView, registry queue.Registry, backend backends.Backend, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		cfg:      cfg,
		registry: registry,
		selector: NewSelector(cfg, registry, logger),
		invoker:  NewInvoker(cfg, registry, backend, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route serves one request end to end. If the selected model's call fails
// and that model is not the fallback, the fallback model is called once and
// the reason gets a "+error_fallback" suffix. All returned errors wrap
// ErrRoutingFailed.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	queryType := Classify(req.Messages, r.cfg.QueryTypes())
	sel := r.selector.Select(ctx, queryType, req.LatencyHint, req.Priority)
	depth := r.depth(ctx, sel.Model)

	r.logger.Debug("Model selected",
		zap.String("model", sel.Model),
		zap.String("reason", sel.Reason()),
		zap.Int64("queue_depth", depth),
		zap.String("latency_hint", req.LatencyHint),
		zap.String("priority", req.Priority))

	completion, err := r.invokeSelected(ctx, sel.Model, req.Messages)
	if err == nil {
		return newResponse(sel.Model, sel.Reason(), depth, completion), nil
	}

	fallback := r.cfg.FallbackModel()
	if sel.Model == fallback {
		r.logger.Error("Fallback model failed",
			zap.String("model", sel.Model),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrRoutingFailed, sel.Model, err)
	}

	r.logger.Warn("Model call failed, trying fallback",
		zap.String("model", sel.Model),
		zap.String("fallback", fallback),
		zap.Error(err))

	completion, fbErr := r.invoker.Invoke(ctx, fallback, req.Messages)
	if fbErr != nil {
		r.logger.Error("Fallback model failed",
			zap.String("model", fallback),
			zap.Error(fbErr))
		return nil, fmt.Errorf("%w: %s failed (%v), fallback %s: %w", ErrRoutingFailed, sel.Model, err, fallback, fbErr)
	}

	reason := sel.Reason() + "+" + PathErrorFallback
	return newResponse(fallback, reason, r.depth(ctx, fallback), completion), nil
}

// invokeSelected calls the selected model, retrying it first when
// retry-before-fallback is enabled. With retries, a degraded completion is
// retried too; if every attempt degrades the last one is returned.
func (r *Router) invokeSelected(ctx context.Context, modelID string, messages []backends.Message) (Completion, error) {
	if !r.cfg.RetryBeforeFallback() || r.cfg.MaxRetries() <= 0 {
		return r.invoker.Invoke(ctx, modelID, messages)
	}

	policy := r.policy(modelID)

	var (
		last      Completion
		invokeErr error
	)
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		last, invokeErr = r.invoker.Invoke(ctx, modelID, messages)
		if invokeErr != nil {
			return invokeErr
		}
		if last.Degraded {
			return last.Cause
		}
		return nil
	}, retry.DefaultIsRetryable)

	switch {
	case err == nil:
		return last, nil
	case invokeErr == nil && last.Degraded:
		return last, nil
	default:
		return Completion{}, err
	}
}

func (r *Router) policy(modelID string) *retry.Policy {
	p := retry.ForMaxRetries(r.cfg.MaxRetries())
	if r.retryPolicy != nil {
		custom := *r.retryPolicy
		custom.MaxAttempts = p.MaxAttempts
		p = &custom
	}
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Info("Retrying model call",
			zap.String("model", modelID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return p
}

// depth reads a model's queue depth for reporting; read errors report 0.
func (r *Router) depth(ctx context.Context, modelID string) int64 {
	d, err := r.registry.Depth(ctx, modelID)
	if err != nil {
		if !errors.Is(err, queue.ErrUnknownModel) {
			r.logger.Warn("Failed to read queue depth",
				zap.String("model", modelID),
				zap.Error(err))
		}
		return 0
	}
	return d
}

func newResponse(model, reason string, depth int64, c Completion) *Response {
	return &Response{
		ModelSelected: model,
		Completion:    c.Text,
		Degraded:      c.Degraded,
		Cause:         c.Cause,
		Decision: Decision{
			SelectedModel: model,
			Reason:        reason,
			LatencyMS:     c.Latency.Milliseconds(),
			QueueDepth:    depth,
		},
	}
}
