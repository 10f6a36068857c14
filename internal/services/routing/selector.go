package routing

import (
	"context"
	"slices"

	"github.com/amerfu/llmrouter/internal/services/queue"
	"go.uber.org/zap"
)

// Selection path tags used in decision reasons.
const (
	PathFast          = "fast"
	PathPreferred     = "preferred"
	PathFallback      = "fallback"
	PathErrorFallback = "error_fallback"

	LatencyHintFast = "fast"
)

var defaultPreferredTypes = []string{"creative", "complex", "reasoning"}

// Selection is the outcome of model selection.
type Selection struct {
	Model     string
	QueryType string
	Path      string
}

// Reason renders the decision reason, e.g. "creative+preferred".
func (s Selection) Reason() string {
	return s.QueryType + "+" + s.Path
}

// Selector applies the ordered selection rules. It only reads queue depths.
type Selector struct {
	cfg      ConfigView
	registry queue.Registry
	logger   *zap.Logger
}

func NewSelector(cfg ConfigView, registry queue.Registry, logger *zap.Logger) *Selector {
	return &Selector{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Select picks a model for the query type. Rules, first match wins:
//  1. latency hint "fast" and the fast model has capacity
//  2. a preferred query type and the creative model has capacity
//  3. the fallback model
//
// A model has capacity while its depth is at or under its max_queue_depth.
// Priority does not influence the choice.
func (s *Selector) Select(ctx context.Context, queryType, latencyHint, priority string) Selection {
	if latencyHint == LatencyHintFast && s.hasCapacity(ctx, s.cfg.FastModel()) {
		return Selection{Model: s.cfg.FastModel(), QueryType: queryType, Path: PathFast}
	}

	if s.isPreferred(queryType) && s.hasCapacity(ctx, s.cfg.CreativeModel()) {
		return Selection{Model: s.cfg.CreativeModel(), QueryType: queryType, Path: PathPreferred}
	}

	if priority != "" {
		s.logger.Debug("Priority hint does not affect selection",
			zap.String("priority", priority),
			zap.String("query_type", queryType))
	}

	return Selection{Model: s.cfg.FallbackModel(), QueryType: queryType, Path: PathFallback}
}

func (s *Selector) isPreferred(queryType string) bool {
	preferred := s.cfg.PreferredQueryTypes()
	if len(preferred) == 0 {
		preferred = defaultPreferredTypes
	}
	return slices.Contains(preferred, queryType)
}

// hasCapacity reports false for unset or unknown models and when the depth
// cannot be read.
func (s *Selector) hasCapacity(ctx context.Context, modelID string) bool {
	if modelID == "" {
		return false
	}
	model, ok := s.cfg.Model(modelID)
	if !ok {
		return false
	}

	depth, err := s.registry.Depth(ctx, modelID)
	if err != nil {
		s.logger.Warn("Failed to read queue depth, skipping model",
			zap.String("model", modelID),
			zap.Error(err))
		return false
	}

	return depth <= int64(model.MaxQueueDepth)
}
