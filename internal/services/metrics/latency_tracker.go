package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LatencyTracker keeps a rolling window of backend latencies per model in
// Redis so every router replica reports the same percentiles.
type LatencyTracker struct {
	client *redis.Client
	logger *zap.Logger
	prefix string

	windowSize    time.Duration // Samples older than this are dropped (default: 5 minutes)
	maxSamples    int64         // Max samples per model (default: 1000)
	recordTimeout time.Duration // Bound on a single ObserveLatency write
}

// LatencyStats summarises the current window for one model.
type LatencyStats struct {
	Model       string        `json:"model"`
	SampleCount int64         `json:"sample_count"`
	Average     time.Duration `json:"average"`
	Min         time.Duration `json:"min"`
	Max         time.Duration `json:"max"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
}

func NewLatencyTracker(client *redis.Client, keyPrefix string, logger *zap.Logger) *LatencyTracker {
	if keyPrefix == "" {
		keyPrefix = "llmrouter"
	}
	return &LatencyTracker{
		client:        client,
		logger:        logger,
		prefix:        keyPrefix,
		windowSize:    5 * time.Minute,
		maxSamples:    1000,
		recordTimeout: 250 * time.Millisecond,
	}
}

// RecordLatency stores one sample and trims the window.
func (lt *LatencyTracker) RecordLatency(ctx context.Context, model string, latency time.Duration) error {
	now := time.Now()
	key := lt.latencyKey(model)

	// member is "latency_ms:unix_nanos" so equal latencies stay distinct
	member := fmt.Sprintf("%d:%d", latency.Milliseconds(), now.UnixNano())
	cutoff := now.Add(-lt.windowSize).UnixMilli()

	pipe := lt.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZRemRangeByRank(ctx, key, 0, -lt.maxSamples-1)
	pipe.Expire(ctx, key, lt.windowSize*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record latency for %s: %w", model, err)
	}
	return nil
}

// Stats computes the summary for the samples currently in the window.
func (lt *LatencyTracker) Stats(ctx context.Context, model string) (*LatencyStats, error) {
	values, err := lt.client.ZRange(ctx, lt.latencyKey(model), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read latencies for %s: %w", model, err)
	}

	latencies := make([]int64, 0, len(values))
	for _, v := range values {
		raw, _, _ := strings.Cut(v, ":")
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		latencies = append(latencies, ms)
	}

	stats := &LatencyStats{Model: model, SampleCount: int64(len(latencies))}
	if len(latencies) == 0 {
		return stats, nil
	}

	slices.Sort(latencies)

	var sum int64
	for _, ms := range latencies {
		sum += ms
	}

	stats.Average = time.Duration(sum/int64(len(latencies))) * time.Millisecond
	stats.Min = time.Duration(latencies[0]) * time.Millisecond
	stats.Max = time.Duration(latencies[len(latencies)-1]) * time.Millisecond
	stats.P50 = percentile(latencies, 0.50)
	stats.P95 = percentile(latencies, 0.95)
	stats.P99 = percentile(latencies, 0.99)

	return stats, nil
}

// AllStats returns stats for each of the given models.
func (lt *LatencyTracker) AllStats(ctx context.Context, models []string) (map[string]*LatencyStats, error) {
	out := make(map[string]*LatencyStats, len(models))
	for _, model := range models {
		stats, err := lt.Stats(ctx, model)
		if err != nil {
			return nil, err
		}
		out[model] = stats
	}
	return out, nil
}

// Clear drops all samples for a model.
func (lt *LatencyTracker) Clear(ctx context.Context, model string) error {
	return lt.client.Del(ctx, lt.latencyKey(model)).Err()
}

// ObserveLatency lets the tracker sit behind a Sink. Failures are logged
// and never reach the request path.
func (lt *LatencyTracker) ObserveLatency(model string, seconds float64) {
	ctx, cancel := context.WithTimeout(context.Background(), lt.recordTimeout)
	defer cancel()

	latency := time.Duration(math.Round(seconds * float64(time.Second)))
	if err := lt.RecordLatency(ctx, model, latency); err != nil {
		lt.logger.Warn("Failed to record latency sample",
			zap.String("model", model),
			zap.Duration("latency", latency),
			zap.Error(err))
	}
}

func (lt *LatencyTracker) RecordRoutingDecision(string, string) {}
func (lt *LatencyTracker) SetQueueDepth(string, int64)          {}
func (lt *LatencyTracker) RecordError(string, string)           {}
func (lt *LatencyTracker) RecordDegraded(string)                {}

func (lt *LatencyTracker) latencyKey(model string) string {
	return lt.prefix + ":latency:" + model
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []int64, p float64) time.Duration {
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return time.Duration(sorted[idx]) * time.Millisecond
}
