package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// decrementScript lowers a hash field by one without letting it go negative.
var decrementScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if current <= 0 then
	redis.call('HSET', KEYS[1], ARGV[1], 0)
	return 0
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
`)

// RedisRegistry stores counters in a single Redis hash so that several
// router replicas share one view of backend load. Counts are not owned by
// a replica: increments from a replica that exits without decrementing
// stay until the field is reset.
type RedisRegistry struct {
	client *redis.Client
	logger *zap.Logger
	key    string
	models map[string]struct{}
}

// NewRedisRegistry creates missing counters at zero. Counters left by other
// replicas are kept as they are.
func NewRedisRegistry(ctx context.Context, client *redis.Client, keyPrefix string, models []string, logger *zap.Logger) (*RedisRegistry, error) {
	if keyPrefix == "" {
		keyPrefix = "llmrouter"
	}

	r := &RedisRegistry{
		client: client,
		logger: logger,
		key:    keyPrefix + ":queue_depth",
		models: make(map[string]struct{}, len(models)),
	}

	pipe := client.Pipeline()
	for _, id := range models {
		r.models[id] = struct{}{}
		pipe.HSetNX(ctx, r.key, id, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialise queue depth hash: %w", err)
	}

	logger.Info("Redis queue registry initialised",
		zap.String("key", r.key),
		zap.Int("models", len(models)))

	return r, nil
}

func (r *RedisRegistry) check(model string) error {
	if _, ok := r.models[model]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return nil
}

func (r *RedisRegistry) Increment(ctx context.Context, model string) (int64, error) {
	if err := r.check(model); err != nil {
		return 0, err
	}
	depth, err := r.client.HIncrBy(ctx, r.key, model, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment queue depth for %s: %w", model, err)
	}
	return depth, nil
}

func (r *RedisRegistry) Decrement(ctx context.Context, model string) (int64, error) {
	if err := r.check(model); err != nil {
		return 0, err
	}
	depth, err := decrementScript.Run(ctx, r.client, []string{r.key}, model).Int64()
	if err != nil {
		r.logger.Error("Failed to decrement queue depth",
			zap.String("model", model),
			zap.Error(err))
		return 0, fmt.Errorf("failed to decrement queue depth for %s: %w", model, err)
	}
	return depth, nil
}

func (r *RedisRegistry) Depth(ctx context.Context, model string) (int64, error) {
	if err := r.check(model); err != nil {
		return 0, err
	}
	depth, err := r.client.HGet(ctx, r.key, model).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth for %s: %w", model, err)
	}
	return depth, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) (map[string]int64, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depths: %w", err)
	}

	out := make(map[string]int64, len(r.models))
	for id := range r.models {
		out[id] = 0
		raw, ok := values[id]
		if !ok {
			continue
		}
		depth, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.logger.Warn("Ignoring malformed queue depth",
				zap.String("model", id),
				zap.String("value", raw))
			continue
		}
		out[id] = depth
	}
	return out, nil
}
