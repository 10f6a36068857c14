package queue

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MemoryRegistry keeps counters in process memory. The model set is fixed
// at construction so lookups need no lock; each counter is updated
// atomically on its own.
type MemoryRegistry struct {
	counters map[string]*atomic.Int64
}

// NewMemoryRegistry creates a registry with a zeroed counter per model id.
func NewMemoryRegistry(models []string) *MemoryRegistry {
	counters := make(map[string]*atomic.Int64, len(models))
	for _, id := range models {
		counters[id] = &atomic.Int64{}
	}
	return &MemoryRegistry{counters: counters}
}

func (r *MemoryRegistry) counter(model string) (*atomic.Int64, error) {
	c, ok := r.counters[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return c, nil
}

func (r *MemoryRegistry) Increment(_ context.Context, model string) (int64, error) {
	c, err := r.counter(model)
	if err != nil {
		return 0, err
	}
	return c.Add(1), nil
}

func (r *MemoryRegistry) Decrement(_ context.Context, model string) (int64, error) {
	c, err := r.counter(model)
	if err != nil {
		return 0, err
	}
	for {
		cur := c.Load()
		if cur <= 0 {
			return 0, nil
		}
		if c.CompareAndSwap(cur, cur-1) {
			return cur - 1, nil
		}
	}
}

func (r *MemoryRegistry) Depth(_ context.Context, model string) (int64, error) {
	c, err := r.counter(model)
	if err != nil {
		return 0, err
	}
	return c.Load(), nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(r.counters))
	for id, c := range r.counters {
		out[id] = c.Load()
	}
	return out, nil
}
