// Package queue tracks how many requests are in flight against each model.
//
// Depth values are a gating signal for model selection, not a scheduler:
// nothing is actually queued here.
package queue

import (
	"context"
	"errors"
)

// ErrUnknownModel is returned for model ids the registry was not built with.
var ErrUnknownModel = errors.New("unknown model")

// Registry holds one non-negative counter per configured model.
type Registry interface {
	// Increment adds one in-flight request and returns the new depth.
	Increment(ctx context.Context, model string) (int64, error)
	// Decrement removes one in-flight request, never going below zero.
	Decrement(ctx context.Context, model string) (int64, error)
	Depth(ctx context.Context, model string) (int64, error)
	Snapshot(ctx context.Context) (map[string]int64, error)
}
