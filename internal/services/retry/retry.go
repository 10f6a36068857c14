package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/cenkalti/backoff/v4"
)

// Policy defines retry behavior
type Policy struct {
	MaxAttempts  int           // Maximum number of attempts (including initial)
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Backoff multiplier
	Jitter       bool          // Spread delays by +/- JitterFactor

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// JitterFactor is the randomization applied to delays when Policy.Jitter is set.
const JitterFactor = 0.3

// DefaultPolicy is tuned for retrying a model call inside one request.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ForMaxRetries returns the default policy allowing maxRetries extra attempts.
func ForMaxRetries(maxRetries int) *Policy {
	p := DefaultPolicy()
	if maxRetries < 0 {
		maxRetries = 0
	}
	p.MaxAttempts = 1 + maxRetries
	return p
}

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// IsRetryable determines if an error should trigger another attempt
type IsRetryable func(error) bool

var transientPatterns = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"loading", // redis LOADING
}

// DefaultIsRetryable accepts unavailable backends, deadlines and transient
// network failures. Unknown models and cancellations are final.
func DefaultIsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, queue.ErrUnknownModel):
		return false
	case errors.Is(err, backends.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are used up. The last error is returned.
func Do(ctx context.Context, policy *Policy, fn Func, isRetryable IsRetryable) error {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx, attempt)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}
	}

	return backoff.RetryNotify(operation, NewBackOff(ctx, policy), notify)
}

// NewBackOff builds the exponential schedule for policy, bounded by its
// attempts and by ctx.
func NewBackOff(ctx context.Context, policy *Policy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialDelay
	b.MaxInterval = policy.MaxDelay
	b.Multiplier = policy.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	if policy.Jitter {
		b.RandomizationFactor = JitterFactor
	}
	b.MaxElapsedTime = 0 // attempts bound the loop, not wall time
	b.Reset()

	retries := policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
