package backends

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
)

type scriptedBackend struct {
	calls int
	errs  []error
}

func (s *scriptedBackend) Complete(context.Context, config.ModelDescriptor, []Message) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

type panickingBackend struct{}

func (panickingBackend) Complete(context.Context, config.ModelDescriptor, []Message) (string, error) {
	panic("boom")
}

func TestBreakerBackend_OpensAfterConsecutiveUnavailable(t *testing.T) {
	unavailable := fmt.Errorf("%w: connection refused", ErrUnavailable)
	next := &scriptedBackend{errs: []error{unavailable, unavailable}}
	breakers := circuitbreaker.NewManager(2, time.Hour)
	backend := NewBreakerBackend(next, breakers, zap.NewNop())
	model := testModel("fast", config.ProfileStandard)

	for i := 0; i < 2; i++ {
		_, err := backend.Complete(context.Background(), model, nil)
		require.ErrorIs(t, err, ErrUnavailable)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := backend.Complete(context.Background(), model, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, next.calls)

	other := testModel("creative", config.ProfileCreative)
	text, err := backend.Complete(context.Background(), other, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestBreakerBackend_OtherErrorsDoNotTrip(t *testing.T) {
	next := &scriptedBackend{errs: []error{errors.New("bad request"), errors.New("bad request")}}
	backend := NewBreakerBackend(next, circuitbreaker.NewManager(1, time.Hour), zap.NewNop())
	model := testModel("fast", config.ProfileStandard)

	for i := 0; i < 3; i++ {
		_, _ = backend.Complete(context.Background(), model, nil)
	}
	assert.Equal(t, 3, next.calls)
}

func TestBreakerBackend_PanicCountsAsFailure(t *testing.T) {
	breakers := circuitbreaker.NewManager(1, time.Hour)
	backend := NewBreakerBackend(panickingBackend{}, breakers, zap.NewNop())

	assert.Panics(t, func() {
		_, _ = backend.Complete(context.Background(), testModel("fast", config.ProfileStandard), nil)
	})
	assert.Equal(t, circuitbreaker.StateOpen, breakers.States()["fast"])
}
