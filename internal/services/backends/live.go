package backends

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
	"go.uber.org/zap"
)

// LiveBackend dispatches each call to the client matching the model's API.
type LiveBackend struct {
	ollama *OllamaBackend
	openai *OpenAIBackend
}

// NewLiveBackend creates the live clients. Every call is bounded by timeout.
func NewLiveBackend(timeout time.Duration, logger *zap.Logger) *LiveBackend {
	client := newHTTPClient(timeout)
	return &LiveBackend{
		ollama: NewOllamaBackend(client, timeout, logger),
		openai: NewOpenAIBackend(client, timeout, logger),
	}
}

func (b *LiveBackend) Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error) {
	if model.API == config.APIOpenAI {
		return b.openai.Complete(ctx, model, messages)
	}
	return b.ollama.Complete(ctx, model, messages)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
