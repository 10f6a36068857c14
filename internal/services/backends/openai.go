package backends

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIBackend calls OpenAI-compatible chat completion APIs such as
// Ollama's /v1 surface, vLLM or LiteLLM. Clients are cached per
// endpoint and key.
type OpenAIBackend struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewOpenAIBackend(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *OpenAIBackend {
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}
	return &OpenAIBackend{
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		clients:    make(map[string]*openai.Client),
	}
}

func (b *OpenAIBackend) client(model config.ModelDescriptor) *openai.Client {
	key := model.Endpoint + "\x00" + model.APIKey

	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.clients[key]; ok {
		return c
	}

	clientConfig := openai.DefaultConfig(model.APIKey)
	clientConfig.BaseURL = model.Endpoint
	clientConfig.HTTPClient = b.httpClient

	c := openai.NewClientWithConfig(clientConfig)
	b.clients[key] = c
	return c
}

func (b *OpenAIBackend) Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       model.ModelName,
		Messages:    convertMessages(messages),
		Temperature: float32(model.Temperature),
		MaxTokens:   model.MaxTokens,
	}

	resp, err := b.client(model).CreateChatCompletion(ctx, req)
	if err != nil {
		b.logger.Warn("OpenAI-compatible request failed",
			zap.String("model", model.ID),
			zap.String("endpoint", model.Endpoint),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, model.ID, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: empty response", ErrUnavailable, model.ID)
	}

	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		switch role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleAssistant, openai.ChatMessageRoleUser:
		default:
			role = openai.ChatMessageRoleUser
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
