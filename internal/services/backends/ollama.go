package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
	"go.uber.org/zap"
)

// OllamaBackend calls the Ollama /api/chat endpoint with streaming off.
type OllamaBackend struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func NewOllamaBackend(client *http.Client, timeout time.Duration, logger *zap.Logger) *OllamaBackend {
	if client == nil {
		client = newHTTPClient(timeout)
	}
	return &OllamaBackend{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

func (b *OllamaBackend) Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error) {
	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    model.ModelName,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: model.Temperature,
			NumPredict:  model.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, model.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", model.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("Ollama request failed",
			zap.String("model", model.ID),
			zap.String("endpoint", model.Endpoint),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, model.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: failed to read response: %w", ErrUnavailable, model.ID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Warn("Ollama returned error status",
			zap.String("model", model.ID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)))
		return "", fmt.Errorf("%w: %s: request failed with status %d", ErrUnavailable, model.ID, resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %s: failed to parse response: %w", ErrUnavailable, model.ID, err)
	}

	return chatResp.Message.Content, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
