// Package backends talks to the inference services behind each model id.
package backends

import (
	"context"
	"errors"

	"github.com/amerfu/llmrouter/internal/config"
)

// ErrUnavailable marks a failed call to a reachable-in-principle backend:
// connection errors, timeouts, non-2xx statuses and unreadable bodies.
// Callers may degrade gracefully on it; any other error is a bug or a
// misconfiguration.
var ErrUnavailable = errors.New("backend unavailable")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend produces a completion for a message sequence on a given model.
type Backend interface {
	Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error)
}

// LastContent returns the content of the final message, or "".
func LastContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
