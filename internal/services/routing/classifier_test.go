package routing

import (
	"testing"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	table := []config.QueryType{
		{Name: "creative", Keywords: []string{"write", "story"}},
		{Name: "summary", Keywords: []string{"summarize"}},
		{Name: "greeting", Keywords: []string{"hello", "how are you"}},
	}

	tests := []struct {
		name     string
		messages []backends.Message
		want     string
	}{
		{"empty conversation", nil, QueryTypeUnknown},
		{"no keyword", userMessage("the weather is nice"), QueryTypeUnknown},
		{"case insensitive", userMessage("HELLO there"), "greeting"},
		{"substring match", userMessage("rewrite this"), "creative"},
		{"first type in table order wins", userMessage("hello, write me a story"), "creative"},
		{"multi-word keyword", userMessage("Hi, how are you?"), "greeting"},
		{
			name: "only the last message counts",
			messages: []backends.Message{
				{Role: "user", Content: "write a story"},
				{Role: "assistant", Content: "Once upon a time"},
				{Role: "user", Content: "now summarize it"},
			},
			want: "summary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.messages, table))
		})
	}
}

func TestClassify_EmptyTable(t *testing.T) {
	assert.Equal(t, QueryTypeUnknown, Classify(userMessage("hello"), nil))
}

func TestClassify_DefaultTableGreeting(t *testing.T) {
	assert.Equal(t, "greeting", Classify(userMessage("hello, how are you?"), config.DefaultQueryTypes()))
}
