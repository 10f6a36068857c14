package backends

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
)

// SimulatedBackend stands in for real inference in mock mode. It waits a
// random delay in [minDelay, maxDelay] and answers with canned text.
type SimulatedBackend struct {
	minDelay time.Duration
	maxDelay time.Duration
}

func NewSimulatedBackend(minDelay, maxDelay time.Duration) *SimulatedBackend {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimulatedBackend{minDelay: minDelay, maxDelay: maxDelay}
}

func (b *SimulatedBackend) Complete(ctx context.Context, model config.ModelDescriptor, messages []Message) (string, error) {
	delay := b.minDelay
	if span := b.maxDelay - b.minDelay; span > 0 {
		delay += rand.N(span + 1)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return cannedResponse(model, LastContent(messages)), nil
}

type queryPattern int

const (
	patternOther queryPattern = iota
	patternGreeting
	patternSummary
	patternQuestion
	patternCreative
)

var (
	greetingWords = []string{"hello", "hi", "hey", "greetings"}
	summaryWords  = []string{"summary", "summarize", "summarise", "briefly", "tldr", "overview"}
	questionWords = []string{"what", "who", "when", "where", "why", "how"}
	creativeWords = []string{"write", "create", "story", "poem", "creative"}
)

func classifyPattern(query string) queryPattern {
	lower := strings.ToLower(query)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	switch {
	case hasAny(words, greetingWords) || strings.Contains(lower, "how are you"):
		return patternGreeting
	case hasAny(words, summaryWords):
		return patternSummary
	case hasAny(words, questionWords) || strings.HasSuffix(strings.TrimSpace(lower), "?"):
		return patternQuestion
	case hasAny(words, creativeWords):
		return patternCreative
	default:
		return patternOther
	}
}

func hasAny(words, candidates []string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func cannedResponse(model config.ModelDescriptor, query string) string {
	creative := model.Profile == config.ProfileCreative
	name := fmt.Sprintf("%s (%s)", model.ID, model.ModelName)

	switch classifyPattern(query) {
	case patternGreeting:
		if creative {
			return fmt.Sprintf("Hello! I'm %s, tuned for creative and in-depth work. I'm ready to help with stories, detailed explanations or any imaginative idea you have. What shall we explore?", name)
		}
		return fmt.Sprintf("Hi there! I'm %s, tuned for quick answers. How can I help?", name)

	case patternSummary:
		if creative {
			return fmt.Sprintf("Here is a structured overview of %q:\n\n- Key idea: the central concept and why it matters\n- Details: the main mechanisms involved\n- Applications: where it shows up in practice\n\nAsk me to expand any point. (%s, demo mode)", excerpt(query, 80), name)
		}
		return fmt.Sprintf("In short: %q covers a core idea, how it works and where it is used. Tell me which part to focus on. (%s, demo mode)", excerpt(query, 50), name)

	case patternQuestion:
		if creative {
			return fmt.Sprintf("That's a thoughtful question: %q. A full answer would walk through the background, the main factors and a worked example. I'm %s running in demo mode, so this is a placeholder for that detailed answer.", excerpt(query, 100), name)
		}
		return fmt.Sprintf("Good question about %q. I'm %s running in demo mode, so no real answer is generated.", excerpt(query, 50), name)

	case patternCreative:
		if creative {
			return fmt.Sprintf("Once upon a time, a small router sent every request to the model that suited it best.\n\nThat is all the story %s can tell in demo mode. Give me a theme and a length for the real thing.", name)
		}
		return fmt.Sprintf("Happy to help with creative writing. %s gives short drafts; what would you like written?", name)

	default:
		if creative {
			return fmt.Sprintf("Thanks for your message about %q. I'm %s and can go into depth on this. Which aspect interests you most?", excerpt(query, 100), name)
		}
		return fmt.Sprintf("Got it: %q. I'm %s. What would you like to know?", excerpt(query, 50), name)
	}
}
