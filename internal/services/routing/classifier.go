package routing

import (
	"strings"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/services/backends"
)

// QueryTypeUnknown is reported when no keyword matches.
const QueryTypeUnknown = "unknown"

// Classify labels a conversation by its last message. The table is walked
// in order and the first query type with a keyword contained in the
// lowercased content wins.
func Classify(messages []backends.Message, table []config.QueryType) string {
	if len(messages) == 0 {
		return QueryTypeUnknown
	}

	content := strings.ToLower(backends.LastContent(messages))
	for _, qt := range table {
		for _, kw := range qt.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(kw)) {
				return qt.Name
			}
		}
	}

	return QueryTypeUnknown
}
