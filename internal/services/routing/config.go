package routing

import (
	"time"

	"github.com/amerfu/llmrouter/internal/config"
)

// ConfigView is the read-only configuration the router consults on every
// request. *config.Config satisfies it.
type ConfigView interface {
	Models() map[string]config.ModelDescriptor
	Model(id string) (config.ModelDescriptor, bool)
	QueryTypes() []config.QueryType
	FallbackModel() string
	FastModel() string
	CreativeModel() string
	PreferredQueryTypes() []string
	Timeout() time.Duration
	MaxRetries() int
	RetryBeforeFallback() bool
	MockMode() bool
}

var _ ConfigView = (*config.Config)(nil)
