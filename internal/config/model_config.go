package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultFastModel     = "llama3.2-1b-fast"
	DefaultCreativeModel = "llama3.2-1b-creative"
	DefaultEndpoint      = "http://localhost:11434/api/chat"
	DefaultMaxQueueDepth = 10
)

// Profile selects the generation parameters used for a model in live mode.
type Profile string

const (
	ProfileStandard Profile = "standard"
	ProfileCreative Profile = "creative"
)

// API names the wire protocol spoken by a model endpoint in live mode.
type API string

const (
	APIOllama API = "ollama" // POST {endpoint} with the /api/chat body
	APIOpenAI API = "openai" // endpoint is an OpenAI-compatible base URL, e.g. http://localhost:11434/v1
)

// Generation defaults per profile.
var profileParams = map[Profile]struct {
	Temperature float64
	MaxTokens   int
}{
	ProfileStandard: {Temperature: 0.3, MaxTokens: 256},
	ProfileCreative: {Temperature: 0.8, MaxTokens: 768},
}

// ModelConfig is the user-facing model entry in config.yaml.
type ModelConfig struct {
	// Required fields
	ID        string `mapstructure:"id" json:"id"`
	ModelName string `mapstructure:"model_name" json:"model_name"` // Underlying model, e.g. "llama3.2:1b"

	// Optional fields
	Endpoint      string   `mapstructure:"endpoint" json:"endpoint"`
	API           string   `mapstructure:"api" json:"api"`
	APIKey        string   `mapstructure:"api_key" json:"-"`
	MaxQueueDepth *int     `mapstructure:"max_queue_depth" json:"max_queue_depth"`
	Profile       string   `mapstructure:"profile" json:"profile"` // "standard" or "creative"
	Temperature   *float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     *int     `mapstructure:"max_tokens" json:"max_tokens"`
}

// ModelDescriptor is the resolved, immutable form of a ModelConfig.
type ModelDescriptor struct {
	ID            string  `json:"id"`
	Endpoint      string  `json:"endpoint"`
	API           API     `json:"api"`
	APIKey        string  `json:"-"`
	ModelName     string  `json:"model_name"`
	MaxQueueDepth int     `json:"max_queue_depth"`
	Profile       Profile `json:"profile"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
}

// QueryType is one row of the routing keyword table.
type QueryType struct {
	Name     string   `mapstructure:"name" json:"name"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// RoutingSettings contains model selection configuration
type RoutingSettings struct {
	// Ordered keyword table; first match wins.
	QueryTypes []QueryType `mapstructure:"query_types" json:"query_types"`
	// Legacy map form, applied in lexical key order after QueryTypes.
	Keywords map[string][]string `mapstructure:"keywords" json:"keywords"`

	FallbackModel       string        `mapstructure:"fallback_model" json:"fallback_model"`
	FastModel           string        `mapstructure:"fast_model" json:"fast_model"`
	CreativeModel       string        `mapstructure:"creative_model" json:"creative_model"`
	PreferredQueryTypes []string      `mapstructure:"preferred_query_types" json:"preferred_query_types"`
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBeforeFallback bool          `mapstructure:"retry_before_fallback" json:"retry_before_fallback"`
}

// ConvertToModelDescriptor resolves defaults and the generation profile.
func ConvertToModelDescriptor(cfg ModelConfig) (ModelDescriptor, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return ModelDescriptor{}, fmt.Errorf("%w: model entry without id", ErrInvalidConfig)
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = id
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	maxDepth := DefaultMaxQueueDepth
	if cfg.MaxQueueDepth != nil {
		maxDepth = *cfg.MaxQueueDepth
	}
	if maxDepth < 0 {
		return ModelDescriptor{}, fmt.Errorf("%w: model %q has negative max_queue_depth", ErrInvalidConfig, id)
	}

	api := API(strings.ToLower(strings.TrimSpace(cfg.API)))
	switch api {
	case "":
		api = APIOllama
	case APIOllama, APIOpenAI:
	default:
		return ModelDescriptor{}, fmt.Errorf("%w: model %q has unknown api %q", ErrInvalidConfig, id, cfg.API)
	}

	profile, err := resolveProfile(id, cfg.Profile)
	if err != nil {
		return ModelDescriptor{}, err
	}

	params := profileParams[profile]
	temperature := params.Temperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens := params.MaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	return ModelDescriptor{
		ID:            id,
		Endpoint:      endpoint,
		API:           api,
		APIKey:        cfg.APIKey,
		ModelName:     modelName,
		MaxQueueDepth: maxDepth,
		Profile:       profile,
		Temperature:   temperature,
		MaxTokens:     maxTokens,
	}, nil
}

// resolveProfile honours an explicit profile. Entries without one get the
// creative profile when their id names the creative variant, so configs
// written before profiles existed keep their behaviour.
func resolveProfile(id, raw string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(raw))) {
	case ProfileCreative:
		return ProfileCreative, nil
	case ProfileStandard:
		return ProfileStandard, nil
	case "":
		if strings.Contains(strings.ToLower(id), "creative") {
			return ProfileCreative, nil
		}
		return ProfileStandard, nil
	default:
		return "", fmt.Errorf("%w: model %q has unknown profile %q", ErrInvalidConfig, id, raw)
	}
}

func (r RoutingSettings) resolveQueryTypes() []QueryType {
	seen := make(map[string]bool)
	var out []QueryType

	add := func(name string, keywords []string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			if kw != "" {
				lowered = append(lowered, kw)
			}
		}
		out = append(out, QueryType{Name: name, Keywords: lowered})
	}

	for _, qt := range r.QueryTypes {
		add(qt.Name, qt.Keywords)
	}

	names := make([]string, 0, len(r.Keywords))
	for name := range r.Keywords {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name, r.Keywords[name])
	}

	return out
}

// DefaultModels mirrors the two-model local Ollama deployment.
func DefaultModels() []ModelConfig {
	depth := DefaultMaxQueueDepth
	return []ModelConfig{
		{
			ID:            DefaultFastModel,
			ModelName:     "llama3.2:1b",
			Endpoint:      DefaultEndpoint,
			MaxQueueDepth: &depth,
			Profile:       string(ProfileStandard),
		},
		{
			ID:            DefaultCreativeModel,
			ModelName:     "llama3.2:1b",
			Endpoint:      DefaultEndpoint,
			MaxQueueDepth: &depth,
			Profile:       string(ProfileCreative),
		},
	}
}

// DefaultQueryTypes is the keyword table used when none is configured.
func DefaultQueryTypes() []QueryType {
	return []QueryType{
		{Name: "creative", Keywords: []string{"write", "story", "poem", "creative", "imagine", "compose"}},
		{Name: "complex", Keywords: []string{"explain", "analyze", "analyse", "compare", "design", "architecture"}},
		{Name: "reasoning", Keywords: []string{"why", "reason", "prove", "solve", "calculate", "step by step"}},
		{Name: "summary", Keywords: []string{"summary", "summarize", "summarise", "tldr", "briefly", "overview"}},
		{Name: "greeting", Keywords: []string{"hello", "hey", "good morning", "good evening", "how are you"}},
	}
}
