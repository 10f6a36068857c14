package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when the loaded configuration breaks a
// model-set invariant.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	CORS       CORSConfig       `mapstructure:"cors"`

	// Mock selects the simulated backend instead of live inference calls.
	Mock       bool             `mapstructure:"mock_mode"`
	Simulation SimulationConfig `mapstructure:"simulation"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Model configuration - internal format after conversion
	ModelList []ModelDescriptor `mapstructure:"-"`

	// Raw configuration from YAML
	RawModelList []ModelConfig   `mapstructure:"model_list"`
	Routing      RoutingSettings `mapstructure:"routing"`

	models     map[string]ModelDescriptor
	queryTypes []QueryType
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	MetricsPort      int           `mapstructure:"metrics_port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig picks where queue-depth counters live.
type QueueConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" or "redis"
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MonitoringConfig struct {
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	ServiceName   string `mapstructure:"service_name"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`

	// Optional rotating file sink
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SimulationConfig bounds the artificial latency of the simulated backend.
type SimulationConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// CircuitBreakerConfig guards live model endpoints. It has no effect in
// mock mode.
type CircuitBreakerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Threshold int           `mapstructure:"threshold"` // consecutive failures before opening
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

// Load reads configuration from a directory (searched for config.yaml) or
// from an explicit .yaml/.yml file. An empty path searches the default
// locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	switch {
	case configPath == "":
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/llmrouter")
	case isConfigFile(configPath):
		v.SetConfigFile(configPath)
	default:
		v.AddConfigPath(configPath)
	}

	setDefaults(v)

	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.RawModelList) == 0 {
		config.RawModelList = DefaultModels()
	}
	if len(config.Routing.QueryTypes) == 0 && len(config.Routing.Keywords) == 0 {
		config.Routing.QueryTypes = DefaultQueryTypes()
	}

	if err := config.Finalize(); err != nil {
		return nil, err
	}

	return &config, nil
}

func isConfigFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown", "30s")

	// Redis defaults
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	// Queue defaults
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.key_prefix", "llmrouter")

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.service_name", "llmrouter")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	// Demo deployments run without an inference backend
	v.SetDefault("mock_mode", true)
	v.SetDefault("simulation.min_delay", "100ms")
	v.SetDefault("simulation.max_delay", "500ms")

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.threshold", 5)
	v.SetDefault("circuit_breaker.cooldown", "30s")

	// Routing defaults
	v.SetDefault("routing.preferred_query_types", []string{"creative", "complex", "reasoning"})
	v.SetDefault("routing.timeout", "30s")
	v.SetDefault("routing.max_retries", 2)
	v.SetDefault("routing.retry_before_fallback", false)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.metrics_port", "METRICS_PORT")
	_ = v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Redis
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("queue.backend", "QUEUE_BACKEND")

	// Mode
	_ = v.BindEnv("mock_mode", "MOCK_MODE")
	_ = v.BindEnv("circuit_breaker.enabled", "CIRCUIT_BREAKER_ENABLED")

	// Routing
	_ = v.BindEnv("routing.fallback_model", "ROUTING_FALLBACK_MODEL")
	_ = v.BindEnv("routing.timeout", "ROUTING_TIMEOUT")
	_ = v.BindEnv("routing.max_retries", "ROUTING_MAX_RETRIES")

	// Monitoring
	_ = v.BindEnv("monitoring.enable_metrics", "ENABLE_METRICS")

	// Logging
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.file", "LOG_FILE")

	// CORS
	_ = v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
}

// Finalize converts the raw model list and keyword table into their
// resolved forms and validates the model-set invariants.
func (c *Config) Finalize() error {
	c.ModelList = c.ModelList[:0]
	c.models = make(map[string]ModelDescriptor, len(c.RawModelList))

	for _, raw := range c.RawModelList {
		desc, err := ConvertToModelDescriptor(raw)
		if err != nil {
			return err
		}
		if _, dup := c.models[desc.ID]; dup {
			return fmt.Errorf("%w: duplicate model id %q", ErrInvalidConfig, desc.ID)
		}
		c.models[desc.ID] = desc
		c.ModelList = append(c.ModelList, desc)
	}

	c.queryTypes = c.Routing.resolveQueryTypes()
	c.applyRoutingDefaults()

	if c.Routing.Timeout <= 0 {
		c.Routing.Timeout = 30 * time.Second
	}
	if c.Routing.MaxRetries < 0 {
		c.Routing.MaxRetries = 0
	}
	if c.Simulation.MaxDelay < c.Simulation.MinDelay {
		c.Simulation.MaxDelay = c.Simulation.MinDelay
	}

	return c.Validate()
}

// applyRoutingDefaults fills unset fast/creative/fallback ids with the
// stock model ids when those models are configured.
func (c *Config) applyRoutingDefaults() {
	if c.Routing.FastModel == "" {
		if _, ok := c.models[DefaultFastModel]; ok {
			c.Routing.FastModel = DefaultFastModel
		}
	}
	if c.Routing.CreativeModel == "" {
		if _, ok := c.models[DefaultCreativeModel]; ok {
			c.Routing.CreativeModel = DefaultCreativeModel
		}
	}
	if c.Routing.FallbackModel == "" {
		switch {
		case c.Routing.FastModel != "":
			c.Routing.FallbackModel = c.Routing.FastModel
		case len(c.ModelList) > 0:
			c.Routing.FallbackModel = c.ModelList[0].ID
		}
	}
}

// Validate checks that every routing reference points at a configured model.
func (c *Config) Validate() error {
	if len(c.models) == 0 {
		return fmt.Errorf("%w: no models configured", ErrInvalidConfig)
	}
	if c.Routing.FallbackModel == "" {
		return fmt.Errorf("%w: routing.fallback_model is required", ErrInvalidConfig)
	}
	if _, ok := c.models[c.Routing.FallbackModel]; !ok {
		return fmt.Errorf("%w: fallback model %q is not configured", ErrInvalidConfig, c.Routing.FallbackModel)
	}
	if id := c.Routing.FastModel; id != "" {
		if _, ok := c.models[id]; !ok {
			return fmt.Errorf("%w: fast model %q is not configured", ErrInvalidConfig, id)
		}
	}
	if id := c.Routing.CreativeModel; id != "" {
		if _, ok := c.models[id]; !ok {
			return fmt.Errorf("%w: creative model %q is not configured", ErrInvalidConfig, id)
		}
	}
	if c.Routing.Timeout < time.Millisecond {
		return fmt.Errorf("%w: routing.timeout %v is below 1ms; use a duration such as \"30s\"", ErrInvalidConfig, c.Routing.Timeout)
	}
	switch c.Queue.Backend {
	case "", "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: queue.backend=redis requires redis.url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown queue backend %q", ErrInvalidConfig, c.Queue.Backend)
	}
	return nil
}

// Models returns the configured model set keyed by id.
func (c *Config) Models() map[string]ModelDescriptor {
	return c.models
}

// Model looks up a single descriptor.
func (c *Config) Model(id string) (ModelDescriptor, bool) {
	m, ok := c.models[id]
	return m, ok
}

// ModelIDs returns model ids in configuration order.
func (c *Config) ModelIDs() []string {
	ids := make([]string, 0, len(c.ModelList))
	for _, m := range c.ModelList {
		ids = append(ids, m.ID)
	}
	return ids
}

// QueryTypes returns the keyword table in match order.
func (c *Config) QueryTypes() []QueryType { return c.queryTypes }

func (c *Config) FallbackModel() string { return c.Routing.FallbackModel }

func (c *Config) FastModel() string { return c.Routing.FastModel }

func (c *Config) CreativeModel() string { return c.Routing.CreativeModel }

func (c *Config) PreferredQueryTypes() []string { return c.Routing.PreferredQueryTypes }

func (c *Config) Timeout() time.Duration { return c.Routing.Timeout }

// MaxRetries is only consulted when RetryBeforeFallback is set.
func (c *Config) MaxRetries() int { return c.Routing.MaxRetries }

func (c *Config) RetryBeforeFallback() bool { return c.Routing.RetryBeforeFallback }

func (c *Config) MockMode() bool { return c.Mock }

// Mode reports "mock" or "live".
func (c *Config) Mode() string {
	if c.Mock {
		return "mock"
	}
	return "live"
}

// Default returns a finalized configuration equal to what Load produces
// with no file and no environment overrides.
func Default() *Config {
	c := &Config{
		Server: ServerConfig{
			Port:             8000,
			MetricsPort:      9090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Queue:      QueueConfig{Backend: "memory", KeyPrefix: "llmrouter"},
		Monitoring: MonitoringConfig{EnableMetrics: true, ServiceName: "llmrouter"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		},
		Mock:         true,
		Simulation:   SimulationConfig{MinDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
		RawModelList: DefaultModels(),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:   true,
			Threshold: 5,
			Cooldown:  30 * time.Second,
		},
		Routing: RoutingSettings{
			QueryTypes:          DefaultQueryTypes(),
			FallbackModel:       DefaultFastModel,
			FastModel:           DefaultFastModel,
			CreativeModel:       DefaultCreativeModel,
			PreferredQueryTypes: []string{"creative", "complex", "reasoning"},
			Timeout:             30 * time.Second,
			MaxRetries:          2,
		},
	}
	if err := c.Finalize(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return c
}
