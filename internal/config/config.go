// Package config loads dualplan configuration from defaults, an optional YAML
// file, a .env file and the process environment.
package config

import "time"

// Environment names
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Models    ModelsConfig    `yaml:"models"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port              string   `yaml:"port"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"` // per client IP; 0 disables
}

// LoggingConfig selects log level and encoder
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// PipelineConfig bounds the planning pipeline
type PipelineConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	MaxNegotiationRounds int           `yaml:"max_negotiation_rounds"`
	MaxReplanAttempts    int           `yaml:"max_replan_attempts"`
	ApprovalCoverage     int           `yaml:"approval_coverage"`
	SimilarityThreshold  float64       `yaml:"similarity_threshold"`
}

// ModelsConfig assigns a model ID to every AI call site
type ModelsConfig struct {
	Intelligence      string `yaml:"intelligence"`
	Feasibility       string `yaml:"feasibility"`
	Capability        string `yaml:"capability"`
	Negotiation       string `yaml:"negotiation"`
	FeasibilityReview string `yaml:"feasibility_review"`
	AgenticReview     string `yaml:"agentic_review"`
	Repair            string `yaml:"repair"`
}

// ProvidersConfig holds AI provider credentials and call policy
type ProvidersConfig struct {
	AnthropicKey       string        `yaml:"anthropic_key"`
	OpenAIKey          string        `yaml:"openai_key"`
	GeminiKey          string        `yaml:"gemini_key"`
	OllamaURL          string        `yaml:"ollama_url"`
	RequestsPerMinute  int           `yaml:"requests_per_minute"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

// CacheConfig configures the intelligence snapshot cache
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	LRUSize  int           `yaml:"lru_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// StoreConfig configures the run ledger database
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// Defaults returns a Config with sensible default values
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              "8080",
			AllowedOrigins:    []string{"http://localhost:3000"},
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: EnvDevelopment,
		},
		Pipeline: PipelineConfig{
			Timeout:              10 * time.Minute,
			MaxNegotiationRounds: 5,
			MaxReplanAttempts:    3,
			ApprovalCoverage:     95,
			SimilarityThreshold:  0.6,
		},
		Models: ModelsConfig{
			Intelligence:      "gemini-2.5-flash",
			Feasibility:       "claude-sonnet-4-5",
			Capability:        "gpt-5",
			Negotiation:       "claude-sonnet-4-5",
			FeasibilityReview: "claude-sonnet-4-5",
			AgenticReview:     "gemini-2.5-pro",
			Repair:            "claude-sonnet-4-5",
		},
		Providers: ProvidersConfig{
			RequestsPerMinute:  60,
			RetryAttempts:      3,
			RetryBaseDelay:     500 * time.Millisecond,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			LRUSize: 256,
			TTL:     6 * time.Hour,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "dualplan.db",
		},
	}
}

// IsProduction reports whether the production environment is selected
func (c *Config) IsProduction() bool {
	return c.Logging.Environment == EnvProduction
}

// HasProvider reports whether at least one AI provider is configured
func (c *Config) HasProvider() bool {
	p := c.Providers
	return p.AnthropicKey != "" || p.OpenAIKey != "" || p.GeminiKey != "" || p.OllamaURL != ""
}
