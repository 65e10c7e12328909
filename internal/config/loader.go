package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "dualplan.yaml"

// Upper bounds the pipeline is designed around
const (
	MaxNegotiationRounds = 5
	MaxReplanAttempts    = 3
)

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. A .env file in the working directory is
// read into the environment first; both files are optional.
func LoadFrom(yamlPath string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "DUALPLAN_PORT")
	setList(&cfg.Server.AllowedOrigins, "DUALPLAN_ALLOWED_ORIGINS")
	setInt(&cfg.Server.RequestsPerMinute, "DUALPLAN_RATE_LIMIT_RPM")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Environment, "ENVIRONMENT")

	setDuration(&cfg.Pipeline.Timeout, "DUALPLAN_PIPELINE_TIMEOUT")
	setInt(&cfg.Pipeline.MaxNegotiationRounds, "DUALPLAN_MAX_NEGOTIATION_ROUNDS")
	setInt(&cfg.Pipeline.MaxReplanAttempts, "DUALPLAN_MAX_REPLAN_ATTEMPTS")
	setInt(&cfg.Pipeline.ApprovalCoverage, "DUALPLAN_APPROVAL_COVERAGE")
	setFloat64(&cfg.Pipeline.SimilarityThreshold, "DUALPLAN_SIMILARITY_THRESHOLD")

	setString(&cfg.Models.Intelligence, "DUALPLAN_MODEL_INTELLIGENCE")
	setString(&cfg.Models.Feasibility, "DUALPLAN_MODEL_FEASIBILITY")
	setString(&cfg.Models.Capability, "DUALPLAN_MODEL_CAPABILITY")
	setString(&cfg.Models.Negotiation, "DUALPLAN_MODEL_NEGOTIATION")
	setString(&cfg.Models.FeasibilityReview, "DUALPLAN_MODEL_FEASIBILITY_REVIEW")
	setString(&cfg.Models.AgenticReview, "DUALPLAN_MODEL_AGENTIC_REVIEW")
	setString(&cfg.Models.Repair, "DUALPLAN_MODEL_REPAIR")

	setString(&cfg.Providers.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Providers.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.Providers.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.Providers.OllamaURL, "OLLAMA_BASE_URL")
	setInt(&cfg.Providers.RequestsPerMinute, "DUALPLAN_AI_RPM")
	setInt(&cfg.Providers.RetryAttempts, "DUALPLAN_AI_RETRY_ATTEMPTS")
	setDuration(&cfg.Providers.RetryBaseDelay, "DUALPLAN_AI_RETRY_BASE_DELAY")
	setInt(&cfg.Providers.BreakerMaxFailures, "DUALPLAN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Providers.BreakerTimeout, "DUALPLAN_BREAKER_TIMEOUT")

	setString(&cfg.Cache.RedisURL, "REDIS_URL")
	setInt(&cfg.Cache.LRUSize, "DUALPLAN_CACHE_LRU_SIZE")
	setDuration(&cfg.Cache.TTL, "DUALPLAN_CACHE_TTL")

	setString(&cfg.Store.Driver, "DUALPLAN_STORE_DRIVER")
	setString(&cfg.Store.DSN, "DATABASE_URL")
}

// Validate clamps bounded pipeline values and rejects unusable settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port is required")
	}
	if c.Pipeline.Timeout <= 0 {
		return errors.New("pipeline.timeout must be positive")
	}
	c.Pipeline.MaxNegotiationRounds = clamp(c.Pipeline.MaxNegotiationRounds, 1, MaxNegotiationRounds)
	c.Pipeline.MaxReplanAttempts = clamp(c.Pipeline.MaxReplanAttempts, 0, MaxReplanAttempts)
	c.Pipeline.ApprovalCoverage = clamp(c.Pipeline.ApprovalCoverage, 0, 100)
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold %.2f must be in (0,1]", c.Pipeline.SimilarityThreshold)
	}

	if c.Providers.RetryAttempts < 1 {
		c.Providers.RetryAttempts = 1
	}
	if c.Providers.BreakerMaxFailures < 1 {
		return errors.New("providers.breaker_max_failures must be >= 1")
	}
	if c.Cache.LRUSize < 1 {
		return errors.New("cache.lru_size must be >= 1")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver %q must be sqlite or postgres", c.Store.Driver)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
