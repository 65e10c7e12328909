package ai

import (
	"context"
	"time"
)

// AIProvider represents the available AI providers
type AIProvider string

const (
	ProviderClaude AIProvider = "claude"
	ProviderGPT4   AIProvider = "gpt4"
	ProviderGemini AIProvider = "gemini"
	ProviderOllama AIProvider = "ollama"
)

// AIRequest represents a request to an AI provider
type AIRequest struct {
	ID          string     `json:"id"`
	Provider    AIProvider `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"` // explicit model, e.g. "claude-sonnet-4-5"
	System      string     `json:"system,omitempty"`
	Prompt      string     `json:"prompt"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature float32    `json:"temperature,omitempty"`
	JSONMode    bool       `json:"json_mode,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AIResponse represents a response from an AI provider
type AIResponse struct {
	ID        string                 `json:"id"`
	Provider  AIProvider             `json:"provider"`
	Model     string                 `json:"model,omitempty"`
	Content   string                 `json:"content"`
	Usage     *Usage                 `json:"usage,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	CreatedAt time.Time              `json:"created_at"`
}

// Cost returns the cost of the response based on usage
func (r *AIResponse) Cost() float64 {
	if r.Usage != nil {
		return r.Usage.Cost
	}
	return 0.0
}

// Usage represents token/cost usage for an AI request
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// AIClient interface that all AI providers must implement
type AIClient interface {
	// Generate generates content based on the request
	Generate(ctx context.Context, req *AIRequest) (*AIResponse, error)

	// GetProvider returns the provider identifier
	GetProvider() AIProvider

	// Health checks if the provider is healthy
	Health(ctx context.Context) error

	// GetUsage returns usage statistics
	GetUsage() *ProviderUsage
}

// ProviderUsage tracks usage statistics for a provider
type ProviderUsage struct {
	Provider     AIProvider `json:"provider"`
	RequestCount int64      `json:"request_count"`
	TotalTokens  int64      `json:"total_tokens"`
	TotalCost    float64    `json:"total_cost"`
	AvgLatency   float64    `json:"avg_latency"`
	ErrorCount   int64      `json:"error_count"`
	LastUsed     time.Time  `json:"last_used"`
}

// RouterConfig configures how requests are routed to providers
type RouterConfig struct {
	// Fallback order when the model's own provider fails
	FallbackOrder map[AIProvider][]AIProvider `json:"fallback_order"`

	// Rate limits per provider (requests per minute)
	RateLimits map[AIProvider]int `json:"rate_limits"`

	// Default temperature when a request leaves it unset
	DefaultTemperature float32 `json:"default_temperature"`
}

// DefaultRouterConfig returns the routing configuration used by the planner.
// Ollama never falls back to a paid provider.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		FallbackOrder: map[AIProvider][]AIProvider{
			ProviderClaude: {ProviderGPT4, ProviderGemini, ProviderOllama},
			ProviderGPT4:   {ProviderClaude, ProviderGemini, ProviderOllama},
			ProviderGemini: {ProviderClaude, ProviderGPT4, ProviderOllama},
			ProviderOllama: {},
		},
		RateLimits: map[AIProvider]int{
			ProviderClaude: 100,
			ProviderGPT4:   80,
			ProviderGemini: 120,
			ProviderOllama: 1000, // local, no real limit
		},
		DefaultTemperature: 0.4,
	}
}

// WithRateLimit returns a copy of the config with every paid provider capped at rpm
func (c *RouterConfig) WithRateLimit(rpm int) *RouterConfig {
	out := *c
	out.RateLimits = make(map[AIProvider]int, len(c.RateLimits))
	for p, limit := range c.RateLimits {
		if rpm > 0 && p != ProviderOllama {
			limit = rpm
		}
		out.RateLimits[p] = limit
	}
	return &out
}
