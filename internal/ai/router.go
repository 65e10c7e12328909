package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestRecorder receives one observation per provider attempt
type RequestRecorder func(provider AIProvider, result string)

// AIRouter routes AI requests to the provider that owns the requested model,
// falling back along the configured order when that provider fails.
type AIRouter struct {
	clients     map[AIProvider]AIClient
	config      *RouterConfig
	limiters    map[AIProvider]*rate.Limiter
	mu          sync.RWMutex
	healthCheck map[AIProvider]bool
	logger      *zap.Logger
	record      RequestRecorder
}

// RouterOption customizes an AIRouter
type RouterOption func(*AIRouter)

// WithLogger sets the router logger
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *AIRouter) { r.logger = l }
}

// WithRecorder installs a per-attempt observer, typically a metrics counter
func WithRecorder(rec RequestRecorder) RouterOption {
	return func(r *AIRouter) { r.record = rec }
}

// NewAIRouter creates a router over the given provider clients
func NewAIRouter(config *RouterConfig, clients []AIClient, opts ...RouterOption) *AIRouter {
	if config == nil {
		config = DefaultRouterConfig()
	}
	r := &AIRouter{
		clients:     make(map[AIProvider]AIClient, len(clients)),
		config:      config,
		limiters:    make(map[AIProvider]*rate.Limiter),
		healthCheck: make(map[AIProvider]bool),
		logger:      zap.NewNop(),
		record:      func(AIProvider, string) {},
	}
	for _, c := range clients {
		r.clients[c.GetProvider()] = c
	}
	for provider, rpm := range config.RateLimits {
		r.limiters[provider] = newLimiter(rpm)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

// ProviderForModel maps a model ID onto the provider that serves it.
// Unknown model families are assumed to be local Ollama models.
func ProviderForModel(modelID string) AIProvider {
	m := strings.ToLower(strings.TrimSpace(modelID))
	switch {
	case strings.HasPrefix(m, "claude"):
		return ProviderClaude
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return ProviderGPT4
	case strings.HasPrefix(m, "gemini"):
		return ProviderGemini
	default:
		return ProviderOllama
	}
}

// Generate sends the request to the model's provider, then to fallbacks
func (r *AIRouter) Generate(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Temperature == 0 {
		req.Temperature = r.config.DefaultTemperature
	}

	primary := req.Provider
	if primary == "" {
		primary = ProviderForModel(req.Model)
	}

	candidates := r.candidates(primary)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for model %q", ErrNoProvider, req.Model)
	}

	var lastErr error
	for i, provider := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.allow(provider) {
			r.record(provider, "rate_limited")
			lastErr = ErrRateLimited
			continue
		}

		attempt := *req
		attempt.Provider = provider
		if provider != primary {
			// the requested model belongs to another provider
			attempt.Model = ""
			r.logger.Warn("falling back to provider",
				zap.String("request_id", req.ID),
				zap.String("from", string(primary)),
				zap.String("to", string(provider)),
			)
		}

		resp, err := r.clients[provider].Generate(ctx, &attempt)
		if err != nil {
			r.record(provider, "error")
			r.logger.Warn("provider request failed",
				zap.String("request_id", req.ID),
				zap.String("provider", string(provider)),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}
		r.record(provider, "success")
		return resp, nil
	}

	if errors.Is(lastErr, ErrRateLimited) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// candidates lists the configured, non-unhealthy providers for a request in
// the order they should be tried
func (r *AIRouter) candidates(primary AIProvider) []AIProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := append([]AIProvider{primary}, r.config.FallbackOrder[primary]...)
	out := make([]AIProvider, 0, len(order))
	seen := make(map[AIProvider]bool, len(order))
	for _, p := range order {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, ok := r.clients[p]; !ok {
			continue
		}
		// providers never checked count as healthy
		if healthy, checked := r.healthCheck[p]; checked && !healthy && p != primary {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *AIRouter) allow(provider AIProvider) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[provider]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

// StartHealthMonitor checks provider health every interval until ctx is done
func (r *AIRouter) StartHealthMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.performHealthChecks(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.performHealthChecks(ctx)
			}
		}
	}()
}

func (r *AIRouter) performHealthChecks(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for provider, client := range r.clients {
		wg.Add(1)
		go func(p AIProvider, c AIClient) {
			defer wg.Done()
			healthy := true
			if err := c.Health(ctx); err != nil {
				r.logger.Warn("provider health check failed", zap.String("provider", string(p)), zap.Error(err))
				healthy = false
			}
			r.mu.Lock()
			r.healthCheck[p] = healthy
			r.mu.Unlock()
		}(provider, client)
	}
	wg.Wait()
}

// Providers returns the configured providers
func (r *AIRouter) Providers() []AIProvider {
	out := make([]AIProvider, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p)
	}
	return out
}

// GetHealthStatus returns current health status of all providers
func (r *AIRouter) GetHealthStatus() map[AIProvider]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[AIProvider]bool, len(r.clients))
	for provider := range r.clients {
		healthy, checked := r.healthCheck[provider]
		status[provider] = !checked || healthy
	}
	return status
}

// GetProviderUsage returns usage statistics for all providers
func (r *AIRouter) GetProviderUsage() map[AIProvider]*ProviderUsage {
	usage := make(map[AIProvider]*ProviderUsage, len(r.clients))
	for provider, client := range r.clients {
		usage[provider] = client.GetUsage()
	}
	return usage
}

// ProviderKeys holds the credentials used to build provider clients
type ProviderKeys struct {
	Anthropic string
	OpenAI    string
	Gemini    string
	OllamaURL string
}

// NewClients builds a client for every provider with credentials. Ollama is
// only added when a base URL is configured.
func NewClients(ctx context.Context, keys ProviderKeys) ([]AIClient, error) {
	var clients []AIClient
	if k := cleanKey(keys.Anthropic); k != "" {
		clients = append(clients, NewClaudeClient(k))
	}
	if k := cleanKey(keys.OpenAI); k != "" {
		clients = append(clients, NewOpenAIClient(k))
	}
	if k := cleanKey(keys.Gemini); k != "" {
		g, err := NewGeminiClient(ctx, k)
		if err != nil {
			return nil, err
		}
		clients = append(clients, g)
	}
	if strings.TrimSpace(keys.OllamaURL) != "" {
		clients = append(clients, NewOllamaClient(keys.OllamaURL))
	}
	return clients, nil
}

// cleanKey undoes the quoting, "Bearer " prefixes and stray escapes that end up
// in keys pasted into .env files. Only printable ASCII survives.
func cleanKey(raw string) string {
	key := strings.Trim(strings.TrimSpace(raw), `"'`)
	if len(key) > len("bearer ") && strings.EqualFold(key[:len("bearer ")], "bearer ") {
		key = key[len("bearer "):]
	}
	key = strings.NewReplacer(`\r`, "", `\n`, "").Replace(key)
	return strings.Map(func(r rune) rune {
		if r > ' ' && r <= '~' {
			return r
		}
		return -1
	}, key)
}
