package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/config"
	"dualplan/internal/intelligence"
	"dualplan/internal/metrics"
)

// buildRouter creates the provider router for every configured provider
func buildRouter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ai.AIRouter, error) {
	if !cfg.HasProvider() {
		return nil, errors.New("no AI provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY or OLLAMA_BASE_URL")
	}
	clients, err := ai.NewClients(ctx, ai.ProviderKeys{
		Anthropic: cfg.Providers.AnthropicKey,
		OpenAI:    cfg.Providers.OpenAIKey,
		Gemini:    cfg.Providers.GeminiKey,
		OllamaURL: cfg.Providers.OllamaURL,
	})
	if err != nil {
		return nil, err
	}

	router := ai.NewAIRouter(
		ai.DefaultRouterConfig().WithRateLimit(cfg.Providers.RequestsPerMinute),
		clients,
		ai.WithLogger(logger),
		ai.WithRecorder(func(p ai.AIProvider, result string) {
			metrics.RecordAIRequest(string(p), result)
		}),
	)
	logger.Info("AI router ready", zap.Any("providers", router.Providers()))
	return router, nil
}

// buildGenerator wraps the router in retry and circuit breaking
func buildGenerator(router *ai.AIRouter, cfg *config.Config, logger *zap.Logger) ai.Generator {
	return ai.Chain(
		ai.NewRouterGenerator(router, logger),
		ai.WithRetry(cfg.Providers.RetryAttempts, cfg.Providers.RetryBaseDelay),
		ai.WithBreaker(ai.NewBreaker(cfg.Providers.BreakerMaxFailures, cfg.Providers.BreakerTimeout)),
	)
}

// buildCache creates the intelligence cache. Redis is optional; an
// unreachable Redis degrades to the in-process layer only.
func buildCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*intelligence.Cache, func()) {
	var l2 intelligence.RedisClient
	closeFn := func() {}
	if cfg.Cache.RedisURL != "" {
		client, err := intelligence.NewGoRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache only", zap.Error(err))
		} else {
			l2 = client
			closeFn = func() { _ = client.Close() }
		}
	}
	return intelligence.NewCache(cfg.Cache.LRUSize, cfg.Cache.TTL, l2, logger), closeFn
}
