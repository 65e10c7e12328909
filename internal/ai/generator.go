package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GenerateOptions tune a single generation
type GenerateOptions struct {
	System      string
	MaxTokens   int
	Temperature float32
	JSON        bool
}

// Generator is the text-generation capability the planning agents depend on
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error)
}

// GeneratorFunc adapts a plain function to Generator
type GeneratorFunc func(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, modelID, opts)
}

// RouterGenerator exposes an AIRouter as a Generator
type RouterGenerator struct {
	router *AIRouter
	logger *zap.Logger
}

// NewRouterGenerator wraps router
func NewRouterGenerator(router *AIRouter, logger *zap.Logger) *RouterGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterGenerator{router: router, logger: logger}
}

// Generate routes prompt to the provider owning modelID and returns the text
func (g *RouterGenerator) Generate(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error) {
	req := &AIRequest{
		Model:       modelID,
		System:      opts.System,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		JSONMode:    opts.JSON,
	}
	resp, err := g.router.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w (provider %s)", ErrEmptyResponse, resp.Provider)
	}
	g.logger.Debug("generation complete",
		zap.String("request_id", req.ID),
		zap.String("model", ModelUsed(resp, req)),
		zap.Duration("duration", resp.Duration),
		zap.Float64("cost", resp.Cost()),
	)
	return resp.Content, nil
}

// Middleware decorates a Generator
type Middleware func(Generator) Generator

// Chain applies middlewares so the first one listed is the outermost
func Chain(g Generator, mws ...Middleware) Generator {
	for i := len(mws) - 1; i >= 0; i-- {
		g = mws[i](g)
	}
	return g
}

// WithRetry retries retryable failures up to attempts times with exponential
// backoff from baseDelay. It stops as soon as ctx is done.
func WithRetry(attempts int, baseDelay time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error) {
			var last error
			for i := 0; i < attempts; i++ {
				out, err := next.Generate(ctx, prompt, modelID, opts)
				if err == nil {
					return out, nil
				}
				last = err
				if !IsRetryable(err) || i == attempts-1 {
					break
				}
				timer := time.NewTimer(baseDelay * time.Duration(1<<i))
				select {
				case <-ctx.Done():
					timer.Stop()
					return "", ctx.Err()
				case <-timer.C:
				}
			}
			return "", last
		})
	}
}

// WithBreaker short-circuits calls while b is open
func WithBreaker(b *Breaker) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, prompt, modelID string, opts GenerateOptions) (string, error) {
			var out string
			err := b.Execute(func() error {
				var err error
				out, err = next.Generate(ctx, prompt, modelID, opts)
				return err
			}, countsAgainstBreaker)
			if err != nil {
				return "", err
			}
			return out, nil
		})
	}
}

// caller cancellations say nothing about provider health
func countsAgainstBreaker(err error) bool {
	return !errors.Is(err, context.Canceled)
}
