// Package intelligence gathers current model and framework recommendations
// that both architecture generators plan against.
package intelligence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

const maxTokens = 2048

// Gatherer produces an IntelligenceContext with one AI call, consulting the
// snapshot cache first when one is configured.
type Gatherer struct {
	gen    ai.Generator
	model  string
	cache  *Cache
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Gatherer
type Option func(*Gatherer)

// WithCache enables snapshot caching
func WithCache(c *Cache) Option {
	return func(g *Gatherer) { g.cache = c }
}

// WithLogger overrides the global logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Gatherer) { g.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Gatherer) { g.now = now }
}

// NewGatherer creates a gatherer that asks model through gen
func NewGatherer(gen ai.Generator, model string, opts ...Option) *Gatherer {
	g := &Gatherer{gen: gen, model: model, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrDefault(g.logger)
	return g
}

// Gather always returns a complete snapshot. A precomputed snapshot bypasses
// the cache and the AI call. When the AI call fails or returns unusable output
// the default snapshot is returned with Outcome set to OutcomeFallback.
func (g *Gatherer) Gather(ctx context.Context, spec *architecture.Specification, needs *architecture.BackendNeeds, precomputed *architecture.IntelligenceContext) architecture.Parsed[architecture.IntelligenceContext] {
	if precomputed != nil {
		snap := backfill(*precomputed, g.now())
		snap.Source = architecture.SourcePrecomputed
		return architecture.Parsed[architecture.IntelligenceContext]{Value: snap, Outcome: architecture.OutcomeOK}
	}

	key := Key(spec)
	if g.cache != nil {
		if snap, ok := g.cache.Get(ctx, key); ok {
			snap.Source = architecture.SourceCache
			g.logger.Debug("intelligence served from cache", zap.String("key", key))
			return architecture.Parsed[architecture.IntelligenceContext]{Value: snap, Outcome: architecture.OutcomeOK}
		}
	}

	out, err := g.gen.Generate(ctx, buildPrompt(spec, needs), g.model, ai.GenerateOptions{
		System:      systemPrompt,
		MaxTokens:   maxTokens,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return g.fallback(err)
	}

	var snap architecture.IntelligenceContext
	if err := architecture.DecodeJSON(out, &snap); err != nil {
		return g.fallback(err)
	}
	snap = backfill(snap, g.now())
	snap.Source = architecture.SourceLive

	if g.cache != nil {
		g.cache.Put(ctx, key, snap)
	}
	return architecture.Parsed[architecture.IntelligenceContext]{Value: snap, Outcome: architecture.OutcomeOK}
}

func (g *Gatherer) fallback(cause error) architecture.Parsed[architecture.IntelligenceContext] {
	g.logger.Warn("intelligence gathering failed, using defaults", zap.String("model", g.model), zap.Error(cause))
	metrics.RecordFallback("intelligence")
	return architecture.Parsed[architecture.IntelligenceContext]{
		Value:   architecture.DefaultIntelligence(g.now()),
		Outcome: architecture.OutcomeFallback,
		Cause:   cause,
	}
}

// backfill fills any section the snapshot omitted from the defaults
func backfill(snap architecture.IntelligenceContext, now time.Time) architecture.IntelligenceContext {
	def := architecture.DefaultIntelligence(now)
	if len(snap.ModelRecommendations) == 0 {
		snap.ModelRecommendations = def.ModelRecommendations
	}
	if len(snap.FrameworkRecommendations) == 0 {
		snap.FrameworkRecommendations = def.FrameworkRecommendations
	}
	if snap.AgentPatterns == nil {
		snap.AgentPatterns = def.AgentPatterns
	}
	if snap.Notes == nil {
		snap.Notes = []string{}
	}
	if snap.GatheredAt.IsZero() {
		snap.GatheredAt = now
	}
	return snap
}
