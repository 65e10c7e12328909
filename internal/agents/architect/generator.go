// Package architect produces candidate architectures from one of two opposing
// biases: feasibility-first or capability-first.
package architect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

const (
	maxTokens   = 8192
	temperature = 0.4
)

// Generator makes one AI call per candidate and never returns an incomplete position
type Generator struct {
	gen    ai.Generator
	role   architecture.Role
	model  string
	logger *zap.Logger
}

// New creates a generator for role that asks model through gen
func New(gen ai.Generator, role architecture.Role, model string, logger *zap.Logger) *Generator {
	return &Generator{
		gen:    gen,
		role:   role,
		model:  model,
		logger: logging.OrDefault(logger).With(zap.String("role", string(role))),
	}
}

// Role returns the bias this generator plans with
func (g *Generator) Role() architecture.Role {
	return g.role
}

// Generate returns a structurally complete position. Provider errors and
// unparseable output substitute the role's default position; the Outcome and
// Cause of the result say which happened.
func (g *Generator) Generate(ctx context.Context, spec *architecture.Specification, needs *architecture.BackendNeeds, intel *architecture.IntelligenceContext) architecture.Parsed[architecture.ArchitecturePosition] {
	start := time.Now()
	fallback := architecture.DefaultPosition(g.role, spec, needs)

	out, err := g.gen.Generate(ctx, buildPrompt(g.role, spec, needs, intel), g.model, ai.GenerateOptions{
		System:      systemPrompt(g.role),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		cause := fmt.Errorf("generate %s architecture: %w", g.role, err)
		g.recordFallback(cause)
		return architecture.Parsed[architecture.ArchitecturePosition]{
			Value:   fallback,
			Outcome: architecture.OutcomeFallback,
			Cause:   cause,
		}
	}

	parsed := architecture.ParsePosition(out, fallback)
	if parsed.FallbackUsed() {
		g.recordFallback(parsed.Cause)
		return parsed
	}

	g.logger.Info("architecture generated",
		zap.String("model", g.model),
		zap.Int("models", len(parsed.Value.Database.Models)),
		zap.Int("routes", len(parsed.Value.API.Routes)),
		zap.Bool("agentic", parsed.Value.Agentic.Enabled),
		zap.Duration("duration", time.Since(start)),
	)
	return parsed
}

func (g *Generator) recordFallback(cause error) {
	g.logger.Warn("using default architecture", zap.String("model", g.model), zap.Error(cause))
	metrics.RecordFallback("generator_" + string(g.role))
}
