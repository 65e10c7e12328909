// Package review scores a unified architecture from two independent angles
// and merges the findings into one verdict.
package review

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

const (
	maxTokens   = 4096
	temperature = 0.2
)

// Config selects the reviewer models and the approval rules
type Config struct {
	FeasibilityModel    string
	AgenticModel        string
	SimilarityThreshold float64
	ApprovalCoverage    int
}

// Validator runs both reviewers concurrently. A reviewer that fails never
// blocks the other; its report is replaced with the conservative fallback.
type Validator struct {
	gen    ai.Generator
	cfg    Config
	logger *zap.Logger
}

// NewValidator creates a validator. Zero thresholds take the defaults.
func NewValidator(gen ai.Generator, cfg Config, logger *zap.Logger) *Validator {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarity
	}
	if cfg.ApprovalCoverage <= 0 {
		cfg.ApprovalCoverage = DefaultApprovalCoverage
	}
	return &Validator{gen: gen, cfg: cfg, logger: logging.OrDefault(logger)}
}

// Validate reviews arch against spec and returns the merged verdict
func (v *Validator) Validate(ctx context.Context, spec *architecture.Specification, arch *architecture.UnifiedArchitecture) architecture.MergedValidation {
	var (
		g                    errgroup.Group
		feasibility, agentic architecture.ValidationReport
	)
	g.Go(func() error {
		feasibility = v.review(ctx, architecture.ReviewerFeasibility, v.cfg.FeasibilityModel, spec, arch)
		return nil
	})
	g.Go(func() error {
		agentic = v.review(ctx, architecture.ReviewerAgentic, v.cfg.AgenticModel, spec, arch)
		return nil
	})
	_ = g.Wait()

	merged := MergeReports(feasibility, agentic, v.cfg.SimilarityThreshold, v.cfg.ApprovalCoverage)
	v.logger.Info("validation merged",
		zap.Int("feasibility_coverage", feasibility.Coverage),
		zap.Int("agentic_coverage", agentic.Coverage),
		zap.Int("overall_coverage", merged.OverallCoverage),
		zap.Int("issues", len(merged.Issues)),
		zap.Bool("needs_replan", merged.NeedsReplan),
	)
	return merged
}

func (v *Validator) review(ctx context.Context, reviewer architecture.Reviewer, model string, spec *architecture.Specification, arch *architecture.UnifiedArchitecture) (report architecture.ValidationReport) {
	defer func() {
		if r := recover(); r != nil {
			report = v.fallback(reviewer, model, fmt.Errorf("%s review panicked: %v", reviewer, r))
		}
	}()
	start := time.Now()
	out, err := v.gen.Generate(ctx, buildPrompt(reviewer, spec, arch), model, ai.GenerateOptions{
		System:      systemPrompts[reviewer],
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return v.fallback(reviewer, model, fmt.Errorf("%s review: %w", reviewer, err))
	}
	parsed := architecture.ParseReport(out, reviewer)
	if parsed.FallbackUsed() {
		return v.fallback(reviewer, model, parsed.Cause)
	}
	v.logger.Debug("review finished",
		zap.String("reviewer", string(reviewer)),
		zap.Int("coverage", parsed.Value.Coverage),
		zap.Duration("duration", time.Since(start)),
	)
	return parsed.Value
}

func (v *Validator) fallback(reviewer architecture.Reviewer, model string, cause error) architecture.ValidationReport {
	v.logger.Warn("reviewer unavailable, using fallback report",
		zap.String("reviewer", string(reviewer)),
		zap.String("model", model),
		zap.Error(cause),
	)
	metrics.RecordFallback("review_" + string(reviewer))
	return architecture.FallbackReport(reviewer, cause)
}
