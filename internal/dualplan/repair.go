package dualplan

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

const repairSystem = `You revise a system architecture so that it resolves every issue raised by its
reviewers while keeping everything else unchanged. Fix critical issues first. Respond with
the complete revised architecture as a single JSON object and nothing else.`

// Repairer turns validation feedback into a revised architecture with one AI call
type Repairer struct {
	gen    ai.Generator
	model  string
	logger *zap.Logger
}

// NewRepairer creates a repairer that asks model through gen
func NewRepairer(gen ai.Generator, model string, logger *zap.Logger) *Repairer {
	return &Repairer{gen: gen, model: model, logger: logging.OrDefault(logger)}
}

// Repair returns the revised architecture and whether it changed. Provider
// errors and unparseable output leave the architecture as it was.
func (r *Repairer) Repair(ctx context.Context, spec *architecture.Specification, current architecture.UnifiedArchitecture, issues []architecture.ValidationIssue) (architecture.UnifiedArchitecture, bool) {
	out, err := r.gen.Generate(ctx, buildRepairPrompt(spec, current, SortIssues(issues)), r.model, ai.GenerateOptions{
		System:      repairSystem,
		MaxTokens:   8192,
		Temperature: 0.2,
		JSON:        true,
	})
	if err == nil {
		parsed := architecture.ParsePosition(out, current.ArchitecturePosition)
		if !parsed.FallbackUsed() {
			revised := current
			revised.ArchitecturePosition = parsed.Value
			return revised, true
		}
		err = parsed.Cause
	}
	r.logger.Warn("repair failed, keeping architecture", zap.String("model", r.model), zap.Error(err))
	metrics.RecordFallback("repair")
	return current, false
}

// SortIssues orders issues critical first, keeping input order within a severity
func SortIssues(issues []architecture.ValidationIssue) []architecture.ValidationIssue {
	out := slices.Clone(issues)
	slices.SortStableFunc(out, func(a, b architecture.ValidationIssue) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return out
}

func buildRepairPrompt(spec *architecture.Specification, current architecture.UnifiedArchitecture, issues []architecture.ValidationIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Specification:\n%s\n\n", architecture.CompactJSON(spec))
	fmt.Fprintf(&b, "Current architecture:\n%s\n\n", architecture.CompactJSON(current.ArchitecturePosition))
	b.WriteString("Issues to resolve:\n")
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. [%s/%s] %s", i+1, issue.Severity, issue.Category, issue.Description)
		if issue.SuggestedFix != "" {
			fmt.Fprintf(&b, " (suggested fix: %s)", issue.SuggestedFix)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nReturn the full revised architecture with this shape:\n%s", architecture.PositionSchema)
	return b.String()
}
