package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
)

type reviewerScript struct {
	mu      sync.Mutex
	replies map[architecture.Reviewer]string
	errs    map[architecture.Reviewer]error
	models  map[architecture.Reviewer]string
}

func (s *reviewerScript) Generate(_ context.Context, _ string, modelID string, opts ai.GenerateOptions) (string, error) {
	reviewer := architecture.ReviewerFeasibility
	if strings.Contains(opts.System, "AI systems reviewer") {
		reviewer = architecture.ReviewerAgentic
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.models == nil {
		s.models = map[architecture.Reviewer]string{}
	}
	s.models[reviewer] = modelID
	if err := s.errs[reviewer]; err != nil {
		return "", err
	}
	return s.replies[reviewer], nil
}

func unified() *architecture.UnifiedArchitecture {
	return &architecture.UnifiedArchitecture{
		ArchitecturePosition: architecture.DefaultPosition(architecture.RoleUnified, nil, nil),
	}
}

var testSpec = &architecture.Specification{Name: "Notes", Purpose: "take notes"}

func TestValidate_MergesBothReviewers(t *testing.T) {
	script := &reviewerScript{replies: map[architecture.Reviewer]string{
		architecture.ReviewerFeasibility: `{"coverage": 97, "issues": [{"severity": "high", "category": "Security", "description": "Passwords are stored without hashing"}]}`,
		architecture.ReviewerAgentic:     `{"coverage": "98", "issues": [{"severity": "warning", "category": "security", "description": "User passwords stored without hashing"}]}`,
	}}
	v := NewValidator(script, Config{FeasibilityModel: "claude-sonnet-4-5", AgenticModel: "gemini-2.5-pro"}, zap.NewNop())

	m := v.Validate(context.Background(), testSpec, unified())

	require.Len(t, m.Issues, 1)
	assert.Equal(t, architecture.SeverityCritical, m.Issues[0].Severity)
	assert.Equal(t, 98, m.OverallCoverage)
	assert.True(t, m.NeedsReplan)
	assert.Equal(t, "claude-sonnet-4-5", script.models[architecture.ReviewerFeasibility])
	assert.Equal(t, "gemini-2.5-pro", script.models[architecture.ReviewerAgentic])
}

func TestValidate_ReviewerOutageUsesFallback(t *testing.T) {
	script := &reviewerScript{
		replies: map[architecture.Reviewer]string{architecture.ReviewerFeasibility: `{"coverage": 100, "issues": []}`},
		errs:    map[architecture.Reviewer]error{architecture.ReviewerAgentic: errors.New("all providers failed")},
	}
	v := NewValidator(script, Config{}, nil)

	m := v.Validate(context.Background(), testSpec, unified())

	assert.True(t, m.Agentic.FallbackUsed)
	assert.Equal(t, 80, m.Agentic.Coverage)
	require.Len(t, m.Agentic.Issues, 1)
	assert.Equal(t, architecture.SeverityWarning, m.Agentic.Issues[0].Severity)
	assert.Contains(t, m.Agentic.Issues[0].Description, "Manual review recommended")
	assert.Equal(t, 90, m.OverallCoverage)
	assert.True(t, m.NeedsReplan)
}

func TestValidate_UnparseableReportUsesFallback(t *testing.T) {
	script := &reviewerScript{replies: map[architecture.Reviewer]string{
		architecture.ReviewerFeasibility: "Looks great to me!",
		architecture.ReviewerAgentic:     `{"coverage": 100}`,
	}}

	m := NewValidator(script, Config{}, nil).Validate(context.Background(), testSpec, unified())

	assert.True(t, m.Feasibility.FallbackUsed)
	assert.False(t, m.Agentic.FallbackUsed)
	assert.Equal(t, 90, m.OverallCoverage)
}

func TestNewValidator_Defaults(t *testing.T) {
	v := NewValidator(nil, Config{SimilarityThreshold: 4}, nil)

	assert.Equal(t, DefaultSimilarity, v.cfg.SimilarityThreshold)
	assert.Equal(t, DefaultApprovalCoverage, v.cfg.ApprovalCoverage)
}
