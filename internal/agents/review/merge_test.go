package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualplan/internal/architecture"
)

func issue(sev architecture.Severity, category, desc string, features ...string) architecture.ValidationIssue {
	return architecture.ValidationIssue{Severity: sev, Category: category, Description: desc, AffectedFeatures: features}
}

func TestDuplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b architecture.ValidationIssue
		want bool
	}{
		{
			"reworded same problem",
			issue(architecture.SeverityWarning, "security", "Passwords are stored without hashing"),
			issue(architecture.SeverityCritical, "Security", "The user passwords are stored in plain text without any hashing"),
			true,
		},
		{
			"different category",
			issue(architecture.SeverityWarning, "security", "Passwords are stored without hashing"),
			issue(architecture.SeverityWarning, "data", "Passwords are stored without hashing"),
			false,
		},
		{
			"below threshold",
			issue(architecture.SeverityWarning, "api", "Missing pagination on task listing endpoint"),
			issue(architecture.SeverityWarning, "api", "Task endpoint lacks rate limiting"),
			false,
		},
		{
			"stopwords only compare literally",
			issue(architecture.SeverityWarning, "general", "it is"),
			issue(architecture.SeverityWarning, "general", "It is"),
			true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Duplicate(tc.a, tc.b, DefaultSimilarity))
			assert.Equal(t, tc.want, Duplicate(tc.b, tc.a, DefaultSimilarity), "similarity is symmetric")
		})
	}
}

func TestDedupeIssues_KeepsHighestSeverity(t *testing.T) {
	in := []architecture.ValidationIssue{
		issue(architecture.SeverityWarning, "security", "Passwords are stored without hashing", "signup"),
		issue(architecture.SeveritySuggestion, "performance", "Add caching for board listing"),
		issue(architecture.SeverityCritical, "security", "User passwords stored without hashing", "login"),
	}
	in[2].SuggestedFix = "hash with bcrypt"

	out := DedupeIssues(in, DefaultSimilarity)

	require.Len(t, out, 2)
	assert.Equal(t, architecture.SeverityCritical, out[0].Severity)
	assert.Equal(t, "Passwords are stored without hashing", out[0].Description)
	assert.Equal(t, []string{"signup", "login"}, out[0].AffectedFeatures)
	assert.Equal(t, "hash with bcrypt", out[0].SuggestedFix)
	assert.Equal(t, []string{"signup"}, in[0].AffectedFeatures, "input is not mutated")
}

func TestDedupeIssues_IdempotentAndSelfMergeDoesNotGrow(t *testing.T) {
	in := []architecture.ValidationIssue{
		issue(architecture.SeverityWarning, "security", "Passwords are stored without hashing"),
		issue(architecture.SeverityCritical, "security", "Passwords stored without hashing at rest"),
		issue(architecture.SeverityWarning, "api", "Missing pagination on task listing endpoint"),
		issue(architecture.SeveritySuggestion, "api", "Task endpoint lacks rate limiting"),
		issue(architecture.SeverityWarning, "agentic", "Planner agent has no step limit"),
	}

	once := DedupeIssues(in, DefaultSimilarity)
	twice := DedupeIssues(once, DefaultSimilarity)
	doubled := DedupeIssues(append(append([]architecture.ValidationIssue{}, once...), once...), DefaultSimilarity)

	assert.Equal(t, once, twice)
	assert.Equal(t, once, doubled)
}

func TestOverallCoverage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b, want int
	}{
		{90, 100, 95},
		{95, 96, 96},
		{80, 80, 80},
		{0, 1, 1},
		{100, 100, 100},
	}

	for _, tt := range tests {
		tc := tt
		t.Run("", func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, OverallCoverage(tc.a, tc.b))
		})
	}
}

func TestMergeReports_CriticalForcesReplan(t *testing.T) {
	feas := architecture.ValidationReport{Coverage: 96, Issues: []architecture.ValidationIssue{
		issue(architecture.SeverityCritical, "auth", "No authentication on admin routes"),
	}}
	agentic := architecture.ValidationReport{Coverage: 96}

	m := MergeReports(feas, agentic, DefaultSimilarity, DefaultApprovalCoverage)

	assert.Equal(t, 96, m.OverallCoverage)
	assert.True(t, m.NeedsReplan)
	assert.False(t, m.ApprovedForExecution)
}

func TestMergeReports_Approval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     int
		approved bool
	}{
		{"exactly threshold", 95, 95, true},
		{"rounds up into approval", 94, 95, true},
		{"below threshold", 94, 94, false},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := MergeReports(
				architecture.ValidationReport{Coverage: tc.a, Issues: []architecture.ValidationIssue{issue(architecture.SeverityWarning, "x", "minor naming")}},
				architecture.ValidationReport{Coverage: tc.b},
				DefaultSimilarity, DefaultApprovalCoverage,
			)
			assert.Equal(t, tc.approved, m.ApprovedForExecution)
			assert.Equal(t, !tc.approved, m.NeedsReplan)
		})
	}
}
