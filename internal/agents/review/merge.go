package review

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"dualplan/internal/architecture"
)

// DefaultSimilarity is the share of the shorter description's content words
// that must appear in the longer one for two issues to be the same problem.
const DefaultSimilarity = 0.6

// DefaultApprovalCoverage is the lowest overall coverage that can be approved
const DefaultApprovalCoverage = 95

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "has": true, "have": true,
	"was": true, "were": true, "this": true, "that": true, "with": true, "from": true,
	"into": true, "onto": true, "its": true, "our": true, "their": true, "there": true,
	"which": true, "when": true, "will": true, "would": true, "should": true, "could": true,
	"does": true, "doesn": true, "don": true, "isn": true, "also": true, "may": true,
	"might": true, "must": true, "been": true, "being": true, "than": true, "then": true,
	"these": true, "those": true, "such": true, "each": true, "only": true, "very": true,
	"more": true, "most": true, "some": true, "other": true, "use": true, "used": true,
}

// MergeReports combines both reviewers' reports into one verdict
func MergeReports(feasibility, agentic architecture.ValidationReport, similarity float64, approvalCoverage int) architecture.MergedValidation {
	issues := make([]architecture.ValidationIssue, 0, len(feasibility.Issues)+len(agentic.Issues))
	issues = append(issues, feasibility.Issues...)
	issues = append(issues, agentic.Issues...)

	merged := architecture.MergedValidation{
		Issues:          DedupeIssues(issues, similarity),
		OverallCoverage: OverallCoverage(feasibility.Coverage, agentic.Coverage),
		Feasibility:     feasibility,
		Agentic:         agentic,
	}
	merged.NeedsReplan = merged.HasCritical() || merged.OverallCoverage < approvalCoverage
	merged.ApprovedForExecution = !merged.NeedsReplan
	return merged
}

// OverallCoverage is the rounded mean of the two reviewer coverages
func OverallCoverage(a, b int) int {
	return architecture.ClampCoverage(int(math.Round(float64(a+b) / 2)))
}

// DedupeIssues collapses issues that describe the same problem. The scan is
// greedy in input order and the first acceptable match wins; similarity is
// not treated as transitive. The kept issue takes the highest severity, the
// union of affected features, and the fix of the more severe duplicate.
func DedupeIssues(issues []architecture.ValidationIssue, similarity float64) []architecture.ValidationIssue {
	kept := make([]architecture.ValidationIssue, 0, len(issues))
	for _, issue := range issues {
		idx := slices.IndexFunc(kept, func(k architecture.ValidationIssue) bool {
			return Duplicate(k, issue, similarity)
		})
		if idx == -1 {
			issue.AffectedFeatures = slices.Clone(issue.AffectedFeatures)
			kept = append(kept, issue)
			continue
		}
		k := &kept[idx]
		if issue.Severity.Rank() > k.Severity.Rank() {
			k.Severity = issue.Severity
			if issue.SuggestedFix != "" {
				k.SuggestedFix = issue.SuggestedFix
			}
		}
		if k.SuggestedFix == "" {
			k.SuggestedFix = issue.SuggestedFix
		}
		k.AffectedFeatures = unionFeatures(k.AffectedFeatures, issue.AffectedFeatures)
	}
	return kept
}

// Duplicate reports whether a and b describe the same problem
func Duplicate(a, b architecture.ValidationIssue, similarity float64) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Category), strings.TrimSpace(b.Category)) {
		return false
	}
	shorter, longer := a.Description, b.Description
	if len(longer) < len(shorter) || (len(longer) == len(shorter) && longer < shorter) {
		shorter, longer = longer, shorter
	}
	words := contentWords(shorter)
	if len(words) == 0 {
		return strings.EqualFold(strings.TrimSpace(a.Description), strings.TrimSpace(b.Description))
	}
	inLonger := make(map[string]bool)
	for _, w := range contentWords(longer) {
		inLonger[w] = true
	}
	hits := 0
	for _, w := range words {
		if inLonger[w] {
			hits++
		}
	}
	return float64(hits)/float64(len(words)) >= similarity
}

// contentWords returns the distinct lower-cased words of s that carry meaning
func contentWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func unionFeatures(a, b []string) []string {
	out := a
	for _, f := range b {
		if !slices.ContainsFunc(out, func(x string) bool { return strings.EqualFold(x, f) }) {
			out = append(out, f)
		}
	}
	return out
}
