package review

import (
	"fmt"
	"strings"

	"dualplan/internal/architecture"
)

const reportSchema = `{
  "coverage": 0,
  "reasoning": "",
  "issues": [{"severity": "critical|warning|suggestion", "category": "", "description": "", "affectedFeatures": [""], "suggestedFix": ""}]
}`

var systemPrompts = map[architecture.Reviewer]string{
	architecture.ReviewerFeasibility: `You are a staff engineer reviewing a proposed system architecture before any code is
written. Check that every feature, role and workflow in the specification is served by a
data model, route or component; that auth, storage and realtime choices are sound; and
that the team could build and operate it. Respond with a single JSON object and nothing else.`,
	architecture.ReviewerAgentic: `You are an AI systems reviewer. Judge whether the agentic workflows, model assignments
and realtime channels of a proposed architecture actually deliver the specification's
workflows, and whether any agent step is unsafe, unbounded or assigned to an unsuitable
model. Respond with a single JSON object and nothing else.`,
}

func buildPrompt(reviewer architecture.Reviewer, spec *architecture.Specification, arch *architecture.UnifiedArchitecture) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Specification:\n%s\n\n", architecture.CompactJSON(spec))
	fmt.Fprintf(&b, "Proposed architecture:\n%s\n\n", architecture.CompactJSON(arch))
	b.WriteString("Score coverage from 0 to 100: the share of the specification this architecture fully supports.\n")
	b.WriteString("Mark an issue critical only if the architecture cannot ship without fixing it.\n")
	if reviewer == architecture.ReviewerAgentic {
		b.WriteString("Focus on agentic workflows, AI model choices and realtime behaviour.\n")
	} else {
		b.WriteString("Focus on data models, API routes, authentication and operability.\n")
	}
	fmt.Fprintf(&b, "\nReturn JSON with this shape:\n%s", reportSchema)
	return b.String()
}
