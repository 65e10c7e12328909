package intelligence

import (
	"fmt"
	"strings"

	"dualplan/internal/architecture"
)

const systemPrompt = `You are a technology scout for software architects. You track which AI models,
frameworks and agent patterns are currently the best fit for production applications.
Respond with a single JSON object and nothing else.`

func buildPrompt(spec *architecture.Specification, needs *architecture.BackendNeeds) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application: %s\n", spec.Name)
	if spec.Purpose != "" {
		fmt.Fprintf(&b, "Purpose: %s\n", spec.Purpose)
	}
	if names := spec.FeatureNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(names, ", "))
	}
	tr := spec.TechnicalRequirements
	fmt.Fprintf(&b, "Requirements: auth=%t database=%t realtime=%t fileUpload=%t", tr.NeedsAuth, tr.NeedsDatabase, tr.NeedsRealtime, tr.NeedsFileUpload)
	if tr.Scale != "" {
		fmt.Fprintf(&b, " scale=%s", tr.Scale)
	}
	b.WriteString("\n")
	if needs != nil && len(needs.DataModels) > 0 {
		models := make([]string, 0, len(needs.DataModels))
		for _, m := range needs.DataModels {
			models = append(models, m.Name)
		}
		fmt.Fprintf(&b, "Data models implied by the UI: %s\n", strings.Join(models, ", "))
	}
	b.WriteString(`
Return JSON with this shape:
{
  "modelRecommendations": [{"task": "reasoning|extraction|generation|vision|embedding", "modelId": "", "provider": "", "reason": ""}],
  "frameworkRecommendations": [{"category": "frontend|backend|database|realtime|auth|agents", "name": "", "reason": ""}],
  "agentPatterns": [""],
  "notes": [""]
}`)
	return b.String()
}
