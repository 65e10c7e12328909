package architect

import (
	"fmt"
	"strings"

	"dualplan/internal/architecture"
)

const feasibilitySystem = `You are a pragmatic principal engineer. You design architectures that a small team
can ship and operate this quarter: proven managed services, boring technology,
minimal moving parts. Adopt AI or agentic features only where the specification
clearly requires them. Respond with a single JSON object and nothing else.`

const capabilitySystem = `You are an AI-native systems architect. You look for every place where agents,
model-driven workflows and realtime collaboration would make the product
meaningfully better, and you design the architecture to support them from day one.
Assign the best current model to each AI task. Respond with a single JSON object
and nothing else.`

func systemPrompt(role architecture.Role) string {
	if role == architecture.RoleCapability {
		return capabilitySystem
	}
	return feasibilitySystem
}

func buildPrompt(role architecture.Role, spec *architecture.Specification, needs *architecture.BackendNeeds, intel *architecture.IntelligenceContext) string {
	var b strings.Builder
	b.WriteString("Design the system architecture for this application.\n\n")
	fmt.Fprintf(&b, "Specification:\n%s\n\n", architecture.CompactJSON(spec))
	if needs != nil {
		fmt.Fprintf(&b, "Backend needs derived from the UI layout:\n%s\n\n", architecture.CompactJSON(needs))
	}
	if intel != nil {
		fmt.Fprintf(&b, "Current recommendations:\n%s\n\n", architecture.CompactJSON(struct {
			Models     []architecture.ModelRecommendation     `json:"models"`
			Frameworks []architecture.FrameworkRecommendation `json:"frameworks"`
			Patterns   []string                               `json:"agentPatterns"`
		}{intel.ModelRecommendations, intel.FrameworkRecommendations, intel.AgentPatterns}))
	}
	switch role {
	case architecture.RoleCapability:
		b.WriteString("Prioritize agentic workflows, realtime experiences and AI model assignments.\n")
	default:
		b.WriteString("Prioritize delivery risk, operational simplicity and cost. Justify anything non-standard.\n")
	}
	b.WriteString("Every data model and endpoint implied by the layout must appear in the architecture.\n\n")
	fmt.Fprintf(&b, "Return JSON with exactly this shape:\n%s", architecture.PositionSchema)
	return b.String()
}
