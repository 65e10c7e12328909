package consensus

import (
	"fmt"
	"strings"

	"dualplan/internal/architecture"
)

const reviewSchema = `{
  "agreements": ["decisions you accept as final"],
  "divergentIssues": [{"topic": "short dotted field or concern, e.g. database.provider", "view": "what you want instead and why"}],
  "revisedPosition": null
}`

func systemPrompt(role architecture.Role) string {
	stance := "delivery risk, operational simplicity and cost"
	if role == architecture.RoleCapability {
		stance = "agentic workflows, realtime experiences and model quality"
	}
	return fmt.Sprintf(`You are the %s architect in a design negotiation. You care most about %s,
but your goal is a single architecture both sides can sign off. Only raise a divergent
issue when the difference materially matters; concede the rest. Respond with a single
JSON object and nothing else.`, role, stance)
}

func buildReviewPrompt(role architecture.Role, round, maxRounds int, spec *architecture.Specification, own, other, draft architecture.ArchitecturePosition, open []architecture.DivergentIssue) string {
	otherRole := architecture.RoleCapability
	if role == architecture.RoleCapability {
		otherRole = architecture.RoleFeasibility
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Negotiation round %d of %d.\n\n", round, maxRounds)
	fmt.Fprintf(&b, "Application: %s\n%s\n\n", spec.Name, spec.Purpose)
	fmt.Fprintf(&b, "Your current position:\n%s\n\n", architecture.CompactJSON(own))
	fmt.Fprintf(&b, "The %s architect's position:\n%s\n\n", otherRole, architecture.CompactJSON(other))
	fmt.Fprintf(&b, "Current merged draft:\n%s\n\n", architecture.CompactJSON(draft))
	if len(open) > 0 {
		b.WriteString("Issues still open from the previous round:\n")
		for _, d := range open {
			fmt.Fprintf(&b, "- %s (feasibility: %s; capability: %s)\n", d.Topic, orDash(d.FeasibilityView), orDash(d.CapabilityView))
		}
		b.WriteString("\n")
	}
	b.WriteString("Review the draft. List what you agree with, list the issues you still dispute, and if you\n")
	b.WriteString("are changing your own position, put the full revised architecture in revisedPosition using\n")
	fmt.Fprintf(&b, "this shape:\n%s\n\n", architecture.PositionSchema)
	fmt.Fprintf(&b, "Return JSON with this shape:\n%s", reviewSchema)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
