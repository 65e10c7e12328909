package architecture

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPosition returns a structurally complete architecture for a role.
// The capability role defaults to agentic features enabled; the feasibility
// role keeps them off and leans on managed, well-understood services.
func DefaultPosition(role Role, spec *Specification, needs *BackendNeeds) ArchitecturePosition {
	pos := ArchitecturePosition{
		Role: role,
		Database: DatabaseConfig{
			Provider:       "postgresql",
			SchemaStrategy: "relational",
			Models:         defaultModels(needs),
		},
		API: APIConfig{
			Style:  "rest",
			Routes: defaultRoutes(needs),
		},
		Auth: AuthConfig{
			Provider: "managed",
			Strategy: "jwt",
			Flows:    []string{"email-password"},
		},
		Agentic: AgenticConfig{
			Enabled:       false,
			Orchestration: "none",
			Workflows:     []AgenticWorkflow{},
		},
		Realtime: RealtimeConfig{
			Enabled:    false,
			Technology: "none",
			Channels:   []string{},
		},
		TechStack: TechStack{
			Frontend: "react",
			Backend:  "node",
			Database: "postgresql",
			Hosting:  "managed-container",
			Extras:   []string{"typescript"},
		},
		Scaling: ScalingStrategy{
			Approach: "vertical-then-horizontal",
			Caching:  "none",
			Notes:    []string{},
		},
		AIModels:  []ModelAssignment{},
		Rationale: "default architecture substituted for role " + string(role),
	}

	if (needs != nil && needs.NeedsRealtime) || (spec != nil && spec.TechnicalRequirements.NeedsRealtime) {
		pos.Realtime = RealtimeConfig{Enabled: true, Technology: "websocket", Channels: []string{"updates"}}
	}
	if (needs != nil && needs.NeedsFileUpload) || (spec != nil && spec.TechnicalRequirements.NeedsFileUpload) {
		pos.TechStack.Extras = append(pos.TechStack.Extras, "object-storage")
	}

	if role == RoleCapability {
		pos.Agentic = AgenticConfig{
			Enabled:       true,
			Orchestration: "event-driven",
			Workflows:     defaultAgenticWorkflows(spec),
		}
		pos.AIModels = []ModelAssignment{
			{Task: "reasoning", ModelID: "claude-sonnet-4-5", Reason: "multi-step planning"},
			{Task: "extraction", ModelID: "gemini-2.5-flash", Reason: "fast structured output"},
		}
		pos.Scaling.Caching = "redis"
	}
	return pos
}

func defaultModels(needs *BackendNeeds) []DataModel {
	models := []DataModel{}
	if needs == nil {
		return models
	}
	for _, m := range needs.DataModels {
		fields := []Field{{Name: "id", Type: "uuid", Required: true}}
		for _, f := range m.Fields {
			if strings.EqualFold(f, "id") {
				continue
			}
			fields = append(fields, Field{Name: f, Type: "string"})
		}
		models = append(models, DataModel{Name: m.Name, Fields: fields})
	}
	return models
}

func defaultRoutes(needs *BackendNeeds) []APIRoute {
	routes := []APIRoute{}
	if needs == nil {
		return routes
	}
	for _, e := range needs.Endpoints {
		routes = append(routes, APIRoute{Method: e.Method, Path: e.Path, Description: e.Purpose, RequiresAuth: needs.NeedsAuth})
	}
	return routes
}

func defaultAgenticWorkflows(spec *Specification) []AgenticWorkflow {
	if spec == nil || len(spec.Workflows) == 0 {
		return []AgenticWorkflow{{Name: "assistant", Trigger: "user-request", Steps: []string{"understand", "act", "report"}, ModelTask: "reasoning"}}
	}
	out := make([]AgenticWorkflow, 0, len(spec.Workflows))
	for _, w := range spec.Workflows {
		out = append(out, AgenticWorkflow{
			Name:      w.Name + " agent",
			Trigger:   "workflow-start",
			Steps:     append([]string(nil), w.Steps...),
			ModelTask: "reasoning",
		})
	}
	return out
}

// DefaultIntelligence is substituted when recommendations cannot be gathered
func DefaultIntelligence(now time.Time) IntelligenceContext {
	return IntelligenceContext{
		ModelRecommendations: []ModelRecommendation{
			{Task: "reasoning", ModelID: "claude-sonnet-4-5", Provider: "claude", Reason: "strong multi-step reasoning"},
			{Task: "extraction", ModelID: "gemini-2.5-flash", Provider: "gemini", Reason: "low latency structured output"},
			{Task: "generation", ModelID: "gpt-5", Provider: "gpt4", Reason: "general purpose generation"},
		},
		FrameworkRecommendations: []FrameworkRecommendation{
			{Category: "frontend", Name: "react", Reason: "ecosystem depth"},
			{Category: "database", Name: "postgresql", Reason: "relational default"},
		},
		AgentPatterns: []string{"planner-executor", "reviewer-loop"},
		Notes:         []string{},
		GatheredAt:    now,
		Source:        SourceFallback,
	}
}

// FallbackReport is the conservative report substituted when a reviewer is unavailable
func FallbackReport(reviewer Reviewer, cause error) ValidationReport {
	reason := "reviewer unavailable"
	if cause != nil {
		reason = cause.Error()
	}
	return ValidationReport{
		Reviewer: reviewer,
		Coverage: 80,
		Issues: []ValidationIssue{{
			Severity:     SeverityWarning,
			Category:     "review",
			Description:  fmt.Sprintf("Manual review recommended: %s review could not be completed", reviewer),
			SuggestedFix: "Have an engineer review this architecture manually",
		}},
		Reasoning:    "fallback report: " + reason,
		FallbackUsed: true,
	}
}
