package consensus

import (
	"fmt"
	"slices"
	"strings"

	"dualplan/internal/architecture"
)

// Draft merges two positions into the running compromise. Infrastructure comes
// from the feasibility side, agentic and AI model choices from the capability
// side, and collections are unioned. Agreements lists the fields both sides
// already chose identically.
func Draft(feasibility, capability architecture.ArchitecturePosition) (architecture.ArchitecturePosition, []string) {
	f := feasibility.Clone()
	c := capability.Clone()

	draft := f
	draft.Role = architecture.RoleUnified
	draft.Database.Models = unionModels(f.Database.Models, c.Database.Models)
	draft.API.Routes = unionRoutes(f.API.Routes, c.API.Routes)
	draft.Auth.Flows = unionStrings(f.Auth.Flows, c.Auth.Flows)
	draft.Agentic = c.Agentic
	draft.Realtime = c.Realtime
	if !c.Realtime.Enabled && f.Realtime.Enabled {
		draft.Realtime = f.Realtime
	}
	draft.TechStack.Extras = unionStrings(f.TechStack.Extras, c.TechStack.Extras)
	if isNone(draft.Scaling.Caching) {
		draft.Scaling.Caching = c.Scaling.Caching
	}
	draft.Scaling.Notes = unionStrings(f.Scaling.Notes, c.Scaling.Notes)
	draft.AIModels = c.AIModels
	if len(draft.AIModels) == 0 {
		draft.AIModels = f.AIModels
	}
	draft.Rationale = joinRationale(f.Rationale, c.Rationale)

	return draft, sharedChoices(f, c)
}

func sharedChoices(f, c architecture.ArchitecturePosition) []string {
	pairs := []struct{ field, a, b string }{
		{"database.provider", f.Database.Provider, c.Database.Provider},
		{"database.schemaStrategy", f.Database.SchemaStrategy, c.Database.SchemaStrategy},
		{"api.style", f.API.Style, c.API.Style},
		{"auth.provider", f.Auth.Provider, c.Auth.Provider},
		{"auth.strategy", f.Auth.Strategy, c.Auth.Strategy},
		{"techStack.frontend", f.TechStack.Frontend, c.TechStack.Frontend},
		{"techStack.backend", f.TechStack.Backend, c.TechStack.Backend},
		{"techStack.database", f.TechStack.Database, c.TechStack.Database},
		{"techStack.hosting", f.TechStack.Hosting, c.TechStack.Hosting},
		{"scaling.approach", f.Scaling.Approach, c.Scaling.Approach},
	}
	var out []string
	for _, p := range pairs {
		if p.a != "" && strings.EqualFold(p.a, p.b) {
			out = append(out, fmt.Sprintf("%s: %s", p.field, p.a))
		}
	}
	return out
}

func unionModels(a, b []architecture.DataModel) []architecture.DataModel {
	out := slices.Clone(a)
	if out == nil {
		out = []architecture.DataModel{}
	}
	for _, m := range b {
		if !slices.ContainsFunc(out, func(x architecture.DataModel) bool { return strings.EqualFold(x.Name, m.Name) }) {
			out = append(out, m)
		}
	}
	return out
}

func unionRoutes(a, b []architecture.APIRoute) []architecture.APIRoute {
	out := slices.Clone(a)
	if out == nil {
		out = []architecture.APIRoute{}
	}
	for _, r := range b {
		if !slices.ContainsFunc(out, func(x architecture.APIRoute) bool {
			return strings.EqualFold(x.Method, r.Method) && x.Path == r.Path
		}) {
			out = append(out, r)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(slices.Clone(a), b...) {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func isNone(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || s == "none"
}

func joinRationale(f, c string) string {
	switch {
	case f == "":
		return c
	case c == "" || f == c:
		return f
	default:
		return "Feasibility: " + f + "\nCapability: " + c
	}
}
