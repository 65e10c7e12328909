package architecture

import "encoding/json"

// PositionSchema is the JSON shape every prompt asks for when it wants an
// architecture back.
const PositionSchema = `{
  "database": {"provider": "", "schemaStrategy": "", "models": [{"name": "", "fields": [{"name": "", "type": "", "required": true}], "relations": [""]}]},
  "api": {"style": "rest|graphql|rpc", "routes": [{"method": "", "path": "", "description": "", "requiresAuth": true}]},
  "auth": {"provider": "", "strategy": "", "flows": [""]},
  "agentic": {"enabled": true, "orchestration": "", "workflows": [{"name": "", "trigger": "", "steps": [""], "modelTask": ""}]},
  "realtime": {"enabled": true, "technology": "", "channels": [""]},
  "techStack": {"frontend": "", "backend": "", "database": "", "hosting": "", "extras": [""]},
  "scaling": {"approach": "", "caching": "", "notes": [""]},
  "aiModels": [{"task": "", "modelId": "", "reason": ""}],
  "rationale": ""
}`

// CompactJSON renders v for embedding in a prompt. Marshal failures render as
// an empty object so prompts are always well formed.
func CompactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
