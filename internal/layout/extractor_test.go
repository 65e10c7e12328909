package layout

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualplan/internal/architecture"
)

const taskBoardLayout = `{
  "name": "task board",
  "components": [
    {"id": "f1", "type": "form", "label": "New Task", "children": [
      {"type": "input", "props": {"name": "title"}},
      {"type": "textarea", "label": "Description"},
      {"type": "section", "children": [{"type": "date", "label": "Due Date"}]}
    ]},
    {"id": "l1", "type": "table", "dataBinding": "tasks.all", "props": {"columns": ["title", {"name": "status"}]}},
    {"id": "c1", "type": "chat"}
  ]
}`

func TestExtractJSON_TaskBoard(t *testing.T) {
	needs := ExtractJSON([]byte(taskBoardLayout))

	require.Len(t, needs.DataModels, 1)
	model := needs.DataModels[0]
	assert.Equal(t, "Task", model.Name)
	assert.Equal(t, "f1", model.Source)
	assert.Equal(t, []string{"description", "due_date", "status", "title"}, model.Fields)

	require.Len(t, needs.Endpoints, 2)
	assert.Equal(t, "GET", needs.Endpoints[0].Method)
	assert.Equal(t, "/api/tasks", needs.Endpoints[0].Path)
	assert.Equal(t, "POST", needs.Endpoints[1].Method)
	assert.Equal(t, "/api/tasks", needs.Endpoints[1].Path)

	assert.True(t, needs.NeedsRealtime)
	assert.False(t, needs.NeedsAuth)
	assert.False(t, needs.NeedsFileUpload)
}

func TestExtract_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		layout       architecture.LayoutDescription
		wantAuth     bool
		wantRealtime bool
		wantUpload   bool
	}{
		{
			name:     "login component",
			layout:   architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "login"}}},
			wantAuth: true,
		},
		{
			name: "password input nested in a container",
			layout: architecture.LayoutDescription{Components: []architecture.LayoutComponent{{
				Type:     "container",
				Children: []architecture.LayoutComponent{{Type: "input", Props: map[string]any{"inputType": "password"}}},
			}}},
			wantAuth: true,
		},
		{
			name:     "sign in form does not become a model",
			layout:   architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "form", Label: "Sign in"}}},
			wantAuth: true,
		},
		{
			name:         "notification bell",
			layout:       architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "Notification"}}},
			wantRealtime: true,
		},
		{
			name:       "avatar picker",
			layout:     architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "avatar"}}},
			wantUpload: true,
		},
		{
			name:       "upload action on a button",
			layout:     architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "button", Actions: []string{"uploadReceipt"}}}},
			wantUpload: true,
		},
		{
			name:   "unknown component types",
			layout: architecture.LayoutDescription{Components: []architecture.LayoutComponent{{Type: "hologram", Props: map[string]any{"name": 42}}}},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			needs := Extract(&tc.layout)
			assert.Equal(t, tc.wantAuth, needs.NeedsAuth)
			assert.Equal(t, tc.wantRealtime, needs.NeedsRealtime)
			assert.Equal(t, tc.wantUpload, needs.NeedsFileUpload)
		})
	}
}

func TestExtract_SignInFormAddsNoModel(t *testing.T) {
	needs := Extract(&architecture.LayoutDescription{Components: []architecture.LayoutComponent{{
		Type:     "form",
		Label:    "Sign in",
		Children: []architecture.LayoutComponent{{Type: "email", Label: "Email"}},
	}}})

	assert.Empty(t, needs.DataModels)
	assert.Empty(t, needs.Endpoints)
}

func TestExtract_MalformedInputYieldsEmptyNeeds(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"components": 7}`, "null"} {
		needs := ExtractJSON([]byte(raw))
		assert.NotNil(t, needs.DataModels, "input %q", raw)
		assert.NotNil(t, needs.Endpoints, "input %q", raw)
		assert.Empty(t, needs.DataModels, "input %q", raw)
		assert.False(t, needs.NeedsAuth, "input %q", raw)
	}

	needs := Extract(nil)
	assert.NotNil(t, needs.DataModels)
	assert.Empty(t, needs.Endpoints)
}

func TestExtractJSON_BareComponentArray(t *testing.T) {
	needs := ExtractJSON([]byte(`[{"type": "list", "label": "Categories"}]`))

	require.Len(t, needs.DataModels, 1)
	assert.Equal(t, "Category", needs.DataModels[0].Name)
	assert.NotNil(t, needs.DataModels[0].Fields)
	require.Len(t, needs.Endpoints, 1)
	assert.Equal(t, "/api/categories", needs.Endpoints[0].Path)
}

func TestExtract_NonASCIINames(t *testing.T) {
	needs := Extract(&architecture.LayoutDescription{Components: []architecture.LayoutComponent{
		{Type: "list", DataBinding: "élèves"},
		{Type: "table", Label: "Ärzte"},
	}})

	require.Len(t, needs.DataModels, 2)
	names := []string{needs.DataModels[0].Name, needs.DataModels[1].Name}
	assert.ElementsMatch(t, []string{"Élève", "Ärzte"}, names)
	for _, n := range names {
		assert.True(t, utf8.ValidString(n), "model %q", n)
	}

	var paths []string
	for _, e := range needs.Endpoints {
		assert.True(t, utf8.ValidString(e.Path), "path %q", e.Path)
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"/api/élèves", "/api/ärztes"}, paths)
}

func TestExtract_Deterministic(t *testing.T) {
	first := ExtractJSON([]byte(taskBoardLayout))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ExtractJSON([]byte(taskBoardLayout)))
	}
}

func TestSingularPlural(t *testing.T) {
	assert.Equal(t, "Category", singular("Categories"))
	assert.Equal(t, "Box", singular("Boxes"))
	assert.Equal(t, "Address", singular("Address"))
	assert.Equal(t, "stories", plural("story"))
	assert.Equal(t, "days", plural("day"))
	assert.Equal(t, "boxes", plural("box"))
}
