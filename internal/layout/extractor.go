// Package layout derives backend requirements from a UI layout description.
// Extraction is pure: malformed input produces empty needs, never an error.
package layout

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"dualplan/internal/architecture"
)

var (
	formTypes     = []string{"form", "input-group", "wizard"}
	listTypes     = []string{"list", "table", "grid", "card-list", "data-table", "gallery"}
	authTypes     = []string{"login", "signup", "sign-up", "register", "auth", "profile", "logout"}
	realtimeTypes = []string{"chat", "feed", "notification", "live", "presence", "activity-stream"}
	uploadTypes   = []string{"upload", "file", "file-upload", "image-upload", "avatar", "dropzone"}
	inputTypes    = []string{"input", "text-input", "textarea", "select", "checkbox", "date", "number", "email", "password", "toggle"}
)

// ExtractJSON decodes raw layout JSON and extracts backend needs from it.
// Undecodable input yields empty needs.
func ExtractJSON(raw []byte) architecture.BackendNeeds {
	var desc architecture.LayoutDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		// Some layout tools emit a bare component array.
		var comps []architecture.LayoutComponent
		if err := json.Unmarshal(raw, &comps); err != nil {
			return empty()
		}
		desc.Components = comps
	}
	return Extract(&desc)
}

// Extract walks a layout tree and infers data models, endpoints and the
// auth/realtime/upload flags.
func Extract(desc *architecture.LayoutDescription) architecture.BackendNeeds {
	needs := empty()
	if desc == nil {
		return needs
	}

	x := &extraction{models: map[string]map[string]struct{}{}, sources: map[string]string{}, endpoints: map[string]architecture.EndpointNeed{}}
	for i := range desc.Components {
		x.visit(&desc.Components[i], 0)
	}

	needs.NeedsAuth = x.auth
	needs.NeedsRealtime = x.realtime
	needs.NeedsFileUpload = x.upload

	names := make([]string, 0, len(x.models))
	for name := range x.models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields := make([]string, 0, len(x.models[name]))
		for f := range x.models[name] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		needs.DataModels = append(needs.DataModels, architecture.DataModelNeed{Name: name, Fields: fields, Source: x.sources[name]})
	}

	keys := make([]string, 0, len(x.endpoints))
	for k := range x.endpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		needs.Endpoints = append(needs.Endpoints, x.endpoints[k])
	}
	return needs
}

func empty() architecture.BackendNeeds {
	return architecture.BackendNeeds{
		DataModels: []architecture.DataModelNeed{},
		Endpoints:  []architecture.EndpointNeed{},
	}
}

// maxDepth bounds recursion on pathological or cyclic-looking input
const maxDepth = 64

type extraction struct {
	models    map[string]map[string]struct{}
	sources   map[string]string
	endpoints map[string]architecture.EndpointNeed
	auth      bool
	realtime  bool
	upload    bool
}

func (x *extraction) visit(c *architecture.LayoutComponent, depth int) {
	if c == nil || depth > maxDepth {
		return
	}
	kind := strings.ToLower(strings.TrimSpace(c.Type))

	switch {
	case matches(kind, authTypes):
		x.auth = true
	case matches(kind, realtimeTypes):
		x.realtime = true
	case matches(kind, uploadTypes):
		x.upload = true
	}
	if kind == "password" || propString(c.Props, "inputType") == "password" {
		x.auth = true
	}
	for _, a := range c.Actions {
		x.inspectAction(strings.ToLower(a))
	}

	switch {
	case matches(kind, formTypes) && isAuthForm(c):
		x.auth = true
	case matches(kind, formTypes):
		if model := modelName(c); model != "" {
			x.addModel(model, c.ID)
			for _, f := range collectFields(c, depth) {
				x.models[model][f] = struct{}{}
			}
			x.addEndpoint("POST", model, "create "+model)
		}
	case matches(kind, listTypes):
		if model := modelName(c); model != "" {
			x.addModel(model, c.ID)
			for _, col := range propStrings(c.Props, "columns") {
				if f := fieldName(col); f != "" {
					x.models[model][f] = struct{}{}
				}
			}
			x.addEndpoint("GET", model, "list "+model)
		}
	}

	for i := range c.Children {
		x.visit(&c.Children[i], depth+1)
	}
}

func (x *extraction) inspectAction(action string) {
	switch {
	case strings.Contains(action, "login") || strings.Contains(action, "logout") || strings.Contains(action, "signup"):
		x.auth = true
	case strings.Contains(action, "upload"):
		x.upload = true
	case strings.Contains(action, "subscribe") || strings.Contains(action, "stream"):
		x.realtime = true
	}
}

func (x *extraction) addModel(name, source string) {
	if _, ok := x.models[name]; !ok {
		x.models[name] = map[string]struct{}{}
		x.sources[name] = source
	}
}

func (x *extraction) addEndpoint(method, model, purpose string) {
	path := "/api/" + plural(strings.ToLower(model))
	key := method + " " + path
	if _, ok := x.endpoints[key]; ok {
		return
	}
	x.endpoints[key] = architecture.EndpointNeed{Method: method, Path: path, Purpose: purpose, Model: model}
}

// isAuthForm catches login/signup forms declared as plain "form" components
func isAuthForm(c *architecture.LayoutComponent) bool {
	label := strings.ToLower(c.Label + " " + c.DataBinding)
	for _, w := range []string{"login", "log in", "sign in", "signin", "signup", "sign up", "register"} {
		if strings.Contains(label, w) {
			return true
		}
	}
	return false
}

func collectFields(c *architecture.LayoutComponent, depth int) []string {
	var out []string
	for i := range c.Children {
		child := &c.Children[i]
		if depth+1 > maxDepth {
			break
		}
		if matches(strings.ToLower(child.Type), inputTypes) {
			name := propString(child.Props, "name")
			if name == "" {
				name = child.Label
			}
			if f := fieldName(name); f != "" {
				out = append(out, f)
			}
		}
		out = append(out, collectFields(child, depth+1)...)
	}
	return out
}

// modelName prefers the data binding ("users.list" -> "User"), then the label
func modelName(c *architecture.LayoutComponent) string {
	src := c.DataBinding
	if src == "" {
		src = propString(c.Props, "model")
	}
	if src == "" {
		src = c.Label
	}
	if i := strings.IndexAny(src, "./:"); i > 0 {
		src = src[:i]
	}
	words := strings.FieldsFunc(src, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		lw := strings.ToLower(w)
		if lw == "form" || lw == "list" || lw == "table" || lw == "new" || lw == "create" || lw == "all" {
			continue
		}
		r, n := utf8.DecodeRuneInString(lw)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(lw[n:])
	}
	return singular(b.String())
}

func fieldName(label string) string {
	words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	return strings.Join(words, "_")
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses") || strings.HasSuffix(s, "xes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	default:
		return s
	}
}

func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsAny(s[len(s)-2:len(s)-1], "aeiou"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s") || strings.HasSuffix(s, "x"):
		return s + "es"
	default:
		return s + "s"
	}
}

func matches(kind string, set []string) bool {
	for _, s := range set {
		if kind == s {
			return true
		}
	}
	return false
}

func propString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

func propStrings(props map[string]any, key string) []string {
	if props == nil {
		return nil
	}
	switch t := props[key].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			switch s := v.(type) {
			case string:
				out = append(out, s)
			case map[string]any:
				if name, ok := s["name"].(string); ok {
					out = append(out, name)
				}
			}
		}
		return out
	default:
		return nil
	}
}
