package architecture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when AI output contains no JSON object at all
var ErrNoJSON = errors.New("no JSON object found in response")

// ParseOutcome tells callers whether a value came from the AI or from defaults
type ParseOutcome string

const (
	OutcomeOK       ParseOutcome = "ok"
	OutcomeFallback ParseOutcome = "fallback"
)

// Parsed wraps a fully-typed value together with how it was obtained.
// Value is always complete; Cause is set when Outcome is OutcomeFallback.
type Parsed[T any] struct {
	Value   T
	Outcome ParseOutcome
	Cause   error
}

// FallbackUsed reports whether defaults were substituted
func (p Parsed[T]) FallbackUsed() bool {
	return p.Outcome == OutcomeFallback
}

// ExtractJSON pulls the JSON object out of free-form model output.
// Markdown fences and surrounding prose are discarded.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```"); idx != -1 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			rest = rest[:end]
		}
		if strings.Contains(rest, "{") {
			text = strings.TrimSpace(rest)
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// DecodeJSON extracts the JSON object from text and unmarshals it into target.
// A trailing-comma pass is attempted before giving up.
func DecodeJSON(text string, target any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	err = json.Unmarshal([]byte(raw), target)
	if err == nil {
		return nil
	}
	if cleaned := stripTrailingCommas(raw); cleaned != raw {
		if json.Unmarshal([]byte(cleaned), target) == nil {
			return nil
		}
	}
	return fmt.Errorf("decode JSON: %w", err)
}

func stripTrailingCommas(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(raw) && (raw[j] == ' ' || raw[j] == '\n' || raw[j] == '\t' || raw[j] == '\r') {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// unwrapEnvelope returns the inner object when the model nested the payload
// under a single well-known key, e.g. {"architecture": {...}}.
func unwrapEnvelope(raw []byte, marker string, keys ...string) []byte {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return raw
	}
	if _, ok := top[marker]; ok {
		return raw
	}
	for _, k := range keys {
		if inner, ok := top[k]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
			return inner
		}
	}
	return raw
}

// ParsePosition parses model output into an ArchitecturePosition. Any field the
// model omitted is back-filled from fallback; unparseable output yields a copy
// of fallback with Outcome set to OutcomeFallback.
func ParsePosition(text string, fallback ArchitecturePosition) Parsed[ArchitecturePosition] {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Parsed[ArchitecturePosition]{Value: fallback.Clone(), Outcome: OutcomeFallback, Cause: err}
	}
	body := unwrapEnvelope([]byte(raw), "database", "architecture", "position", "unifiedArchitecture", "revisedPosition")

	var pos ArchitecturePosition
	if err := json.Unmarshal(body, &pos); err != nil {
		cleaned := []byte(stripTrailingCommas(string(body)))
		if err2 := json.Unmarshal(cleaned, &pos); err2 != nil {
			return Parsed[ArchitecturePosition]{Value: fallback.Clone(), Outcome: OutcomeFallback, Cause: fmt.Errorf("decode architecture: %w", err)}
		}
		body = cleaned
	}

	// Booleans cannot be told apart from "missing" on the main struct.
	var flags struct {
		Agentic struct {
			Enabled *bool `json:"enabled"`
		} `json:"agentic"`
		Realtime struct {
			Enabled *bool `json:"enabled"`
		} `json:"realtime"`
	}
	_ = json.Unmarshal(body, &flags)

	backfillPosition(&pos, fallback)
	if flags.Agentic.Enabled == nil {
		pos.Agentic.Enabled = fallback.Agentic.Enabled
	}
	if flags.Realtime.Enabled == nil {
		pos.Realtime.Enabled = fallback.Realtime.Enabled
	}
	return Parsed[ArchitecturePosition]{Value: pos, Outcome: OutcomeOK}
}

func backfillPosition(p *ArchitecturePosition, d ArchitecturePosition) {
	p.Role = d.Role

	fillString(&p.Database.Provider, d.Database.Provider)
	fillString(&p.Database.SchemaStrategy, d.Database.SchemaStrategy)
	if p.Database.Models == nil {
		p.Database.Models = cloneModels(d.Database.Models)
	}
	for i := range p.Database.Models {
		if p.Database.Models[i].Fields == nil {
			p.Database.Models[i].Fields = []Field{}
		}
	}

	fillString(&p.API.Style, d.API.Style)
	if p.API.Routes == nil {
		p.API.Routes = slices.Clone(d.API.Routes)
	}

	fillString(&p.Auth.Provider, d.Auth.Provider)
	fillString(&p.Auth.Strategy, d.Auth.Strategy)
	fillSlice(&p.Auth.Flows, d.Auth.Flows)

	fillString(&p.Agentic.Orchestration, d.Agentic.Orchestration)
	if p.Agentic.Workflows == nil {
		p.Agentic.Workflows = cloneWorkflows(d.Agentic.Workflows)
	}

	fillString(&p.Realtime.Technology, d.Realtime.Technology)
	fillSlice(&p.Realtime.Channels, d.Realtime.Channels)

	fillString(&p.TechStack.Frontend, d.TechStack.Frontend)
	fillString(&p.TechStack.Backend, d.TechStack.Backend)
	fillString(&p.TechStack.Database, d.TechStack.Database)
	fillString(&p.TechStack.Hosting, d.TechStack.Hosting)
	fillSlice(&p.TechStack.Extras, d.TechStack.Extras)

	fillString(&p.Scaling.Approach, d.Scaling.Approach)
	fillString(&p.Scaling.Caching, d.Scaling.Caching)
	fillSlice(&p.Scaling.Notes, d.Scaling.Notes)

	if p.AIModels == nil {
		p.AIModels = slices.Clone(d.AIModels)
		if p.AIModels == nil {
			p.AIModels = []ModelAssignment{}
		}
	}
	fillString(&p.Rationale, d.Rationale)
}

func fillString(dst *string, def string) {
	*dst = strings.TrimSpace(*dst)
	if *dst == "" {
		*dst = def
	}
}

func fillSlice(dst *[]string, def []string) {
	if *dst == nil {
		*dst = slices.Clone(def)
	}
	if *dst == nil {
		*dst = []string{}
	}
}

// Clone returns a deep copy so callers can mutate without aliasing
func (p ArchitecturePosition) Clone() ArchitecturePosition {
	out := p
	out.Database.Models = cloneModels(p.Database.Models)
	out.API.Routes = slices.Clone(p.API.Routes)
	out.Auth.Flows = slices.Clone(p.Auth.Flows)
	out.Agentic.Workflows = cloneWorkflows(p.Agentic.Workflows)
	out.Realtime.Channels = slices.Clone(p.Realtime.Channels)
	out.TechStack.Extras = slices.Clone(p.TechStack.Extras)
	out.Scaling.Notes = slices.Clone(p.Scaling.Notes)
	out.AIModels = slices.Clone(p.AIModels)
	return out
}

func cloneModels(in []DataModel) []DataModel {
	if in == nil {
		return nil
	}
	out := make([]DataModel, len(in))
	for i, m := range in {
		out[i] = DataModel{Name: m.Name, Fields: slices.Clone(m.Fields), Relations: slices.Clone(m.Relations)}
	}
	return out
}

func cloneWorkflows(in []AgenticWorkflow) []AgenticWorkflow {
	if in == nil {
		return nil
	}
	out := make([]AgenticWorkflow, len(in))
	for i, w := range in {
		out[i] = w
		out[i].Steps = slices.Clone(w.Steps)
	}
	return out
}

// flexInt accepts 85, 85.4, "85" and "85%". Values are clamped to the
// coverage range before rounding.
type flexInt struct {
	set   bool
	value int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return fmt.Errorf("coverage %q is not a number", string(data))
	}
	f.set = true
	f.value = int(math.Round(math.Max(0, math.Min(100, v))))
	return nil
}

type rawIssue struct {
	Severity         string   `json:"severity"`
	Category         string   `json:"category"`
	Description      string   `json:"description"`
	AffectedFeatures []string `json:"affectedFeatures"`
	SuggestedFix     string   `json:"suggestedFix"`
}

type rawReport struct {
	Issues    []rawIssue `json:"issues"`
	Coverage  flexInt    `json:"coverage"`
	Reasoning string     `json:"reasoning"`
}

// defaultCoverage is used when a reviewer returns issues but no score
const defaultCoverage = 80

// ParseReport parses a reviewer's output into a ValidationReport. Coverage is
// clamped to [0,100] and severities are normalized; unparseable output yields
// the conservative fallback report.
func ParseReport(text string, reviewer Reviewer) Parsed[ValidationReport] {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Parsed[ValidationReport]{Value: FallbackReport(reviewer, err), Outcome: OutcomeFallback, Cause: err}
	}
	body := unwrapEnvelope([]byte(raw), "coverage", "report", "validation", "review")

	var rr rawReport
	if err := json.Unmarshal(body, &rr); err != nil {
		if err2 := json.Unmarshal([]byte(stripTrailingCommas(string(body))), &rr); err2 != nil {
			cause := fmt.Errorf("decode report: %w", err)
			return Parsed[ValidationReport]{Value: FallbackReport(reviewer, cause), Outcome: OutcomeFallback, Cause: cause}
		}
	}

	report := ValidationReport{
		Reviewer:  reviewer,
		Issues:    make([]ValidationIssue, 0, len(rr.Issues)),
		Coverage:  defaultCoverage,
		Reasoning: strings.TrimSpace(rr.Reasoning),
	}
	if rr.Coverage.set {
		report.Coverage = ClampCoverage(rr.Coverage.value)
	}
	for _, ri := range rr.Issues {
		desc := strings.TrimSpace(ri.Description)
		if desc == "" {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(ri.Category))
		if category == "" {
			category = "general"
		}
		report.Issues = append(report.Issues, ValidationIssue{
			Severity:         NormalizeSeverity(ri.Severity),
			Category:         category,
			Description:      desc,
			AffectedFeatures: ri.AffectedFeatures,
			SuggestedFix:     strings.TrimSpace(ri.SuggestedFix),
		})
	}
	return Parsed[ValidationReport]{Value: report, Outcome: OutcomeOK}
}

// ClampCoverage bounds a coverage score to [0,100]
func ClampCoverage(v int) int {
	return max(0, min(100, v))
}

// NormalizeSeverity maps the many ways models spell severity onto the three levels.
// Anything unrecognized becomes a warning.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker", "high", "error", "fatal":
		return SeverityCritical
	case "suggestion", "low", "info", "minor", "nit", "note":
		return SeveritySuggestion
	default:
		return SeverityWarning
	}
}
