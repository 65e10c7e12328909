// Package architecture holds the typed values that flow through the dual-plan
// pipeline: the application specification, derived backend needs, intelligence
// snapshots, candidate and unified architectures, and validation results.
package architecture

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidSpecification is returned when a specification carries nothing to plan.
var ErrInvalidSpecification = errors.New("invalid specification")

// Role identifies which bias produced an ArchitecturePosition
type Role string

const (
	RoleFeasibility Role = "feasibility" // favors proven, low-risk infrastructure
	RoleCapability  Role = "capability"  // favors agentic and AI-driven opportunities
	RoleUnified     Role = "unified"
)

// Feature is a single product feature from the specification
type Feature struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// UserRole describes a class of user and what it may do
type UserRole struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Workflow is an ordered user journey through the application
type Workflow struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// TechnicalRequirements are the explicit non-functional asks of the specification
type TechnicalRequirements struct {
	NeedsAuth       bool     `json:"needsAuth,omitempty"`
	NeedsDatabase   bool     `json:"needsDatabase,omitempty"`
	NeedsRealtime   bool     `json:"needsRealtime,omitempty"`
	NeedsFileUpload bool     `json:"needsFileUpload,omitempty"`
	Scale           string   `json:"scale,omitempty"`
	Platforms       []string `json:"platforms,omitempty"`
	Integrations    []string `json:"integrations,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// Specification is the read-only input describing the application to plan
type Specification struct {
	Name                  string                `json:"name"`
	Purpose               string                `json:"purpose,omitempty"`
	TargetUsers           string                `json:"targetUsers,omitempty"`
	Features              []Feature             `json:"features,omitempty"`
	Roles                 []UserRole            `json:"roles,omitempty"`
	Workflows             []Workflow            `json:"workflows,omitempty"`
	TechnicalRequirements TechnicalRequirements `json:"technicalRequirements"`
}

// Validate rejects a specification that gives the planners nothing to work with
func (s *Specification) Validate() error {
	if s == nil {
		return ErrInvalidSpecification
	}
	if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Purpose) == "" && len(s.Features) == 0 {
		return ErrInvalidSpecification
	}
	return nil
}

// FeatureNames returns the names of all features in declaration order
func (s *Specification) FeatureNames() []string {
	names := make([]string, 0, len(s.Features))
	for _, f := range s.Features {
		names = append(names, f.Name)
	}
	return names
}

// LayoutComponent is one node of a UI layout tree
type LayoutComponent struct {
	ID          string            `json:"id,omitempty"`
	Type        string            `json:"type"`
	Label       string            `json:"label,omitempty"`
	Props       map[string]any    `json:"props,omitempty"`
	DataBinding string            `json:"dataBinding,omitempty"`
	Actions     []string          `json:"actions,omitempty"`
	Children    []LayoutComponent `json:"children,omitempty"`
}

// LayoutDescription is the UI layout produced by the layout tool
type LayoutDescription struct {
	Name       string            `json:"name,omitempty"`
	Components []LayoutComponent `json:"components"`
}

// DataModelNeed is a data model implied by the layout
type DataModelNeed struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Source string   `json:"source,omitempty"`
}

// EndpointNeed is an API endpoint implied by the layout
type EndpointNeed struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Purpose string `json:"purpose,omitempty"`
	Model   string `json:"model,omitempty"`
}

// BackendNeeds are the backend requirements derived from a layout
type BackendNeeds struct {
	DataModels      []DataModelNeed `json:"dataModels"`
	Endpoints       []EndpointNeed  `json:"endpoints"`
	NeedsAuth       bool            `json:"needsAuth"`
	NeedsRealtime   bool            `json:"needsRealtime"`
	NeedsFileUpload bool            `json:"needsFileUpload"`
}

// IntelligenceSource records where an IntelligenceContext came from
type IntelligenceSource string

const (
	SourceLive        IntelligenceSource = "live"
	SourceCache       IntelligenceSource = "cache"
	SourcePrecomputed IntelligenceSource = "precomputed"
	SourceFallback    IntelligenceSource = "fallback"
)

// ModelRecommendation suggests a model for a class of AI task
type ModelRecommendation struct {
	Task     string `json:"task"`
	ModelID  string `json:"modelId"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// FrameworkRecommendation suggests a library or framework for a concern
type FrameworkRecommendation struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Reason   string `json:"reason,omitempty"`
}

// IntelligenceContext is an immutable snapshot of external recommendations
type IntelligenceContext struct {
	ModelRecommendations     []ModelRecommendation     `json:"modelRecommendations"`
	FrameworkRecommendations []FrameworkRecommendation `json:"frameworkRecommendations"`
	AgentPatterns            []string                  `json:"agentPatterns,omitempty"`
	Notes                    []string                  `json:"notes,omitempty"`
	GatheredAt               time.Time                 `json:"gatheredAt"`
	Source                   IntelligenceSource        `json:"source"`
}

// Field is one column/attribute of a data model
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// DataModel is a persisted entity in the proposed database
type DataModel struct {
	Name      string   `json:"name"`
	Fields    []Field  `json:"fields"`
	Relations []string `json:"relations,omitempty"`
}

// DatabaseConfig describes the proposed persistence layer
type DatabaseConfig struct {
	Provider       string      `json:"provider"`
	SchemaStrategy string      `json:"schemaStrategy"`
	Models         []DataModel `json:"models"`
}

// APIRoute is one route of the proposed API
type APIRoute struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Description  string `json:"description,omitempty"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

// APIConfig describes the proposed API surface
type APIConfig struct {
	Style  string     `json:"style"`
	Routes []APIRoute `json:"routes"`
}

// AuthConfig describes the proposed authentication approach
type AuthConfig struct {
	Provider string   `json:"provider"`
	Strategy string   `json:"strategy"`
	Flows    []string `json:"flows"`
}

// AgenticWorkflow is one AI-agent driven workflow
type AgenticWorkflow struct {
	Name      string   `json:"name"`
	Trigger   string   `json:"trigger,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	ModelTask string   `json:"modelTask,omitempty"`
}

// AgenticConfig describes the agentic-workflow layer
type AgenticConfig struct {
	Enabled       bool              `json:"enabled"`
	Orchestration string            `json:"orchestration"`
	Workflows     []AgenticWorkflow `json:"workflows"`
}

// RealtimeConfig describes realtime delivery
type RealtimeConfig struct {
	Enabled    bool     `json:"enabled"`
	Technology string   `json:"technology"`
	Channels   []string `json:"channels"`
}

// TechStack names the major technologies per tier
type TechStack struct {
	Frontend string   `json:"frontend"`
	Backend  string   `json:"backend"`
	Database string   `json:"database"`
	Hosting  string   `json:"hosting"`
	Extras   []string `json:"extras"`
}

// ScalingStrategy describes how the system grows
type ScalingStrategy struct {
	Approach string   `json:"approach"`
	Caching  string   `json:"caching"`
	Notes    []string `json:"notes"`
}

// ModelAssignment maps an AI task to a model
type ModelAssignment struct {
	Task    string `json:"task"`
	ModelID string `json:"modelId"`
	Reason  string `json:"reason,omitempty"`
}

// ArchitecturePosition is one candidate architecture
type ArchitecturePosition struct {
	Role      Role              `json:"role"`
	Database  DatabaseConfig    `json:"database"`
	API       APIConfig         `json:"api"`
	Auth      AuthConfig        `json:"auth"`
	Agentic   AgenticConfig     `json:"agentic"`
	Realtime  RealtimeConfig    `json:"realtime"`
	TechStack TechStack         `json:"techStack"`
	Scaling   ScalingStrategy   `json:"scaling"`
	AIModels  []ModelAssignment `json:"aiModels"`
	Rationale string            `json:"rationale,omitempty"`
}

// ConsensusReport summarizes how a unified architecture was agreed
type ConsensusReport struct {
	Agreements  []string `json:"agreements"`
	Compromises []string `json:"compromises,omitempty"`
	Rounds      int      `json:"rounds"`
}

// UnifiedArchitecture is the single architecture produced by negotiation
type UnifiedArchitecture struct {
	ArchitecturePosition
	Consensus ConsensusReport `json:"consensus"`
}

// Severity ranks validation issues
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Rank orders severities; higher is more severe. Unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuggestion:
		return 1
	default:
		return 0
	}
}

// ValidationIssue is a single problem found by a reviewer
type ValidationIssue struct {
	Severity         Severity `json:"severity"`
	Category         string   `json:"category"`
	Description      string   `json:"description"`
	AffectedFeatures []string `json:"affectedFeatures,omitempty"`
	SuggestedFix     string   `json:"suggestedFix,omitempty"`
}

// Reviewer identifies a validation angle
type Reviewer string

const (
	ReviewerFeasibility Reviewer = "feasibility"
	ReviewerAgentic     Reviewer = "agentic"
)

// ValidationReport is one reviewer's verdict
type ValidationReport struct {
	Reviewer     Reviewer          `json:"reviewer"`
	Issues       []ValidationIssue `json:"issues"`
	Coverage     int               `json:"coverage"`
	Reasoning    string            `json:"reasoning,omitempty"`
	FallbackUsed bool              `json:"fallbackUsed,omitempty"`
}

// MergedValidation combines both reviewer reports
type MergedValidation struct {
	Issues               []ValidationIssue `json:"issues"`
	OverallCoverage      int               `json:"overallCoverage"`
	NeedsReplan          bool              `json:"needsReplan"`
	ApprovedForExecution bool              `json:"approvedForExecution"`
	Feasibility          ValidationReport  `json:"feasibility"`
	Agentic              ValidationReport  `json:"agentic"`
}

// HasCritical reports whether any issue is critical
func (m *MergedValidation) HasCritical() bool {
	for _, issue := range m.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ValidationSummary is attached to a final architecture
type ValidationSummary struct {
	ApprovedAt           time.Time         `json:"approvedAt"`
	Coverage             int               `json:"coverage"`
	ReplanAttempts       int               `json:"replanAttempts"`
	ApprovedWithWarnings bool              `json:"approvedWithWarnings"`
	RemainingIssues      []ValidationIssue `json:"remainingIssues,omitempty"`
}

// FinalValidatedArchitecture is the terminal success artifact
type FinalValidatedArchitecture struct {
	UnifiedArchitecture
	Validation ValidationSummary `json:"validation"`
}

// DivergentIssue is a topic the two sides still disagree on
type DivergentIssue struct {
	Topic           string `json:"topic"`
	FeasibilityView string `json:"feasibilityView,omitempty"`
	CapabilityView  string `json:"capabilityView,omitempty"`
}

// EscalationData is the terminal failure-to-agree artifact
type EscalationData struct {
	Reason              string               `json:"reason"`
	DivergentIssues     []DivergentIssue     `json:"divergentIssues"`
	FeasibilityPosition ArchitecturePosition `json:"feasibilityPosition"`
	CapabilityPosition  ArchitecturePosition `json:"capabilityPosition"`
	Rounds              int                  `json:"rounds"`
}
