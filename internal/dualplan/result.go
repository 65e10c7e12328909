package dualplan

import (
	"time"

	"dualplan/internal/architecture"
)

// ResultType discriminates Result
type ResultType string

const (
	ResultComplete   ResultType = "complete"
	ResultEscalation ResultType = "escalation"
	ResultError      ResultType = "error"
)

// Result is the terminal outcome of one execution. Exactly one of
// Architecture, Escalation and Error is set, matching Type.
type Result struct {
	Type         ResultType                               `json:"type"`
	ExecutionID  string                                   `json:"executionId"`
	Architecture *architecture.FinalValidatedArchitecture `json:"architecture,omitempty"`
	Escalation   *architecture.EscalationData             `json:"escalation,omitempty"`
	Error        string                                   `json:"error,omitempty"`
	Fallbacks    []string                                 `json:"fallbacks,omitempty"`
	Duration     time.Duration                            `json:"durationNs"`
}

func completeResult(id string, final architecture.FinalValidatedArchitecture) Result {
	return Result{Type: ResultComplete, ExecutionID: id, Architecture: &final}
}

func escalationResult(id string, esc architecture.EscalationData) Result {
	return Result{Type: ResultEscalation, ExecutionID: id, Escalation: &esc}
}

func errorResult(id string, err error) Result {
	return Result{Type: ResultError, ExecutionID: id, Error: err.Error()}
}
