package dualplan

import (
	"sync"
	"time"
)

// Stage names a pipeline state
type Stage string

const (
	StageLayoutAnalysis Stage = "layout-analysis"
	StageIntelligence   Stage = "intelligence"
	StageGeneration     Stage = "parallel-generation"
	StageConsensus      Stage = "consensus"
	StageValidation     Stage = "validation"
	StageReplan         Stage = "replan"
	StageComplete       Stage = "complete"
	StageEscalated      Stage = "escalated"
	StageError          Stage = "error"
)

// Stage percents. Replan rewinds to percentConsensusDone.
const (
	percentLayoutStart       = 5
	percentLayoutDone        = 10
	percentIntelligenceStart = 15
	percentIntelligenceDone  = 25
	percentGenerationStart   = 30
	percentGenerationDone    = 45
	percentConsensusStart    = 50
	percentConsensusDone     = 70
	percentValidationStart   = 75
	percentValidationDone    = 85
	percentTerminal          = 100
)

// Progress is one event of an execution's progress stream
type Progress struct {
	ExecutionID string    `json:"executionId"`
	Stage       Stage     `json:"stage"`
	Percent     int       `json:"percent"`
	Message     string    `json:"message"`
	Round       int       `json:"round,omitempty"`
	MaxRounds   int       `json:"maxRounds,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProgressFunc receives progress events in order. It is never called
// concurrently for one execution.
type ProgressFunc func(Progress)

// emitter serializes progress for one execution and goes quiet once the
// terminal event has been sent.
type emitter struct {
	mu     sync.Mutex
	id     string
	fn     ProgressFunc
	last   int
	sealed bool
}

func newEmitter(id string, fn ProgressFunc) *emitter {
	return &emitter{id: id, fn: fn}
}

func (e *emitter) emit(stage Stage, percent int, message string) {
	e.send(Progress{Stage: stage, Percent: percent, Message: message}, false, false)
}

func (e *emitter) emitRound(percent, round, maxRounds int, message string) {
	e.send(Progress{Stage: StageConsensus, Percent: percent, Message: message, Round: round, MaxRounds: maxRounds}, false, false)
}

// rewind is the only way percent may go down
func (e *emitter) rewind(stage Stage, percent int, message string) {
	e.send(Progress{Stage: stage, Percent: percent, Message: message}, true, false)
}

// terminal sends the final event and seals the stream
func (e *emitter) terminal(stage Stage, message string) {
	e.send(Progress{Stage: stage, Percent: percentTerminal, Message: message}, false, true)
}

func (e *emitter) send(p Progress, allowDecrease, seal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return
	}
	if seal {
		e.sealed = true
	}
	if !allowDecrease && p.Percent < e.last {
		p.Percent = e.last
	}
	e.last = p.Percent
	if e.fn == nil {
		return
	}
	p.ExecutionID = e.id
	p.Timestamp = time.Now()
	e.fn(p)
}
