// Package dualplan sequences the architecture-consensus pipeline: layout
// analysis, intelligence, two biased generations, negotiation, dual
// validation and the bounded repair loop, all under one global deadline.
package dualplan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dualplan/internal/agents/architect"
	"dualplan/internal/agents/consensus"
	"dualplan/internal/agents/review"
	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/config"
	"dualplan/internal/intelligence"
	"dualplan/internal/layout"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

// Request is the input of one execution. Layout takes precedence over
// LayoutJSON; with neither, backend needs are empty.
type Request struct {
	Specification *architecture.Specification       `json:"specification"`
	Layout        *architecture.LayoutDescription   `json:"layout,omitempty"`
	LayoutJSON    []byte                            `json:"-"`
	Intelligence  *architecture.IntelligenceContext `json:"intelligence,omitempty"`
}

// Orchestrator runs executions. It keeps no per-execution state and is safe
// for concurrent use.
type Orchestrator struct {
	gatherer    *intelligence.Gatherer
	feasibility *architect.Generator
	capability  *architect.Generator
	negotiator  *consensus.Negotiator
	validator   *review.Validator
	repairer    *Repairer
	timeout     time.Duration
	maxReplans  int
	logger      *zap.Logger
	now         func() time.Time
}

// New wires every stage to gen using the models and bounds in cfg. cache may be nil.
func New(gen ai.Generator, cfg *config.Config, cache *intelligence.Cache, logger *zap.Logger) *Orchestrator {
	logger = logging.OrDefault(logger)
	gatherOpts := []intelligence.Option{intelligence.WithLogger(logger)}
	if cache != nil {
		gatherOpts = append(gatherOpts, intelligence.WithCache(cache))
	}
	timeout := cfg.Pipeline.Timeout
	if timeout <= 0 {
		timeout = config.Defaults().Pipeline.Timeout
	}

	return &Orchestrator{
		gatherer:    intelligence.NewGatherer(gen, cfg.Models.Intelligence, gatherOpts...),
		feasibility: architect.New(gen, architecture.RoleFeasibility, cfg.Models.Feasibility, logger),
		capability:  architect.New(gen, architecture.RoleCapability, cfg.Models.Capability, logger),
		negotiator:  consensus.NewNegotiator(gen, cfg.Models.Negotiation, cfg.Pipeline.MaxNegotiationRounds, logger),
		validator: review.NewValidator(gen, review.Config{
			FeasibilityModel:    cfg.Models.FeasibilityReview,
			AgenticModel:        cfg.Models.AgenticReview,
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
			ApprovalCoverage:    cfg.Pipeline.ApprovalCoverage,
		}, logger),
		repairer:   NewRepairer(gen, cfg.Models.Repair, logger),
		timeout:    timeout,
		maxReplans: max(0, min(config.MaxReplanAttempts, cfg.Pipeline.MaxReplanAttempts)),
		logger:     logger,
		now:        time.Now,
	}
}

// Execute runs one execution to a terminal Result. It never panics and
// always returns exactly one result; onProgress receives nothing after the
// terminal event.
func (o *Orchestrator) Execute(ctx context.Context, req Request, onProgress ProgressFunc) Result {
	id := uuid.NewString()
	return o.ExecuteWithID(ctx, id, req, onProgress)
}

// ExecuteWithID is Execute with a caller-chosen execution ID
func (o *Orchestrator) ExecuteWithID(ctx context.Context, id string, req Request, onProgress ProgressFunc) Result {
	start := time.Now()
	em := newEmitter(id, onProgress)
	logger := o.logger.With(zap.String("execution_id", id))

	if err := req.Specification.Validate(); err != nil {
		return o.finish(em, logger, errorResult(id, err), start)
	}
	logger.Info("execution started", zap.String("spec", req.Specification.Name), zap.Duration("timeout", o.timeout))

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
				done <- errorResult(id, fmt.Errorf("internal error: %v", r))
			}
		}()
		res, err := o.run(runCtx, id, req, em, logger)
		if err != nil {
			res = o.contextResult(ctx, id)
		}
		done <- res
	}()

	var res Result
	select {
	case res = <-done:
	case <-runCtx.Done():
		select {
		case res = <-done:
		default:
			res = o.contextResult(ctx, id)
		}
	}
	return o.finish(em, logger, res, start)
}

// contextResult classifies a pipeline stopped by its context. A cancelled
// parent is reported as cancellation; anything else ran out of time.
func (o *Orchestrator) contextResult(parent context.Context, id string) Result {
	if errors.Is(parent.Err(), context.Canceled) {
		return errorResult(id, fmt.Errorf("pipeline cancelled: %w", parent.Err()))
	}
	return errorResult(id, fmt.Errorf("pipeline timed out after %s", o.timeout))
}

func (o *Orchestrator) finish(em *emitter, logger *zap.Logger, res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	switch res.Type {
	case ResultComplete:
		msg := "Architecture approved"
		if res.Architecture.Validation.ApprovedWithWarnings {
			msg = "Architecture approved with warnings"
		}
		em.terminal(StageComplete, msg)
		metrics.ObserveReplanAttempts(res.Architecture.Validation.ReplanAttempts)
	case ResultEscalation:
		em.terminal(StageEscalated, "Agents could not agree; human review required")
	default:
		em.terminal(StageError, res.Error)
	}
	metrics.RecordExecution(string(res.Type))
	logger.Info("execution finished",
		zap.String("type", string(res.Type)),
		zap.Duration("duration", res.Duration),
		zap.String("error", res.Error),
	)
	return res
}

// run executes the stages. A non-nil error means ctx ended first.
func (o *Orchestrator) run(ctx context.Context, id string, req Request, em *emitter, logger *zap.Logger) (Result, error) {
	spec := req.Specification
	var fallbacks []string
	noteFallback := func(component string, cause error) {
		fallbacks = append(fallbacks, component)
		logger.Debug("stage used fallback", zap.String("component", component), zap.Error(cause))
	}

	em.emit(StageLayoutAnalysis, percentLayoutStart, "Analyzing UI layout")
	stageStart := time.Now()
	needs := extractNeeds(req)
	metrics.ObserveStage(string(StageLayoutAnalysis), time.Since(stageStart))
	em.emit(StageLayoutAnalysis, percentLayoutDone,
		fmt.Sprintf("Found %d data models and %d endpoints", len(needs.DataModels), len(needs.Endpoints)))

	em.emit(StageIntelligence, percentIntelligenceStart, "Gathering model and framework intelligence")
	stageStart = time.Now()
	intel := o.gatherer.Gather(ctx, spec, &needs, req.Intelligence)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if intel.FallbackUsed() {
		noteFallback("intelligence", intel.Cause)
	}
	metrics.ObserveStage(string(StageIntelligence), time.Since(stageStart))
	em.emit(StageIntelligence, percentIntelligenceDone, fmt.Sprintf("Intelligence ready (%s)", intel.Value.Source))

	em.emit(StageGeneration, percentGenerationStart, "Generating feasibility and capability architectures")
	stageStart = time.Now()
	var feas, capa architecture.Parsed[architecture.ArchitecturePosition]
	join(
		func() { feas = o.feasibility.Generate(ctx, spec, &needs, &intel.Value) },
		func() { capa = o.capability.Generate(ctx, spec, &needs, &intel.Value) },
	)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if feas.FallbackUsed() {
		noteFallback("generator_feasibility", feas.Cause)
	}
	if capa.FallbackUsed() {
		noteFallback("generator_capability", capa.Cause)
	}
	metrics.ObserveStage(string(StageGeneration), time.Since(stageStart))
	em.emit(StageGeneration, percentGenerationDone, "Both candidate architectures ready")

	em.emit(StageConsensus, percentConsensusStart, "Negotiating a unified architecture")
	stageStart = time.Now()
	neg, err := o.negotiator.Negotiate(ctx, spec, feas.Value, capa.Value, func(round, maxRounds int) {
		pct := percentConsensusStart + (percentConsensusDone-percentConsensusStart)*(round-1)/maxRounds
		em.emitRound(pct, round, maxRounds, fmt.Sprintf("Negotiation round %d of %d", round, maxRounds))
	})
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveStage(string(StageConsensus), time.Since(stageStart))
	metrics.ObserveNegotiationRounds(len(neg.Rounds))
	if !neg.Reached {
		logger.Warn("negotiation escalated", zap.Int("rounds", len(neg.Rounds)), zap.Int("divergent", len(neg.DivergentIssues)))
		res := escalationResult(id, neg.Escalation())
		res.Fallbacks = fallbacks
		return res, nil
	}
	em.emit(StageConsensus, percentConsensusDone, fmt.Sprintf("Consensus reached after %d rounds", len(neg.Rounds)))

	unified := neg.Unified
	for attempts := 0; ; attempts++ {
		em.emit(StageValidation, percentValidationStart, "Validating architecture")
		stageStart = time.Now()
		verdict := o.validator.Validate(ctx, spec, &unified)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		metrics.ObserveStage(string(StageValidation), time.Since(stageStart))
		em.emit(StageValidation, percentValidationDone,
			fmt.Sprintf("Coverage %d%% with %d issues", verdict.OverallCoverage, len(verdict.Issues)))
		if verdict.Feasibility.FallbackUsed {
			noteFallback("review_feasibility", nil)
		}
		if verdict.Agentic.FallbackUsed {
			noteFallback("review_agentic", nil)
		}

		if verdict.ApprovedForExecution || attempts >= o.maxReplans {
			if !verdict.ApprovedForExecution {
				logger.Warn("replan budget exhausted, approving with warnings",
					zap.Int("replan_attempts", attempts),
					zap.Int("coverage", verdict.OverallCoverage),
				)
			}
			res := completeResult(id, architecture.FinalValidatedArchitecture{
				UnifiedArchitecture: unified,
				Validation: architecture.ValidationSummary{
					ApprovedAt:           o.now(),
					Coverage:             verdict.OverallCoverage,
					ReplanAttempts:       attempts,
					ApprovedWithWarnings: !verdict.ApprovedForExecution,
					RemainingIssues:      verdict.Issues,
				},
			})
			res.Fallbacks = fallbacks
			return res, nil
		}

		em.rewind(StageReplan, percentConsensusDone,
			fmt.Sprintf("Repairing architecture (attempt %d of %d)", attempts+1, o.maxReplans))
		stageStart = time.Now()
		var changed bool
		unified, changed = o.repairer.Repair(ctx, spec, unified, verdict.Issues)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if !changed {
			noteFallback("repair", nil)
		}
		metrics.ObserveStage(string(StageReplan), time.Since(stageStart))
	}
}

func extractNeeds(req Request) architecture.BackendNeeds {
	switch {
	case req.Layout != nil:
		return layout.Extract(req.Layout)
	case len(req.LayoutJSON) > 0:
		return layout.ExtractJSON(req.LayoutJSON)
	default:
		return layout.Extract(nil)
	}
}

// join runs both branches and waits for both. A panic in either branch is
// re-raised on the calling goroutine after the join.
func join(a, b func()) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		panicked any
	)
	wrap := func(f func()) func() error {
		return func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicked == nil {
						panicked = r
					}
					mu.Unlock()
				}
			}()
			f()
			return nil
		}
	}
	g.Go(wrap(a))
	g.Go(wrap(b))
	_ = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
}
