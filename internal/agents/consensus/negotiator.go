// Package consensus reconciles the feasibility and capability positions into
// one unified architecture over a bounded number of review rounds.
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"dualplan/internal/ai"
	"dualplan/internal/architecture"
	"dualplan/internal/logging"
	"dualplan/internal/metrics"
)

// MaxRounds is the hard ceiling on negotiation rounds
const MaxRounds = 5

const (
	maxTokens   = 8192
	temperature = 0.3
)

// ProgressFunc is told when each round starts
type ProgressFunc func(round, maxRounds int)

// Round records one exchange between the two sides
type Round struct {
	Number             int                           `json:"number"`
	Agreements         []string                      `json:"agreements"`
	DivergentIssues    []architecture.DivergentIssue `json:"divergentIssues"`
	FeasibilityRevised bool                          `json:"feasibilityRevised"`
	CapabilityRevised  bool                          `json:"capabilityRevised"`
	FallbackSides      []architecture.Role           `json:"fallbackSides,omitempty"`
}

// Result is the outcome of a negotiation. When Reached is true Unified holds
// the agreed architecture; otherwise EscalationReason and DivergentIssues
// explain what is still disputed and the two last positions are kept for
// external review.
type Result struct {
	Reached          bool
	Unified          architecture.UnifiedArchitecture
	Agreements       []string
	Rounds           []Round
	EscalationReason string
	DivergentIssues  []architecture.DivergentIssue
	Feasibility      architecture.ArchitecturePosition
	Capability       architecture.ArchitecturePosition
}

// Escalation packages an unreached result for external review
func (r *Result) Escalation() architecture.EscalationData {
	return architecture.EscalationData{
		Reason:              r.EscalationReason,
		DivergentIssues:     r.DivergentIssues,
		FeasibilityPosition: r.Feasibility,
		CapabilityPosition:  r.Capability,
		Rounds:              len(r.Rounds),
	}
}

// Negotiator runs the review rounds. It holds no per-negotiation state.
type Negotiator struct {
	gen       ai.Generator
	model     string
	maxRounds int
	logger    *zap.Logger
}

// NewNegotiator creates a negotiator that allows up to maxRounds rounds,
// clamped to [1, MaxRounds].
func NewNegotiator(gen ai.Generator, model string, maxRounds int, logger *zap.Logger) *Negotiator {
	return &Negotiator{
		gen:       gen,
		model:     model,
		maxRounds: max(1, min(MaxRounds, maxRounds)),
		logger:    logging.OrDefault(logger),
	}
}

// MaxRounds returns the configured round budget
func (n *Negotiator) MaxRounds() int {
	return n.maxRounds
}

// Negotiate reconciles the two positions. The returned error is non-nil only
// when ctx ends before a result is reached.
func (n *Negotiator) Negotiate(ctx context.Context, spec *architecture.Specification, feasibility, capability architecture.ArchitecturePosition, onRound ProgressFunc) (Result, error) {
	feas := feasibility.Clone()
	capa := capability.Clone()
	draft, _ := Draft(feas, capa)

	var (
		rounds     []Round
		agreements []string
		open       []architecture.DivergentIssue
		disputed   = map[string]int{}
	)

	for r := 1; r <= n.maxRounds; r++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if onRound != nil {
			onRound(r, n.maxRounds)
		}
		start := time.Now()
		round := Round{Number: r}

		// Sequential: the capability side sees the feasibility side's revision.
		fr := n.review(ctx, architecture.RoleFeasibility, r, spec, feas, capa, draft, open)
		if fr.revised != nil {
			feas = *fr.revised
			round.FeasibilityRevised = true
		}
		cr := n.review(ctx, architecture.RoleCapability, r, spec, capa, feas, draft, open)
		if cr.revised != nil {
			capa = *cr.revised
			round.CapabilityRevised = true
		}
		for _, side := range []sideReview{fr, cr} {
			if side.fallback {
				round.FallbackSides = append(round.FallbackSides, side.role)
			}
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		var shared []string
		draft, shared = Draft(feas, capa)
		round.Agreements = unionStrings(unionStrings(fr.agreements, cr.agreements), shared)
		round.DivergentIssues = combineDivergences(fr, cr)
		agreements = unionStrings(agreements, round.Agreements)
		rounds = append(rounds, round)
		for _, d := range round.DivergentIssues {
			if _, ok := disputed[d.Topic]; !ok {
				disputed[d.Topic] = r
			}
		}

		n.logger.Info("negotiation round finished",
			zap.Int("round", r),
			zap.Int("max_rounds", n.maxRounds),
			zap.Int("agreements", len(round.Agreements)),
			zap.Int("divergent", len(round.DivergentIssues)),
			zap.Duration("duration", time.Since(start)),
		)

		if len(round.DivergentIssues) == 0 {
			unified := architecture.UnifiedArchitecture{
				ArchitecturePosition: draft,
				Consensus: architecture.ConsensusReport{
					Agreements:  agreements,
					Compromises: compromises(disputed, r),
					Rounds:      r,
				},
			}
			return Result{
				Reached:     true,
				Unified:     unified,
				Agreements:  agreements,
				Rounds:      rounds,
				Feasibility: feas,
				Capability:  capa,
			}, nil
		}
		open = round.DivergentIssues
	}

	reason := fmt.Sprintf("no consensus after %d rounds: %d issues still disputed (%s)",
		n.maxRounds, len(open), strings.Join(topics(open), ", "))
	n.logger.Warn("negotiation escalated", zap.String("reason", reason))
	return Result{
		Reached:          false,
		Agreements:       agreements,
		Rounds:           rounds,
		EscalationReason: reason,
		DivergentIssues:  open,
		Feasibility:      feas,
		Capability:       capa,
	}, nil
}

type sideReview struct {
	role       architecture.Role
	agreements []string
	divergent  map[string]string
	order      []string
	revised    *architecture.ArchitecturePosition
	fallback   bool
}

type reviewResponse struct {
	Agreements      []string `json:"agreements"`
	DivergentIssues []struct {
		Topic       string `json:"topic"`
		View        string `json:"view"`
		Description string `json:"description"`
	} `json:"divergentIssues"`
	RevisedPosition json.RawMessage `json:"revisedPosition"`
}

// review asks one side for its verdict. A failed or unparseable reply counts
// as that side proposing no changes.
func (n *Negotiator) review(ctx context.Context, role architecture.Role, round int, spec *architecture.Specification, own, other, draft architecture.ArchitecturePosition, open []architecture.DivergentIssue) sideReview {
	out := sideReview{role: role, divergent: map[string]string{}}
	text, err := n.gen.Generate(ctx, buildReviewPrompt(role, round, n.maxRounds, spec, own, other, draft, open), n.model, ai.GenerateOptions{
		System:      systemPrompt(role),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSON:        true,
	})
	if err == nil {
		var resp reviewResponse
		if err = architecture.DecodeJSON(text, &resp); err == nil {
			out.agreements = cleanStrings(resp.Agreements)
			for _, d := range resp.DivergentIssues {
				topic := normalizeTopic(d.Topic)
				if topic == "" {
					continue
				}
				view := strings.TrimSpace(d.View)
				if view == "" {
					view = strings.TrimSpace(d.Description)
				}
				if _, seen := out.divergent[topic]; !seen {
					out.order = append(out.order, topic)
				}
				out.divergent[topic] = view
			}
			out.revised = revisedPosition(resp.RevisedPosition, own)
			return out
		}
	}

	n.logger.Warn("negotiation review failed, treating as no changes",
		zap.String("role", string(role)),
		zap.Int("round", round),
		zap.Error(err),
	)
	metrics.RecordFallback("negotiation_" + string(role))
	out.fallback = true
	return out
}

func revisedPosition(raw json.RawMessage, current architecture.ArchitecturePosition) *architecture.ArchitecturePosition {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	parsed := architecture.ParsePosition(trimmed, current)
	if parsed.FallbackUsed() {
		return nil
	}
	return &parsed.Value
}

// combineDivergences unions both sides' issues by topic, feasibility first
func combineDivergences(f, c sideReview) []architecture.DivergentIssue {
	out := []architecture.DivergentIssue{}
	index := map[string]int{}
	for _, topic := range f.order {
		index[topic] = len(out)
		out = append(out, architecture.DivergentIssue{Topic: topic, FeasibilityView: f.divergent[topic]})
	}
	for _, topic := range c.order {
		if i, ok := index[topic]; ok {
			out[i].CapabilityView = c.divergent[topic]
			continue
		}
		out = append(out, architecture.DivergentIssue{Topic: topic, CapabilityView: c.divergent[topic]})
	}
	return out
}

func compromises(disputed map[string]int, finalRound int) []string {
	if len(disputed) == 0 {
		return nil
	}
	out := make([]string, 0, len(disputed))
	for topic, since := range disputed {
		out = append(out, fmt.Sprintf("%s: disputed from round %d, settled by round %d", topic, since, finalRound))
	}
	slices.Sort(out)
	return out
}

func topics(issues []architecture.DivergentIssue) []string {
	out := make([]string, 0, len(issues))
	for _, d := range issues {
		out = append(out, d.Topic)
	}
	return out
}

func normalizeTopic(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
