// Package metrics exposes Prometheus metrics for the planning pipeline and
// its HTTP surface.
package metrics

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	labelSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualplan",
			Subsystem: "pipeline",
			Name:      "executions_total",
			Help:      "Total pipeline executions by terminal outcome",
		},
		[]string{"outcome"},
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dualplan",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	negotiationRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dualplan",
			Subsystem: "pipeline",
			Name:      "negotiation_rounds",
			Help:      "Negotiation rounds used per execution",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	replanAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dualplan",
			Subsystem: "pipeline",
			Name:      "replan_attempts",
			Help:      "Repair attempts used per validated execution",
			Buckets:   []float64{0, 1, 2, 3},
		},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualplan",
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Default values substituted for failed or unparseable AI output, by component",
		},
		[]string{"component"},
	)

	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualplan",
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Provider attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	intelligenceCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualplan",
			Subsystem: "intelligence",
			Name:      "cache_total",
			Help:      "Intelligence snapshot cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)
)

// RecordExecution counts a terminal result (complete, escalation, error)
func RecordExecution(outcome string) {
	pipelineExecutionsTotal.WithLabelValues(sanitizeLabel(outcome, "unknown")).Inc()
}

// ObserveStage records how long a stage took
func ObserveStage(stage string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(sanitizeLabel(stage, "unknown")).Observe(d.Seconds())
}

func ObserveNegotiationRounds(rounds int) {
	negotiationRounds.Observe(float64(rounds))
}

func ObserveReplanAttempts(attempts int) {
	replanAttempts.Observe(float64(attempts))
}

// RecordFallback counts a substituted default
func RecordFallback(component string) {
	fallbacksTotal.WithLabelValues(sanitizeLabel(component, "unknown")).Inc()
}

// RecordAIRequest matches ai.RequestRecorder
func RecordAIRequest(provider, result string) {
	aiRequestsTotal.WithLabelValues(
		sanitizeLabel(provider, "unknown"),
		sanitizeLabel(result, "unknown"),
	).Inc()
}

func RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	intelligenceCacheTotal.WithLabelValues(sanitizeLabel(layer, "unknown"), result).Inc()
}

func sanitizeLabel(raw, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return fallback
	}
	s = labelSanitizer.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallback
	}
	if len(s) > 63 {
		s = s[:63]
	}
	return s
}
