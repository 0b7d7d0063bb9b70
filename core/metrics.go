package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Assessment metrics
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csp_risk_assessments_total",
			Help: "Total number of completed risk assessments by entry point and risk level",
		},
		[]string{"entry_point", "risk_level"},
	)

	AssessmentScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "csp_risk_assessment_score",
			Help:    "Distribution of overall risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	AssessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csp_risk_assessment_duration_seconds",
			Help:    "Time spent computing an assessment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entry_point"},
	)

	// Violation metrics
	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csp_risk_violations_total",
			Help: "Total number of compliance violations emitted",
		},
		[]string{"framework", "severity"},
	)

	// Custom pattern metrics
	PatternBenchmarkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csp_risk_pattern_benchmark_duration_seconds",
			Help:    "Per-execution time of custom patterns during benchmarks",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"pattern_id"},
	)

	PatternErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csp_risk_pattern_errors_total",
			Help: "Custom pattern failures during benchmarks",
		},
		[]string{"pattern_id"},
	)

	CustomPatternsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csp_risk_custom_patterns",
			Help: "Number of registered custom patterns per registry",
		},
		[]string{"registry"},
	)

	// Event metrics
	SubscriberErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csp_risk_event_subscriber_errors_total",
			Help: "Assessment-completed subscribers that failed or panicked",
		},
	)
)

// RecordAssessment records one completed assessment
func RecordAssessment(entryPoint string, score int, level RiskLevel, duration time.Duration) {
	AssessmentsTotal.WithLabelValues(entryPoint, string(level)).Inc()
	AssessmentScore.Observe(float64(score))
	AssessmentDuration.WithLabelValues(entryPoint).Observe(duration.Seconds())
}

// RecordViolation records one emitted violation
func RecordViolation(v ComplianceViolation) {
	ViolationsTotal.WithLabelValues(string(v.Framework), string(v.Severity)).Inc()
}

// RecordPatternExecution records one benchmark execution of a pattern
func RecordPatternExecution(patternID string, duration time.Duration) {
	PatternBenchmarkDuration.WithLabelValues(patternID).Observe(duration.Seconds())
}

// RecordPatternError records a pattern failure
func RecordPatternError(patternID string) {
	PatternErrors.WithLabelValues(patternID).Inc()
}
