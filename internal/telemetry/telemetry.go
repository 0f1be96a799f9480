// Package telemetry provides OpenTelemetry instrumentation for the
// intake service. It exports Prometheus metrics and provides tracing
// capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "intake"

// Metrics holds all intake Prometheus metrics.
type Metrics struct {
	// Submission pipeline metrics
	SubmissionsProcessed *prometheus.CounterVec
	SubmissionsFailed    *prometheus.CounterVec
	PipelineDuration     prometheus.Histogram

	// Enrichment metrics
	EnrichmentOutcome *prometheus.CounterVec
	MLFallback        *prometheus.CounterVec

	// Dedup metrics
	DedupTopScore  prometheus.Histogram
	DedupCandidate prometheus.Histogram
	AutoMerged     prometheus.Counter
	AutoFlagged    *prometheus.CounterVec

	// Workflow metrics
	Transitions        *prometheus.CounterVec
	TransitionRejected prometheus.Counter

	// Reclassify job metrics
	ReclassifyScanned prometheus.Counter
	ReclassifyUpdated prometheus.Counter
}

// Provider wraps telemetry providers.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics.
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initPipelineMetrics(m)
	initEnrichmentMetrics(m)
	initDedupMetrics(m)
	initWorkflowMetrics(m)
	initReclassifyMetrics(m)
	return m
}

func initPipelineMetrics(m *Metrics) {
	m.SubmissionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_processed_total",
		Help: "Total incident submissions that completed the pipeline",
	}, []string{"status"})

	m.SubmissionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_failed_total",
		Help: "Total incident submissions rejected before the pipeline ran",
	}, []string{"reason"})

	m.PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_pipeline_duration_seconds",
		Help:    "End-to-end enrichment pipeline duration per submission",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 35, 60},
	})
}

func initEnrichmentMetrics(m *Metrics) {
	m.EnrichmentOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_enrichment_outcome_total",
		Help: "Enrichment outcomes (succeeded, failed)",
	}, []string{"outcome"})

	m.MLFallback = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_ml_fallback_total",
		Help: "Heuristic fallbacks per ML capability (classify, toxicity, risk, similarity)",
	}, []string{"capability"})
}

func initDedupMetrics(m *Metrics) {
	m.DedupTopScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_dedup_top_score",
		Help:    "Best duplicate candidate score per submission",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.DedupCandidate = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_dedup_candidates",
		Help:    "Candidates retrieved per submission",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
	})

	m.AutoMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_auto_merged_total",
		Help: "Submissions auto-merged as high-confidence duplicates",
	})

	m.AutoFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_auto_flagged_total",
		Help: "Submissions auto-flagged for review, by trigger (toxicity, risk)",
	}, []string{"trigger"})
}

func initWorkflowMetrics(m *Metrics) {
	m.Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_workflow_transitions_total",
		Help: "Accepted workflow transitions, by target status",
	}, []string{"to"})

	m.TransitionRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_workflow_transitions_rejected_total",
		Help: "Workflow transitions rejected as invalid",
	})
}

func initReclassifyMetrics(m *Metrics) {
	m.ReclassifyScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_reclassify_scanned_total",
		Help: "Incidents examined by the reclassify job",
	})

	m.ReclassifyUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_reclassify_updated_total",
		Help: "Incidents whose category was updated by the reclassify job",
	})
}

// RecordSubmission records a completed pipeline run and its resulting
// incident status.
func (p *Provider) RecordSubmission(ctx context.Context, status string, duration time.Duration) {
	p.Metrics.SubmissionsProcessed.WithLabelValues(status).Inc()
	p.Metrics.PipelineDuration.Observe(duration.Seconds())
}

// RecordSubmissionFailure records a submission rejected before the
// pipeline ran.
func (p *Provider) RecordSubmissionFailure(ctx context.Context, reason string) {
	p.Metrics.SubmissionsFailed.WithLabelValues(reason).Inc()
}

// RecordEnrichment records an enrichment outcome.
func (p *Provider) RecordEnrichment(ctx context.Context, outcome string) {
	p.Metrics.EnrichmentOutcome.WithLabelValues(outcome).Inc()
}

// RecordMLFallback records a heuristic fallback for one ML capability.
func (p *Provider) RecordMLFallback(ctx context.Context, capability string) {
	p.Metrics.MLFallback.WithLabelValues(capability).Inc()
}

// RecordDedup records duplicate scoring stats for a submission.
func (p *Provider) RecordDedup(ctx context.Context, candidates int, topScore float64) {
	p.Metrics.DedupCandidate.Observe(float64(candidates))
	if candidates > 0 {
		p.Metrics.DedupTopScore.Observe(topScore)
	}
}

// RecordAutoMerge records an auto-merged duplicate.
func (p *Provider) RecordAutoMerge(ctx context.Context) {
	p.Metrics.AutoMerged.Inc()
}

// RecordAutoFlag records an auto-flagged submission with its trigger.
func (p *Provider) RecordAutoFlag(ctx context.Context, trigger string) {
	p.Metrics.AutoFlagged.WithLabelValues(trigger).Inc()
}

// RecordTransition records an accepted workflow transition.
func (p *Provider) RecordTransition(ctx context.Context, to string) {
	p.Metrics.Transitions.WithLabelValues(to).Inc()
}

// RecordTransitionRejected records a rejected workflow transition.
func (p *Provider) RecordTransitionRejected(ctx context.Context) {
	p.Metrics.TransitionRejected.Inc()
}

// RecordReclassify records one reclassify job scan and whether it
// produced an update.
func (p *Provider) RecordReclassify(ctx context.Context, updated bool) {
	p.Metrics.ReclassifyScanned.Inc()
	if updated {
		p.Metrics.ReclassifyUpdated.Inc()
	}
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
