package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation graph service.
// Metrics are organized by subsystem: pages, papers, references, sources,
// publishers and checkpoints.
type Metrics struct {
	// PagesProcessed counts catalog pages whose cohort completed.
	PagesProcessed prometheus.Counter

	// PagesFailed counts catalog page fetches that failed.
	PagesFailed prometheus.Counter

	// SeedsDispatched counts seeds dispatched into cohorts.
	SeedsDispatched prometheus.Counter

	// CohortDuration observes the wall time of one cohort in seconds.
	CohortDuration prometheus.Histogram

	// PapersResolved counts records inserted into the dataset.
	PapersResolved prometheus.Counter

	// PapersSkipped counts resolutions that stopped early, labeled by reason
	// (exists, race, not_found).
	PapersSkipped *prometheus.CounterVec

	// MatchesRejected counts candidates that failed the similarity check, labeled by stage.
	MatchesRejected *prometheus.CounterVec

	// ReferencesResolved counts accepted references, labeled by entry kind.
	ReferencesResolved *prometheus.CounterVec

	// ReferencesUnresolved counts dropped references, labeled by entry kind.
	ReferencesUnresolved *prometheus.CounterVec

	// ResolutionErrors counts collaborator errors absorbed by the resolver,
	// labeled by stage and error type.
	ResolutionErrors *prometheus.CounterVec

	// UnknownPublishers counts papers whose publisher has no extractor.
	UnknownPublishers *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to external APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts 429 responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// CheckpointsTotal counts snapshot writes, labeled by writer and outcome.
	CheckpointsTotal *prometheus.CounterVec

	// CheckpointDuration observes snapshot write duration in seconds, labeled by writer.
	CheckpointDuration *prometheus.HistogramVec

	// DatasetPapers is the number of records in the dataset.
	DatasetPapers prometheus.Gauge

	// DatasetReferences is the number of accepted references in the dataset.
	DatasetReferences prometheus.Gauge

	// LastPage is the last catalog page whose cohort completed.
	LastPage prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered with reg.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Pages
		PagesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Total number of catalog pages processed",
		}),
		PagesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "Total number of catalog page fetches that failed",
		}),
		SeedsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeds_dispatched_total",
			Help:      "Total number of seeds dispatched into cohorts",
		}),
		CohortDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cohort_duration_seconds",
			Help:      "Duration of one page cohort in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Papers
		PapersResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_resolved_total",
			Help:      "Total number of papers added to the dataset",
		}),
		PapersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of resolutions that stopped before inserting, by reason",
		}, []string{"reason"}),
		MatchesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_rejected_total",
			Help:      "Total number of candidates rejected by the title matcher, by stage",
		}, []string{"stage"}),

		// References
		ReferencesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_resolved_total",
			Help:      "Total number of references accepted, by entry kind",
		}, []string{"kind"}),
		ReferencesUnresolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_unresolved_total",
			Help:      "Total number of references dropped, by entry kind",
		}, []string{"kind"}),
		ResolutionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_errors_total",
			Help:      "Total number of collaborator errors absorbed during resolution",
		}, []string{"stage", "error_type"}),
		UnknownPublishers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_publishers_total",
			Help:      "Total number of papers whose publisher has no extractor",
		}, []string{"publisher"}),

		// Sources
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to external APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to external APIs",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to external APIs in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from external APIs",
		}, []string{"source"}),

		// Checkpoints
		CheckpointsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Total number of snapshot writes, by writer and outcome",
		}, []string{"writer", "outcome"}),
		CheckpointDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Duration of snapshot writes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"writer"}),

		// Dataset
		DatasetPapers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_papers",
			Help:      "Number of papers in the dataset",
		}),
		DatasetReferences: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_references",
			Help:      "Number of references accepted into the dataset",
		}),
		LastPage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_page",
			Help:      "Last catalog page whose cohort completed",
		}),
	}
}

// RecordPageProcessed records a completed cohort.
func (m *Metrics) RecordPageProcessed(page, seeds int, durationSeconds float64) {
	m.PagesProcessed.Inc()
	m.SeedsDispatched.Add(float64(seeds))
	m.CohortDuration.Observe(durationSeconds)
	m.LastPage.Set(float64(page))
}

// RecordPageFailed records a failed page fetch.
func (m *Metrics) RecordPageFailed() {
	m.PagesFailed.Inc()
}

// RecordPaperResolved records a record inserted into the dataset.
func (m *Metrics) RecordPaperResolved() {
	m.PapersResolved.Inc()
}

// RecordPaperSkipped records a resolution that stopped before inserting.
func (m *Metrics) RecordPaperSkipped(reason string) {
	m.PapersSkipped.WithLabelValues(reason).Inc()
}

// RecordMatchRejected records a candidate rejected by the title matcher.
func (m *Metrics) RecordMatchRejected(stage string) {
	m.MatchesRejected.WithLabelValues(stage).Inc()
}

// RecordReferenceResolved records an accepted reference.
func (m *Metrics) RecordReferenceResolved(kind string) {
	m.ReferencesResolved.WithLabelValues(kind).Inc()
}

// RecordReferenceUnresolved records a dropped reference.
func (m *Metrics) RecordReferenceUnresolved(kind string) {
	m.ReferencesUnresolved.WithLabelValues(kind).Inc()
}

// RecordResolutionError records a collaborator error absorbed by the resolver.
func (m *Metrics) RecordResolutionError(stage, errorType string) {
	m.ResolutionErrors.WithLabelValues(stage, errorType).Inc()
}

// RecordUnknownPublisher records a paper whose publisher has no extractor.
func (m *Metrics) RecordUnknownPublisher(publisher string) {
	m.UnknownPublishers.WithLabelValues(publisher).Inc()
}

// RecordSourceRequest records a request to an external API.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an external API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordCheckpoint records a snapshot write by writer.
func (m *Metrics) RecordCheckpoint(writer string, durationSeconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.CheckpointsTotal.WithLabelValues(writer, outcome).Inc()
	m.CheckpointDuration.WithLabelValues(writer).Observe(durationSeconds)
}

// SetDatasetStats updates the dataset gauges.
func (m *Metrics) SetDatasetStats(papers, references int64) {
	m.DatasetPapers.Set(float64(papers))
	m.DatasetReferences.Set(float64(references))
}

// ObserveRequest records one HTTP attempt. It satisfies the request observer
// hook of the source HTTP clients.
func (m *Metrics) ObserveRequest(source, endpoint string, status int, duration time.Duration, err error) {
	m.RecordSourceRequest(source, endpoint, duration.Seconds())

	switch {
	case err != nil:
		errorType := "network"
		if errors.Is(err, context.DeadlineExceeded) {
			errorType = "timeout"
		} else if errors.Is(err, context.Canceled) {
			errorType = "canceled"
		}
		m.RecordSourceRequestFailed(source, endpoint, errorType)
	case status == 429:
		m.RecordSourceRateLimited(source)
		m.RecordSourceRequestFailed(source, endpoint, "rate_limited")
	case status >= 400:
		m.RecordSourceRequestFailed(source, endpoint, "http_"+strconv.Itoa(status))
	}
}
