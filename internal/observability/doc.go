// Package observability provides logging and metrics support for the
// citation graph service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for pages, papers, references and sources
//   - Context helpers for propagating the run ID and catalog page
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger, closer, err := observability.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	logger.Info().Int("page", 3).Msg("cohort complete")
//
// Add run context to a logger:
//
//	logger = observability.WithRunContext(logger, runID)
//	logger = observability.LoggerFromContext(ctx, logger)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("citegraph")
//
// Record metrics:
//
//	metrics.RecordPaperResolved()
//	metrics.RecordMatchRejected(domain.StageSeed)
//
// *Metrics also implements the request observer hook of the source HTTP
// clients, so per-request counts and latencies come for free once it is
// passed to an adapter constructor.
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - run_id: acquisition run identifier
//   - page: catalog page
//   - paper_id: canonical paper identifier (lower-cased DOI)
//   - title: paper title as searched
//   - source: external API (crossref, arxiv, openalex, ieee, paperswithcode)
//   - component: emitting component
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
