// Package observability provides structured logging and metrics for the
// literature sync pipeline.
//
// Logging uses zerolog. Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stderr",
//	})
//	logger.Info().Str("run_id", runID).Msg("run started")
//
// Context helpers attach the common field sets used across the pipeline:
//
//	logger = observability.WithRunContext(logger, runID, tier)
//	logger = observability.WithRecordContext(logger, pmid, dedupeKey)
//
// Metrics are Prometheus counters and histograms registered via promauto.
// Construct one Metrics per process:
//
//	metrics := observability.NewMetrics("litsync")
//	metrics.RecordsCreated.Inc()
package observability
