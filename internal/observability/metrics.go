package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the sync pipeline, organized
// by stage: runs, source fetches, classification, enrichment, and sync
// writes. All metrics are registered via promauto with the default
// registry.
type Metrics struct {
	// RunsStarted counts pipeline runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts runs that finished without a systemic failure.
	RunsCompleted prometheus.Counter

	// RunsFailed counts runs aborted by a systemic failure.
	RunsFailed prometheus.Counter

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration prometheus.Histogram

	// RecordsFetched counts records retrieved from the literature source.
	RecordsFetched prometheus.Counter

	// RecordsCreated counts records created in the sync target.
	RecordsCreated prometheus.Counter

	// RecordsUpdated counts existing records refreshed in the sync target.
	RecordsUpdated prometheus.Counter

	// RecordsSkipped counts records dropped for per-record data errors.
	RecordsSkipped prometheus.Counter

	// RecordsFailed counts records whose sync write ultimately failed.
	RecordsFailed prometheus.Counter

	// SourceRequestDuration observes upstream request duration in seconds,
	// labeled by endpoint.
	SourceRequestDuration *prometheus.HistogramVec

	// EnrichmentCalls counts AI annotation calls, labeled by model tier
	// (fast, strong).
	EnrichmentCalls *prometheus.CounterVec

	// EnrichmentEscalations counts records escalated to the strong model.
	EnrichmentEscalations prometheus.Counter

	// EnrichmentFailures counts enrichment failures, labeled by reason
	// (parse, quota, auth, rate_limit, other).
	EnrichmentFailures *prometheus.CounterVec

	// SyncRequests counts sync-target write operations, labeled by
	// operation (create, update) and outcome (ok, failed).
	SyncRequests *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered under
// the given namespace prefix.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of pipeline runs completed",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of pipeline runs aborted by systemic failure",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RecordsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of records retrieved from the literature source",
		}),
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Total number of records created in the sync target",
		}),
		RecordsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_updated_total",
			Help:      "Total number of existing records refreshed in the sync target",
		}),
		RecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of records skipped for per-record data errors",
		}),
		RecordsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Total number of records whose sync write failed",
		}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Upstream source request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		EnrichmentCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_calls_total",
			Help:      "Total number of AI annotation calls by model tier",
		}, []string{"tier"}),
		EnrichmentEscalations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_escalations_total",
			Help:      "Total number of records escalated to the strong model",
		}),
		EnrichmentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Total number of enrichment failures by reason",
		}, []string{"reason"}),
		SyncRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_total",
			Help:      "Total number of sync target write operations",
		}, []string{"operation", "outcome"}),
	}
}
