package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// promauto registers metrics with the default registry, so each test uses a
// unique namespace to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("litsync_test_new")

	assert.NotNil(t, m.RunsStarted)
	assert.NotNil(t, m.RunsCompleted)
	assert.NotNil(t, m.RunsFailed)
	assert.NotNil(t, m.RunDuration)
	assert.NotNil(t, m.RecordsFetched)
	assert.NotNil(t, m.RecordsCreated)
	assert.NotNil(t, m.RecordsUpdated)
	assert.NotNil(t, m.RecordsSkipped)
	assert.NotNil(t, m.RecordsFailed)
	assert.NotNil(t, m.SourceRequestDuration)
	assert.NotNil(t, m.EnrichmentCalls)
	assert.NotNil(t, m.EnrichmentEscalations)
	assert.NotNil(t, m.EnrichmentFailures)
	assert.NotNil(t, m.SyncRequests)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("litsync_test_counters")

	m.RecordsCreated.Inc()
	m.RecordsCreated.Inc()
	m.RecordsUpdated.Inc()
	m.EnrichmentEscalations.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RecordsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordsUpdated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EnrichmentEscalations))
}

func TestMetricsLabeledCounters(t *testing.T) {
	m := NewMetrics("litsync_test_labeled")

	m.EnrichmentCalls.WithLabelValues("fast").Inc()
	m.EnrichmentCalls.WithLabelValues("fast").Inc()
	m.EnrichmentCalls.WithLabelValues("strong").Inc()
	m.SyncRequests.WithLabelValues("create", "ok").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EnrichmentCalls.WithLabelValues("fast")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EnrichmentCalls.WithLabelValues("strong")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SyncRequests.WithLabelValues("create", "ok")))
}
