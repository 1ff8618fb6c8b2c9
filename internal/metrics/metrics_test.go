package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.transitions, "transitions counter should be initialized")
	assert.NotNil(t, collector.outboxDelivered, "outboxDelivered counter should be initialized")
	assert.NotNil(t, collector.deliveryLatency, "deliveryLatency histogram should be initialized")
	assert.NotNil(t, collector.wsClients, "wsClients gauge should be initialized")
}

func TestRecordTransition(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.RecordTransition("application", "hired")
	collector.RecordTransition("application", "hired")
	collector.RecordTransition("job", "completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.transitions.WithLabelValues("application", "hired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.transitions.WithLabelValues("job", "completed")))
}

func TestOutboxCounters(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	latencies := []float64{0.001, 0.01, 0.1, 1.0, 5.0}
	for _, latency := range latencies {
		assert.NotPanics(t, func() {
			collector.RecordDelivered(latency)
		}, "RecordDelivered should not panic with latency %f", latency)
	}
	collector.RecordDeliveryFailed()
	collector.RecordDead()
	collector.SetOutboxPending(7)

	assert.Equal(t, 5.0, testutil.ToFloat64(collector.outboxDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.outboxFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.outboxDead))
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.outboxPending))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.RecordTransition("job", "open")
		collector.RecordTransitionError("job", "forbidden")
		collector.RecordEffect("notify")
		collector.RecordDelivered(0.5)
		collector.RecordDeliveryFailed()
		collector.RecordDead()
		collector.SetOutboxPending(1)
		collector.SetWSClients(2)
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollector(reg)
	collector.SetWSClients(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marketplace_ws_clients 3"))
}
