package usecase

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

func TestMetricsObserver_SlowEventsFromAggregator(t *testing.T) {
	var buf bytes.Buffer
	sink := newRecordingSink()
	observer := NewMetricsObserver(sink, logger.NewWithWriter(&buf, "debug", "json"))

	clk := clocktesting.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	agg := service.NewMetricAggregator(service.DefaultAggregatorConfig(), clk, observer)

	agg.RecordRequest(valueobject.NewEndpointKey("GET", "/api/contacts/42"), 1500*time.Millisecond, 200)
	agg.RecordRequest(valueobject.NewEndpointKey("GET", "/api/contacts"), 20*time.Millisecond, 200)
	agg.RecordOperation("SELECT * FROM users WHERE email = 'alice@example.com'", 250*time.Millisecond, nil)
	agg.RecordOperation("SELECT 1", 5*time.Millisecond, nil)

	assert.Equal(t, 1, sink.count("slow_requests_total"))
	assert.Equal(t, 1, sink.count("slow_operations_total"))

	out := buf.String()
	assert.Contains(t, out, "Slow request detected")
	assert.Contains(t, out, `"route":"/api/contacts/:id"`)
	assert.Contains(t, out, "Slow operation detected")
	assert.NotContains(t, out, "alice@example.com")
}

func TestMetricsObserver_NilSink(t *testing.T) {
	observer := NewMetricsObserver(nil, logger.Nop())
	require.NotPanics(t, func() {
		observer.SlowRequest(valueobject.NewEndpointKey("POST", "/alerts"), 2000, 500)
	})
}
