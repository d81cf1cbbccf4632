package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHandler_RendersSortedPrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("rea_b_total", "B", "").Add(2)
	c.Counter("rea_a_total", "A", `status="done"`).Inc()
	c.Counter("rea_a_total", "A", `status="failed"`).Add(3)
	c.Gauge("rea_active_runs", "Active", "").Set(4)
	h := c.Histogram("rea_latency_seconds", "Latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, "rea_uptime_seconds")
	assert.Contains(t, body, "# TYPE rea_a_total counter\nrea_a_total{status=\"done\"} 1\nrea_a_total{status=\"failed\"} 3\n")
	assert.Contains(t, body, "rea_b_total 2\n")
	assert.Contains(t, body, "rea_active_runs 4\n")
	assert.Contains(t, body, "rea_latency_seconds_bucket{le=\"1\"} 1\n")
	assert.Contains(t, body, "rea_latency_seconds_bucket{le=\"5\"} 2\n")
	assert.Contains(t, body, "rea_latency_seconds_count 2\n")
	assert.Less(t, strings.Index(body, "rea_a_total"), strings.Index(body, "rea_b_total"))
}

func TestHandler_LabeledHistogramBuckets(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("rea_step_seconds", "Step", `role="scrum_lead"`, []float64{2})
	h.Observe(1)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, "rea_step_seconds_bucket{role=\"scrum_lead\",le=\"2\"} 1\n")
	assert.Contains(t, body, "rea_step_seconds_count{role=\"scrum_lead\"} 1\n")
	assert.NotContains(t, body, "{_bucket")
}

func TestCounterReuse(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("x", "", "").Inc()
	c.Counter("x", "", "").Inc()
	assert.Equal(t, int64(2), c.Counter("x", "", "").Value())
}

func TestRegisterOTel_MirrorsCounters(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("rea_runs_total", "Runs", `status="done"`).Add(5)
	c.Gauge("rea_active_runs", "Active", "").Set(2)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	reg, err := c.RegisterOTel(provider.Meter("rea/test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Unregister() })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	runs, ok := byName["rea_runs_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(5), runs.DataPoints[0].Value)
	status, _ := runs.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, "done", status.AsString())

	active, ok := byName["rea_active_runs"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), active.DataPoints[0].Value)
}

func TestParseLabels(t *testing.T) {
	attrs := parseLabels(`status="done",role="scrum_lead"`)
	require.Len(t, attrs, 2)
	assert.Equal(t, "status", string(attrs[0].Key))
	assert.Equal(t, "scrum_lead", attrs[1].Value.AsString())
	assert.Nil(t, parseLabels(""))
}
