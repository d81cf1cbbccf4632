// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for agent runs. It outputs text/plain in Prometheus exposition
// format and can mirror its values into OpenTelemetry.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	counters   sync.Map // name -> *Counter
	gauges     sync.Map // name -> *Gauge
	histograms sync.Map // name -> *Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// --- Registration helpers ---

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help, labels: labels}
	actual, _ := c.counters.LoadOrStore(key, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := name + "{" + labels + "}"
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help, labels: labels}
	actual, _ := c.gauges.LoadOrStore(key, g)
	return actual.(*Gauge)
}

// Histogram returns or creates a histogram with the given name.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, labels: labels, buckets: hb}
	actual, _ := c.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// --- Prometheus text rendering ---

// Handler returns an http.HandlerFunc that renders metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP rea_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE rea_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "rea_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		helpWritten := make(map[string]bool)
		for _, ctr := range c.Counters() {
			if !helpWritten[ctr.name] {
				fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
				fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
				helpWritten[ctr.name] = true
			}
			if ctr.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", ctr.name, ctr.labels, ctr.Value())
			} else {
				fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
			}
		}

		helpWritten = make(map[string]bool)
		for _, g := range c.Gauges() {
			if !helpWritten[g.name] {
				fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
				fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
				helpWritten[g.name] = true
			}
			if g.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", g.name, g.labels, g.Value())
			} else {
				fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
			}
		}

		helpWritten = make(map[string]bool)
		for _, h := range c.Histograms() {
			h.mu.Lock()
			if !helpWritten[h.name] {
				fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
				fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
				helpWritten[h.name] = true
			}
			labelPrefix := ""
			if h.labels != "" {
				labelPrefix = h.labels + ","
			}
			for _, b := range h.buckets {
				le := fmt.Sprintf("%g", b.le)
				if math.IsInf(b.le, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(&sb, "%s_bucket{%sle=%q} %d\n", h.name, labelPrefix, le, b.count)
			}
			if h.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", h.name+"_count", h.labels, h.count)
				fmt.Fprintf(&sb, "%s{%s} %f\n", h.name+"_sum", h.labels, h.sum)
			} else {
				fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
				fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			}
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

// Counters returns every counter sorted by name and labels.
func (c *MetricsCollector) Counters() []*Counter {
	var out []*Counter
	c.counters.Range(func(_, v any) bool {
		out = append(out, v.(*Counter))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].name+out[i].labels < out[j].name+out[j].labels })
	return out
}

// Gauges returns every gauge sorted by name and labels.
func (c *MetricsCollector) Gauges() []*Gauge {
	var out []*Gauge
	c.gauges.Range(func(_, v any) bool {
		out = append(out, v.(*Gauge))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].name+out[i].labels < out[j].name+out[j].labels })
	return out
}

// Histograms returns every histogram sorted by name and labels.
func (c *MetricsCollector) Histograms() []*Histogram {
	var out []*Histogram
	c.histograms.Range(func(_, v any) bool {
		out = append(out, v.(*Histogram))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].name+out[i].labels < out[j].name+out[j].labels })
	return out
}

// --- Pre-defined metrics used across the application ---

var (
	StepsTotal       = Collector.Counter("rea_steps_total", "Total agent steps executed", "")
	LLMRequestsTotal = Collector.Counter("rea_llm_requests_total", "Total LLM API requests", "")
	LLMErrorsTotal   = Collector.Counter("rea_llm_errors_total", "LLM requests that failed after retries", "")
	PromptTokens     = Collector.Counter("rea_prompt_tokens_total", "Prompt tokens consumed", "")
	CompletionTokens = Collector.Counter("rea_completion_tokens_total", "Completion tokens consumed", "")
	ToolExecutions   = Collector.Counter("rea_tool_executions_total", "Total tool executions", "")
	ToolErrors       = Collector.Counter("rea_tool_errors_total", "Tool executions that returned an error", "")
	UnknownTools     = Collector.Counter("rea_unknown_tool_calls_total", "Calls to tools outside the run's registry view", "")
	ParseErrors      = Collector.Counter("rea_parse_errors_total", "Malformed tool calls", "")
	ApprovalRequests = Collector.Counter("rea_approval_requests_total", "Human approval requests", "")
	PolicyWarnings   = Collector.Counter("rea_policy_warnings_total", "Approval policy warnings", "")
	ActiveRuns       = Collector.Gauge("rea_active_runs", "Runs currently executing", "")

	LLMLatency = Collector.Histogram("rea_llm_latency_seconds", "LLM request latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120})
	ToolLatency = Collector.Histogram("rea_tool_latency_seconds", "Tool execution latency in seconds", "",
		[]float64{0.1, 0.5, 1, 5, 10, 30})
	RunDuration = Collector.Histogram("rea_run_duration_seconds", "Agent run wall time in seconds", "",
		[]float64{1, 5, 15, 30, 60, 120, 300, 600})
)

// RunsTotal returns the finished-runs counter for a status.
func RunsTotal(status string) *Counter {
	return Collector.Counter("rea_runs_total", "Finished agent runs by status", fmt.Sprintf("status=%q", status))
}

// RolesTotal returns the classification counter for a role.
func RolesTotal(role string) *Counter {
	return Collector.Counter("rea_classifications_total", "Tasks routed to each role", fmt.Sprintf("role=%q", role))
}
