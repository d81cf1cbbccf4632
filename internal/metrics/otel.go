package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Known label values, created up front so they exist when OTel is registered.
var (
	runStatuses = []string{"done", "budget_exhausted", "failed", "cancelled"}
	roleNames   = []string{"product_owner", "scrum_lead", "peer_reviewer"}
)

// RegisterOTel exports the collector's counters and gauges as observable
// OpenTelemetry instruments on meter. Histograms stay Prometheus-only.
func (c *MetricsCollector) RegisterOTel(meter metric.Meter) (metric.Registration, error) {
	if c == Collector {
		for _, s := range runStatuses {
			RunsTotal(s)
		}
		for _, r := range roleNames {
			RolesTotal(r)
		}
	}

	counters := make(map[string]metric.Int64ObservableCounter)
	gauges := make(map[string]metric.Int64ObservableGauge)
	var observables []metric.Observable

	for _, ctr := range c.Counters() {
		if _, ok := counters[ctr.name]; ok {
			continue
		}
		inst, err := meter.Int64ObservableCounter(ctr.name, metric.WithDescription(ctr.help))
		if err != nil {
			return nil, fmt.Errorf("otel counter %s: %w", ctr.name, err)
		}
		counters[ctr.name] = inst
		observables = append(observables, inst)
	}
	for _, g := range c.Gauges() {
		if _, ok := gauges[g.name]; ok {
			continue
		}
		inst, err := meter.Int64ObservableGauge(g.name, metric.WithDescription(g.help))
		if err != nil {
			return nil, fmt.Errorf("otel gauge %s: %w", g.name, err)
		}
		gauges[g.name] = inst
		observables = append(observables, inst)
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for _, ctr := range c.Counters() {
			if inst, ok := counters[ctr.name]; ok {
				o.ObserveInt64(inst, ctr.Value(), metric.WithAttributes(parseLabels(ctr.labels)...))
			}
		}
		for _, g := range c.Gauges() {
			if inst, ok := gauges[g.name]; ok {
				o.ObserveInt64(inst, g.Value(), metric.WithAttributes(parseLabels(g.labels)...))
			}
		}
		return nil
	}, observables...)
}

// parseLabels turns `a="x",b="y"` into attributes.
func parseLabels(labels string) []attribute.KeyValue {
	if labels == "" {
		return nil
	}
	var out []attribute.KeyValue
	for _, part := range strings.Split(labels, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if uq, err := strconv.Unquote(v); err == nil {
			v = uq
		}
		out = append(out, attribute.String(k, v))
	}
	return out
}
