package core

import (
	"context"
	"strings"
)

// Every relayed event records one counter and one duration histogram named
// after its kind, e.g. relay.created.total and relay.created.duration_ms,
// tagged with event_kind, state and, once delivery ran, outcome.
const (
	metricTotalSuffix    = ".total"
	metricDurationSuffix = ".duration_ms"
)

// NopMetricsRecorder drops every measurement. NewRelay uses it when no
// recorder is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func EventCounterName(kind EventKind) string {
	return eventMetricPrefix(kind) + metricTotalSuffix
}

func EventDurationName(kind EventKind) string {
	return eventMetricPrefix(kind) + metricDurationSuffix
}

func eventMetricPrefix(kind EventKind) string {
	if !kind.Valid() {
		return "relay.unknown"
	}
	return "relay." + string(kind)
}

func eventMetricTags(result Result) map[string]string {
	kind := string(result.Kind)
	if !result.Kind.Valid() {
		kind = "unknown"
	}
	tags := map[string]string{
		"event_kind": kind,
		"state":      string(result.State),
	}
	if result.Outcome.Status != "" {
		tags["outcome"] = string(result.Outcome.Status)
	}
	return tags
}

func (r *Relay) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (r *Relay) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
