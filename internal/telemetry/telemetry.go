// Package telemetry holds the OpenTelemetry instruments used by feudsurvey.
// Instruments are created from the global meter provider, so they are no-ops
// until a provider is installed.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Scope is the instrumentation scope name.
const Scope = "github.com/thebtf/feudsurvey"

type instruments struct {
	passes         metric.Int64Counter
	merges         metric.Int64Counter
	assistFailures metric.Int64Counter
	assistLatency  metric.Float64Histogram
}

var (
	once sync.Once
	inst instruments
)

func get() *instruments {
	once.Do(func() {
		meter := otel.Meter(Scope)
		inst.passes, _ = meter.Int64Counter("feudsurvey.clustering.passes",
			metric.WithDescription("Clustering passes applied to a board"))
		inst.merges, _ = meter.Int64Counter("feudsurvey.curation.merges",
			metric.WithDescription("Cluster merges performed by the curator"))
		inst.assistFailures, _ = meter.Int64Counter("feudsurvey.assist.failures",
			metric.WithDescription("Assisted clustering attempts that fell back to local clustering"))
		inst.assistLatency, _ = meter.Float64Histogram("feudsurvey.assist.duration",
			metric.WithDescription("Assisted clustering round-trip time"),
			metric.WithUnit("s"))
	})
	return &inst
}

// RecordPass counts a clustering pass by source ("local" or "assisted").
func RecordPass(ctx context.Context, source string) {
	if c := get().passes; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}
}

// RecordMerge counts a completed merge.
func RecordMerge(ctx context.Context) {
	if c := get().merges; c != nil {
		c.Add(ctx, 1)
	}
}

// RecordAssistFailure counts a failed assisted attempt by failure kind.
func RecordAssistFailure(ctx context.Context, kind string) {
	if c := get().assistFailures; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// RecordAssistDuration records how long a provider call took.
func RecordAssistDuration(ctx context.Context, provider string, d time.Duration) {
	if h := get().assistLatency; h != nil {
		h.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
	}
}
