package hierarchy

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("inheritors.hierarchy")
	meter  = otel.Meter("inheritors.hierarchy")
)

var (
	searchLatency metric.Float64Histogram
	searchTotal   metric.Int64Counter
	indexLookups  metric.Int64Counter
	emittedTotal  metric.Int64Counter
	droppedTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		if searchLatency, err = meter.Float64Histogram(
			"inheritors_search_duration_seconds",
			metric.WithDescription("Duration of inheritor searches"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}
		if searchTotal, err = meter.Int64Counter(
			"inheritors_search_total",
			metric.WithDescription("Inheritor searches by outcome"),
		); err != nil {
			metricsErr = err
			return
		}
		if indexLookups, err = meter.Int64Counter(
			"inheritors_index_lookups_total",
			metric.WithDescription("Direct-inheritor index lookups"),
		); err != nil {
			metricsErr = err
			return
		}
		if emittedTotal, err = meter.Int64Counter(
			"inheritors_emitted_total",
			metric.WithDescription("Classes emitted by inheritor searches"),
		); err != nil {
			metricsErr = err
			return
		}
		droppedTotal, metricsErr = meter.Int64Counter(
			"inheritors_dropped_total",
			metric.WithDescription("Index candidates rejected by verification"),
		)
	})
	return metricsErr
}

// searchStats counts what one search invocation did.
type searchStats struct {
	lookups    int
	emitted    int
	dropped    int
	duplicates int
}

func recordSearchMetrics(ctx context.Context, outcome string, duration time.Duration, st searchStats) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchTotal.Add(ctx, 1, attrs)
	indexLookups.Add(ctx, int64(st.lookups))
	emittedTotal.Add(ctx, int64(st.emitted))
	droppedTotal.Add(ctx, int64(st.dropped))
}

func startSearchSpan(ctx context.Context, p Parameters) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Search",
		trace.WithAttributes(
			attribute.String("hierarchy.root", p.Root().DisplayName()),
			attribute.String("hierarchy.scope", p.Scope().String()),
			attribute.Bool("hierarchy.check_deep", p.CheckDeep()),
			attribute.Bool("hierarchy.check_inheritance", p.CheckInheritance()),
		),
	)
}

func setSearchSpanResult(span trace.Span, outcome string, st searchStats) {
	span.SetAttributes(
		attribute.String("hierarchy.outcome", outcome),
		attribute.Int("hierarchy.lookups", st.lookups),
		attribute.Int("hierarchy.emitted", st.emitted),
		attribute.Int("hierarchy.dropped", st.dropped),
	)
}
