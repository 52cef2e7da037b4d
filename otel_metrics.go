package indicatorpipe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nulllvoid/indicatorpipe"

// OtelMetrics reports pipeline activity through an OpenTelemetry meter.
type OtelMetrics struct {
	stageDuration metric.Float64Histogram
	fetchDuration metric.Float64Histogram
	fetches       metric.Int64Counter
	rows          metric.Int64Counter
	errors        metric.Int64Counter
}

// NewOtelMetrics builds the instruments on meter, or on the global meter
// provider when meter is nil.
func NewOtelMetrics(meter metric.Meter) (*OtelMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	m := &OtelMetrics{}
	var err error

	m.stageDuration, err = meter.Float64Histogram(
		"indicatorpipe.stage.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of a pipeline stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage.duration histogram: %w", err)
	}

	m.fetchDuration, err = meter.Float64Histogram(
		"indicatorpipe.fetch.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of a single indicator fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch.duration histogram: %w", err)
	}

	m.fetches, err = meter.Int64Counter(
		"indicatorpipe.fetch.count",
		metric.WithDescription("Indicator fetches by source and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch.count counter: %w", err)
	}

	m.rows, err = meter.Int64Counter(
		"indicatorpipe.rows",
		metric.WithDescription("Rows produced by a pipeline run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows counter: %w", err)
	}

	m.errors, err = meter.Int64Counter(
		"indicatorpipe.errors",
		metric.WithDescription("Stage errors by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	return m, nil
}

func (m *OtelMetrics) RecordStageDuration(pipeline, stage string, duration time.Duration) {
	m.stageDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("stage", stage),
	))
}

func (m *OtelMetrics) RecordFetch(source string, status FetchStatus, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", string(status)),
	)
	m.fetches.Add(context.Background(), 1, attrs)
	m.fetchDuration.Record(context.Background(), duration.Seconds(), attrs)
}

func (m *OtelMetrics) RecordRowCount(pipeline string, count int) {
	m.rows.Add(context.Background(), int64(count), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
	))
}

func (m *OtelMetrics) RecordError(pipeline, stage, errorType string) {
	m.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("stage", stage),
		attribute.String("error_type", errorType),
	))
}
