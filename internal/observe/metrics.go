// Package observe provides the service's observability primitives:
// OpenTelemetry metrics, tracing helpers and the HTTP middleware that ties
// them to the slog access log.
//
// Metrics go through the OpenTelemetry Metrics API and are scraped via the
// Prometheus bridge set up by [InitProvider]. Tests should use [NewMetrics]
// with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kdimtricp/listenlog"

// Metrics holds all metric instruments for the service. Safe for concurrent
// use.
type Metrics struct {
	// Ticks counts decoded inference ticks. Attribute: label.
	Ticks metric.Int64Counter

	// DecodeErrors counts ticks rejected before reaching the log. Attribute:
	// reason.
	DecodeErrors metric.Int64Counter

	// ModelLoads counts model load attempts. Attribute: status.
	ModelLoads metric.Int64Counter

	// ModelLoadDuration tracks metadata fetch latency.
	ModelLoadDuration metric.Float64Histogram

	// LogExports counts CSV downloads.
	LogExports metric.Int64Counter

	// ActiveSessions tracks live browser sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveStreams tracks open websocket tick streams.
	ActiveStreams metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency. Attributes: method, route.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Ticks, err = m.Int64Counter("listenlog.ticks",
		metric.WithDescription("Decoded inference ticks by winning label."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("listenlog.decode.errors",
		metric.WithDescription("Ticks rejected before decoding, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoads, err = m.Int64Counter("listenlog.model.loads",
		metric.WithDescription("Model load attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("listenlog.model.load.duration",
		metric.WithDescription("Latency of fetching model metadata."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LogExports, err = m.Int64Counter("listenlog.log.exports",
		metric.WithDescription("Detection log CSV exports."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("listenlog.active_sessions",
		metric.WithDescription("Number of live listening sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("listenlog.active_streams",
		metric.WithDescription("Number of open websocket tick streams."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("listenlog.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global
// meter provider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordTick(ctx context.Context, label string) {
	m.Ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

func (m *Metrics) RecordDecodeError(ctx context.Context, reason string) {
	m.DecodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordModelLoad(ctx context.Context, status string, seconds float64) {
	m.ModelLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.ModelLoadDuration.Record(ctx, seconds)
}
