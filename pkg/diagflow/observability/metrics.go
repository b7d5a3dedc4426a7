package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records diagflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRender records a render request with its duration and error status.
	RecordRender(ctx context.Context, engine string, duration time.Duration, err error)

	// RecordStaleDrop records a render response discarded by the staleness guard.
	RecordStaleDrop(ctx context.Context, engine string)

	// RecordSessionSave records a session persistence operation.
	RecordSessionSave(ctx context.Context, sizeBytes int64, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	renderRequests metric.Int64Counter
	renderLatency  metric.Float64Histogram
	renderErrors   metric.Int64Counter
	staleDrops     metric.Int64Counter
	sessionSaves   metric.Int64Counter
	sessionSize    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("diagflow")

	renderRequests, err := meter.Int64Counter("diagflow.render.requests",
		metric.WithDescription("Number of render requests issued"),
	)
	if err != nil {
		return nil, err
	}

	renderLatency, err := meter.Float64Histogram("diagflow.render.latency_ms",
		metric.WithDescription("Render request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	renderErrors, err := meter.Int64Counter("diagflow.render.errors",
		metric.WithDescription("Number of failed render requests"),
	)
	if err != nil {
		return nil, err
	}

	staleDrops, err := meter.Int64Counter("diagflow.render.stale_drops",
		metric.WithDescription("Number of render responses discarded as stale"),
	)
	if err != nil {
		return nil, err
	}

	sessionSaves, err := meter.Int64Counter("diagflow.session.saves",
		metric.WithDescription("Number of session save operations"),
	)
	if err != nil {
		return nil, err
	}

	sessionSize, err := meter.Int64Histogram("diagflow.session.size_bytes",
		metric.WithDescription("Persisted session size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		renderRequests: renderRequests,
		renderLatency:  renderLatency,
		renderErrors:   renderErrors,
		staleDrops:     staleDrops,
		sessionSaves:   sessionSaves,
		sessionSize:    sessionSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordRender records a render request.
func (m *otelMetrics) RecordRender(ctx context.Context, engine string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("engine", engine),
	}

	m.renderRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.renderLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.renderErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordStaleDrop records a discarded stale render response.
func (m *otelMetrics) RecordStaleDrop(ctx context.Context, engine string) {
	m.staleDrops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
	))
}

// RecordSessionSave records a session save.
func (m *otelMetrics) RecordSessionSave(ctx context.Context, sizeBytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}
	m.sessionSaves.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.sessionSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))
	}
}
