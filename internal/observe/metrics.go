// Package observe provides observability primitives for voxinput:
// OpenTelemetry metrics with a Prometheus exporter bridge and the local
// /metrics HTTP endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxinput metrics.
const meterName = "github.com/voxinput/voxinput"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FramesCaptured counts audio frames delivered by the capture driver.
	FramesCaptured metric.Int64Counter

	// QueueDrops counts frames dropped because the recognition queue was
	// full.
	QueueDrops metric.Int64Counter

	// Utterances counts finalised utterances. Use with attribute:
	//   attribute.String("backend", ...)
	Utterances metric.Int64Counter

	// DecodeErrors counts discarded utterances after decoder failures. Use
	// with attribute: attribute.String("backend", ...)
	DecodeErrors metric.Int64Counter

	// Injections counts text deliveries. Use with attributes:
	//   attribute.String("method", ...), attribute.String("status", ...)
	Injections metric.Int64Counter

	// ReconnectAttempts counts device reconnect attempts. Use with
	// attribute: attribute.String("status", ...)
	ReconnectAttempts metric.Int64Counter

	// DecodeDuration tracks per-chunk decoder latency.
	DecodeDuration metric.Float64Histogram

	// ListeningSessions tracks whether the pipeline is currently
	// listening (0 or 1; kept as an UpDownCounter for start/stop pairing).
	ListeningSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// chunk decode latencies: local decoders answer in milliseconds, a loaded
// vosk-server can take a second or two.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesCaptured, err = m.Int64Counter("voxinput.audio.frames",
		metric.WithDescription("Total audio frames delivered by the capture driver."),
	); err != nil {
		return nil, err
	}
	if met.QueueDrops, err = m.Int64Counter("voxinput.pipeline.queue_drops",
		metric.WithDescription("Frames dropped because the recognition queue was full."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voxinput.recognizer.utterances",
		metric.WithDescription("Finalised utterances by backend."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("voxinput.recognizer.errors",
		metric.WithDescription("Utterances discarded after decoder failures, by backend."),
	); err != nil {
		return nil, err
	}
	if met.Injections, err = m.Int64Counter("voxinput.inject.deliveries",
		metric.WithDescription("Text deliveries by method and status."),
	); err != nil {
		return nil, err
	}
	if met.ReconnectAttempts, err = m.Int64Counter("voxinput.audio.reconnects",
		metric.WithDescription("Device reconnect attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("voxinput.recognizer.decode.duration",
		metric.WithDescription("Per-chunk decoder latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ListeningSessions, err = m.Int64UpDownCounter("voxinput.pipeline.listening",
		metric.WithDescription("Whether the pipeline is currently listening."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordUtterance records a finalised utterance for backend.
func (m *Metrics) RecordUtterance(ctx context.Context, backend string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordDecodeError records a discarded utterance for backend.
func (m *Metrics) RecordDecodeError(ctx context.Context, backend string) {
	m.DecodeErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordInjection records a text delivery attempt with its outcome.
func (m *Metrics) RecordInjection(ctx context.Context, method, status string) {
	m.Injections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}

// RecordReconnect records one device reconnect attempt with its outcome.
func (m *Metrics) RecordReconnect(ctx context.Context, status string) {
	m.ReconnectAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
