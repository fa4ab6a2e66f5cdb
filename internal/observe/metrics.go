// Package observe provides application-wide observability primitives for
// Quincy: OpenTelemetry metrics and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Quincy metrics.
const meterName = "github.com/quincybot/quincy"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ActiveSessions tracks the number of live voice sessions across guilds.
	ActiveSessions metric.Int64UpDownCounter

	// Playbacks counts started playbacks. Use with attribute:
	//   attribute.String("kind", "sound"|"tts"|"stream")
	Playbacks metric.Int64Counter

	// Evictions counts sessions disconnected by the inactivity reaper.
	Evictions metric.Int64Counter

	// TransportErrors counts voice-transport failures. Use with attribute:
	//   attribute.String("op", ...)
	TransportErrors metric.Int64Counter

	// ResolveDuration tracks sound-resolver latency.
	ResolveDuration metric.Float64Histogram

	// SynthDuration tracks text-to-speech synthesis latency.
	SynthDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ActiveSessions, err = m.Int64UpDownCounter("quincy.voice.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.Playbacks, err = m.Int64Counter("quincy.voice.playbacks",
		metric.WithDescription("Total started playbacks by kind."),
	); err != nil {
		return nil, err
	}
	if met.Evictions, err = m.Int64Counter("quincy.voice.evictions",
		metric.WithDescription("Total sessions evicted by the inactivity reaper."),
	); err != nil {
		return nil, err
	}
	if met.TransportErrors, err = m.Int64Counter("quincy.voice.transport_errors",
		metric.WithDescription("Total voice-transport failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ResolveDuration, err = m.Float64Histogram("quincy.soundboard.resolve.duration",
		metric.WithDescription("Latency of sound-name resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthDuration, err = m.Float64Histogram("quincy.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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

// RecordPlayback records one started playback of the given kind.
func (m *Metrics) RecordPlayback(ctx context.Context, kind string) {
	m.Playbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTransportError records one transport failure for the given operation.
func (m *Metrics) RecordTransportError(ctx context.Context, op string) {
	m.TransportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
