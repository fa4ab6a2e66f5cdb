package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/quincybot/quincy/internal/observe"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.ActiveSessions == nil || m.Playbacks == nil || m.Evictions == nil ||
		m.TransportErrors == nil || m.ResolveDuration == nil || m.SynthDuration == nil {
		t.Fatal("NewMetrics left an instrument nil")
	}
}

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.ActiveSessions.Add(ctx, 1)
	m.RecordPlayback(ctx, "sound")
	m.RecordTransportError(ctx, "connect")
	m.ResolveDuration.Record(ctx, 0.003)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, inst := range scope.Metrics {
			found[inst.Name] = true
		}
	}
	for _, name := range []string{
		"quincy.voice.active_sessions",
		"quincy.voice.playbacks",
		"quincy.voice.transport_errors",
		"quincy.soundboard.resolve.duration",
	} {
		if !found[name] {
			t.Errorf("metric %s not collected", name)
		}
	}
}

func TestDefaultMetricsIsStable(t *testing.T) {
	if observe.DefaultMetrics() != observe.DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
