package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValueFor returns the int64 sum data point matching the attribute
// key=value pair, or -1 when no such point exists.
func sumValueFor(t *testing.T, met *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestFrameAndDropCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesCaptured.Add(ctx, 3)
	m.QueueDrops.Add(ctx, 1)

	rm := collect(t, reader)

	frames := findMetric(rm, "voxinput.audio.frames")
	if frames == nil {
		t.Fatal("frames metric not found")
	}
	sum, ok := frames.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("frames metric has no sum data")
	}
	if sum.DataPoints[0].Value != 3 {
		t.Errorf("frames = %d, want 3", sum.DataPoints[0].Value)
	}

	drops := findMetric(rm, "voxinput.pipeline.queue_drops")
	if drops == nil {
		t.Fatal("drops metric not found")
	}
}

func TestUtteranceCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "vosk")
	m.RecordUtterance(ctx, "vosk")
	m.RecordUtterance(ctx, "whisper")
	m.RecordDecodeError(ctx, "vosk")

	rm := collect(t, reader)

	utt := findMetric(rm, "voxinput.recognizer.utterances")
	if utt == nil {
		t.Fatal("utterances metric not found")
	}
	if got := sumValueFor(t, utt, "backend", "vosk"); got != 2 {
		t.Errorf("vosk utterances = %d, want 2", got)
	}
	if got := sumValueFor(t, utt, "backend", "whisper"); got != 1 {
		t.Errorf("whisper utterances = %d, want 1", got)
	}

	errs := findMetric(rm, "voxinput.recognizer.errors")
	if errs == nil {
		t.Fatal("errors metric not found")
	}
	if got := sumValueFor(t, errs, "backend", "vosk"); got != 1 {
		t.Errorf("vosk decode errors = %d, want 1", got)
	}
}

func TestInjectionCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInjection(ctx, "clipboard", "ok")
	m.RecordInjection(ctx, "clipboard", "ok")
	m.RecordInjection(ctx, "clipboard", "error")

	rm := collect(t, reader)
	met := findMetric(rm, "voxinput.inject.deliveries")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumValueFor(t, met, "status", "ok"); got != 2 {
		t.Errorf("ok deliveries = %d, want 2", got)
	}
}

func TestReconnectCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReconnect(ctx, "failed")
	m.RecordReconnect(ctx, "ok")

	rm := collect(t, reader)
	met := findMetric(rm, "voxinput.audio.reconnects")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumValueFor(t, met, "status", "failed"); got != 1 {
		t.Errorf("failed reconnects = %d, want 1", got)
	}
}

func TestDecodeDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DecodeDuration.Record(ctx, 0.012,
		metric.WithAttributes(attribute.String("backend", "vosk")),
	)
	m.DecodeDuration.Record(ctx, 0.034,
		metric.WithAttributes(attribute.String("backend", "vosk")),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "voxinput.recognizer.decode.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestListeningGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ListeningSessions.Add(ctx, 1)
	m.ListeningSessions.Add(ctx, -1)
	m.ListeningSessions.Add(ctx, 1)

	rm := collect(t, reader)
	met := findMetric(rm, "voxinput.pipeline.listening")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("metric has no sum data")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
