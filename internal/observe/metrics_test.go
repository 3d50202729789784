package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

func sumWith(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordDegraded(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordDegraded(ctx, "image", "query")
	m.RecordDegraded(ctx, "image", "build")

	got := findMetric(collect(t, reader), "vibecheck.embedding.degraded")
	if got == nil {
		t.Fatal("vibecheck.embedding.degraded not found")
	}
	if n := sumWith(t, got, "stage", "query"); n != 1 {
		t.Fatalf("query count = %d, want 1", n)
	}
}

func TestRecordModelLoad(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordModelLoad(ctx, "text", errors.New("boom"))
	m.RecordModelLoad(ctx, "text", nil)

	got := findMetric(collect(t, reader), "vibecheck.model.loads")
	if got == nil {
		t.Fatal("vibecheck.model.loads not found")
	}
	if n := sumWith(t, got, "status", "error"); n != 1 {
		t.Fatalf("error count = %d, want 1", n)
	}
	if n := sumWith(t, got, "status", "ok"); n != 1 {
		t.Fatalf("ok count = %d, want 1", n)
	}
}

func TestRecordSearch(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordSearch(context.Background(), "text", 30*time.Millisecond)

	got := findMetric(collect(t, reader), "vibecheck.search.duration")
	if got == nil {
		t.Fatal("vibecheck.search.duration not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram data: %+v", got.Data)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordSearch(ctx, "text", time.Second)
	m.RecordEncode(ctx, "text", time.Second)
	m.RecordModelLoad(ctx, "text", nil)
	m.RecordDegraded(ctx, "image", "query")
	m.RecordStaleID(ctx)
	m.RecordCacheLookup(ctx, true)
	m.RecordHTTPRequest(ctx, "GET", "/health", "2xx", time.Second)
}
