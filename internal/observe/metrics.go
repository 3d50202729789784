// Package observe provides the OpenTelemetry metric instruments used across
// VibeCheck and the Prometheus bridge that exposes them on /metrics.
//
// Components accept a *Metrics and treat nil as "metrics disabled", so tests
// that do not care about telemetry can pass nothing. Tests that do should
// build one with [NewMetrics] over a ManualReader-backed provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kristinmlloyd/VibeCheck"

// Metrics holds all OpenTelemetry instruments for the application.
type Metrics struct {
	// SearchDuration tracks end-to-end retrieval latency. Attribute: query_type.
	SearchDuration metric.Float64Histogram

	// EncodeDuration tracks model inference latency. Attribute: modality.
	EncodeDuration metric.Float64Histogram

	// ModelLoads counts encoder load attempts. Attributes: modality, status.
	ModelLoads metric.Int64Counter

	// DegradedEmbeddings counts modalities replaced by the zero vector after a
	// failure. Attributes: modality, stage (query or build).
	DegradedEmbeddings metric.Int64Counter

	// StaleIDs counts index hits skipped because the record store no longer
	// has the restaurant.
	StaleIDs metric.Int64Counter

	// TextCacheLookups counts query-embedding cache lookups. Attribute: result.
	TextCacheLookups metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request latency. Attributes: method,
	// route, status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SearchDuration, err = m.Float64Histogram("vibecheck.search.duration",
		metric.WithDescription("Latency of a retrieval call from fusion to enriched results."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("vibecheck.encode.duration",
		metric.WithDescription("Latency of a single text or image encoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoads, err = m.Int64Counter("vibecheck.model.loads",
		metric.WithDescription("Encoder load attempts by modality and status."),
	); err != nil {
		return nil, err
	}
	if met.DegradedEmbeddings, err = m.Int64Counter("vibecheck.embedding.degraded",
		metric.WithDescription("Modalities substituted by the zero vector after a failure."),
	); err != nil {
		return nil, err
	}
	if met.StaleIDs, err = m.Int64Counter("vibecheck.search.stale_ids",
		metric.WithDescription("Index hits skipped because the record was missing."),
	); err != nil {
		return nil, err
	}
	if met.TextCacheLookups, err = m.Int64Counter("vibecheck.text_cache.lookups",
		metric.WithDescription("Query text embedding cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("vibecheck.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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

// DefaultMetrics returns a package-level instance bound to the global
// MeterProvider. Panics if instrument creation fails.
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

// RecordSearch records one retrieval call.
func (m *Metrics) RecordSearch(ctx context.Context, queryType string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("query_type", queryType)))
}

// RecordEncode records one encoder invocation.
func (m *Metrics) RecordEncode(ctx context.Context, modality string, d time.Duration) {
	if m == nil {
		return
	}
	m.EncodeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("modality", modality)))
}

// RecordModelLoad counts a load attempt.
func (m *Metrics) RecordModelLoad(ctx context.Context, modality string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("modality", modality),
		attribute.String("status", status),
	))
}

// RecordDegraded counts a zero-vector substitution.
func (m *Metrics) RecordDegraded(ctx context.Context, modality, stage string) {
	if m == nil {
		return
	}
	m.DegradedEmbeddings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("modality", modality),
		attribute.String("stage", stage),
	))
}

// RecordStaleID counts a skipped dangling identifier.
func (m *Metrics) RecordStaleID(ctx context.Context) {
	if m == nil {
		return
	}
	m.StaleIDs.Add(ctx, 1)
}

// RecordCacheLookup counts a text cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TextCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	))
}
