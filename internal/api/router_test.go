package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kristinmlloyd/VibeCheck/encoder/encodertest"
	"github.com/kristinmlloyd/VibeCheck/fusion"
	"github.com/kristinmlloyd/VibeCheck/indexer"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/photos"
	"github.com/kristinmlloyd/VibeCheck/retrieval"
	"github.com/kristinmlloyd/VibeCheck/store"
	"github.com/kristinmlloyd/VibeCheck/store/storetest"
)

func newTestRouter(t *testing.T) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()
	ctx := context.Background()
	records := storetest.Seed(t,
		storetest.Restaurant("Candle Room", []string{"dim candlelit tables", "romantic"}),
		storetest.Restaurant("Sports Den", []string{"loud screens everywhere"}),
		storetest.Restaurant("Fern Cafe", []string{"plants and natural light"}),
	)
	entry := storetest.Restaurant("Tiki Hut", nil)
	entry.VibeAnalysis.TopVibes = []store.VibeCount{{Name: "tropical", Count: 9}}
	_, err := records.Ingest(ctx, []store.ScrapedRestaurant{entry})
	require.NoError(t, err)

	bank := encodertest.NewBank(encodertest.New(8, 4))
	snap, _, err := indexer.New(records, photos.NewLocal(t.TempDir()), bank).Build(ctx)
	require.NoError(t, err)
	fuser, err := fusion.NewFuser(bank)
	require.NoError(t, err)
	rec, err := retrieval.New(fuser, snap, records)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	return NewRouter(Deps{
		Searcher:     rec,
		Records:      records,
		Models:       bank,
		Meta:         rec.Meta(),
		Photos:       photos.NewLocal(t.TempDir()),
		Metrics:      metrics,
		TopK:         5,
		MaxBodyBytes: 1 << 10,
	}), reader
}

func serve(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_EndToEnd(t *testing.T) {
	h, reader := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var health struct {
		Rows         int `json:"rows"`
		ModelsLoaded struct {
			Text bool `json:"text"`
		} `json:"models_loaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 4, health.Rows)

	rec = serve(h, http.MethodPost, "/api/search/text", []byte(`{"query":"candlelit","top_k":10}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var search struct {
		Results []struct {
			ID         int64   `json:"id"`
			Similarity float64 `json:"similarity"`
			Distance   float64 `json:"distance"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &search))
	require.Len(t, search.Results, 4)
	for i, r := range search.Results {
		assert.InDelta(t, 1/(1+r.Distance), r.Similarity, 1e-12)
		if i > 0 {
			assert.GreaterOrEqual(t, r.Distance, search.Results[i-1].Distance)
		}
	}

	rec = serve(h, http.MethodPost, "/api/search/text", []byte(`{"query":"x","top_k":0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/api/restaurants/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Candle Room"`)

	rec = serve(h, http.MethodGet, "/api/restaurants/1/similar?top_k=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &search))
	require.Len(t, search.Results, 2)
	for _, r := range search.Results {
		assert.NotEqual(t, int64(1), r.ID)
	}

	rec = serve(h, http.MethodGet, "/api/restaurants/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/vibe-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"vibes":[{"name":"tropical","count":9}]}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = serve(h, http.MethodPost, "/api/search/text", []byte(`{"query":"`+strings.Repeat("a", 2048)+`"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	routes := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vibecheck.http.request.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("route"))
				routes[v.AsString()] = true
			}
		}
	}
	assert.True(t, routes["/api/restaurants/{id}"], "routes: %v", routes)
	assert.True(t, routes["/health"], "routes: %v", routes)
}
