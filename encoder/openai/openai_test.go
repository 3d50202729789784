package openai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/encoder"
)

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

func fakeServer(t *testing.T, embedding []float64, got *embeddingRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  got.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": embedding},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTextEncoder_EncodeText(t *testing.T) {
	var req embeddingRequest
	srv := fakeServer(t, []float64{3, 4, 0}, &req)

	enc, err := NewTextEncoder("test-key", "", 3, WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewTextEncoder failed: %v", err)
	}
	v, err := enc.EncodeText(context.Background(), "rooftop bar")
	if err != nil {
		t.Fatalf("EncodeText failed: %v", err)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 || v[2] != 0 {
		t.Fatalf("EncodeText = %v, want normalized [0.6 0.8 0]", v)
	}
	if req.Input != "rooftop bar" || req.Dimensions != 3 || req.Model != DefaultModel {
		t.Fatalf("request = %+v", req)
	}
}

func TestTextEncoder_DimensionMismatch(t *testing.T) {
	var req embeddingRequest
	srv := fakeServer(t, []float64{1, 0}, &req)
	enc, err := NewTextEncoder("test-key", "custom", 3, WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewTextEncoder failed: %v", err)
	}
	if _, err := enc.EncodeText(context.Background(), "x"); err == nil {
		t.Fatalf("expected dimension error")
	}
}

func TestNewTextEncoder_Validation(t *testing.T) {
	if _, err := NewTextEncoder("", "", 3); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := NewTextEncoder("k", "", 0); err == nil {
		t.Fatalf("expected error for zero dimension")
	}
}

type imageOnly struct{}

func (imageOnly) Info() encoder.Info {
	return encoder.Info{TextModel: "unused", TextDim: 1, ImageModel: "clip", ImageDim: 2}
}
func (imageOnly) SelectDevice(encoder.Device) encoder.Device { return encoder.DeviceCPU }
func (imageOnly) LoadText(context.Context, encoder.Device) (encoder.TextEncoder, error) {
	return nil, nil
}
func (imageOnly) LoadImage(context.Context, encoder.Device) (encoder.ImageEncoder, encoder.Preprocessor, error) {
	return nil, nil, nil
}

func TestLoader_Info(t *testing.T) {
	enc, err := NewTextEncoder("k", "text-embedding-3-small", 384)
	if err != nil {
		t.Fatalf("NewTextEncoder failed: %v", err)
	}
	l := NewLoader(enc, imageOnly{})
	info := l.Info()
	want := encoder.Info{TextModel: "text-embedding-3-small", TextDim: 384, ImageModel: "clip", ImageDim: 2}
	if info != want {
		t.Fatalf("Info() = %+v, want %+v", info, want)
	}
	got, err := l.LoadText(context.Background(), encoder.DeviceCPU)
	if err != nil || got != enc {
		t.Fatalf("LoadText = %v, %v", got, err)
	}
}
