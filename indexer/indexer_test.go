package indexer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/encoder/encodertest"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/photos"
	"github.com/kristinmlloyd/VibeCheck/store"
	"github.com/kristinmlloyd/VibeCheck/store/storetest"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

const (
	textDim  = 8
	imageDim = 4
)

func writePNG(t *testing.T, dir, name string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func normalized(t *testing.T, v []float32) []float32 {
	t.Helper()
	n, err := vector.Normalize(v)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func assertClose(t *testing.T, what string, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len %d, want %d", what, len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Fatalf("%s[%d] = %v, want %v", what, i, got[i], want[i])
		}
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "red.png", color.RGBA{R: 255, A: 255})
	writePNG(t, dir, "blue.png", color.RGBA{B: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := storetest.Seed(t,
		storetest.Restaurant("Bistro", []string{"cozy candlelit bistro", "great wine"}),
		storetest.Restaurant("Pub", nil),
		storetest.Restaurant("Gallery", []string{""}, "red.png", "blue.png"),
		storetest.Restaurant("Broken", []string{"nice"}, "bad.png", "missing.png"),
	)
	loader := encodertest.New(textDim, imageDim)
	b := New(s, photos.NewLocal(dir), encodertest.NewBank(loader), WithWorkers(3))

	snap, st, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := snap.IDs.IDs(); len(got) != 4 || got[0] != "1" || got[3] != "4" {
		t.Fatalf("ids = %v", got)
	}
	if snap.Index.Rows() != 4 || snap.Index.Dim() != textDim+imageDim {
		t.Fatalf("index rows=%d dim=%d", snap.Index.Rows(), snap.Index.Dim())
	}
	if snap.Meta.Metric != index.MetricL2 || snap.Meta.Kind != index.KindFlat || snap.Meta.BuildTag == "" {
		t.Fatalf("meta = %+v", snap.Meta)
	}
	want := Stats{Restaurants: 4, WithImages: 1, ReviewsProcessed: 4, PhotosEncoded: 2, PhotosSkipped: 2, Dim: textDim + imageDim}
	st.Elapsed = 0
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}

	texts := []string{"cozy candlelit bistro great wine", "Pub", "", "nice"}
	for row, text := range texts {
		v := snap.Index.Vector(row)
		assertClose(t, "text part", v[:textDim], normalized(t, encodertest.HashVector(text, textDim)))
	}
	zeros := make([]float32, imageDim)
	assertClose(t, "no photos", snap.Index.Vector(0)[textDim:], zeros)
	assertClose(t, "broken photos", snap.Index.Vector(3)[textDim:], zeros)

	red := normalized(t, []float32{1.1, 0.1, 0.1, 0})
	blue := normalized(t, []float32{0.1, 0.1, 1.1, 0})
	mean, err := vector.Mean([][]float32{red, blue})
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "photo mean", snap.Index.Vector(2)[textDim:], normalized(t, mean))
}

func TestBuild_EmptyCorpus(t *testing.T) {
	s := storetest.New(t)
	b := New(s, photos.NewLocal(t.TempDir()), encodertest.NewBank(encodertest.New(textDim, imageDim)))
	if _, _, err := b.Build(context.Background()); !errors.Is(err, index.ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestBuild_TextLoadFailure(t *testing.T) {
	s := storetest.Seed(t, storetest.Restaurant("A", []string{"x"}))
	loader := encodertest.New(textDim, imageDim)
	loader.TextLoadErr = errors.New("no model")
	b := New(s, photos.NewLocal(t.TempDir()), encodertest.NewBank(loader))
	if _, _, err := b.Build(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestBuild_InnerProductMetric(t *testing.T) {
	s := storetest.Seed(t, storetest.Restaurant("A", []string{"x"}), storetest.Restaurant("B", []string{"y"}))
	b := New(s, photos.NewLocal(t.TempDir()), encodertest.NewBank(encodertest.New(textDim, imageDim)),
		WithMetric(index.MetricInnerProduct), WithName("ip"))
	snap, _, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if snap.Meta.Metric != index.MetricInnerProduct || snap.Meta.Name != "ip" {
		t.Fatalf("meta = %+v", snap.Meta)
	}
}

func TestText(t *testing.T) {
	cases := []struct {
		item store.CorpusItem
		want string
	}{
		{store.CorpusItem{Name: "Pub"}, "Pub"},
		{store.CorpusItem{Name: "Pub", ReviewRows: 1}, ""},
		{store.CorpusItem{Name: "Pub", ReviewRows: 2, Reviews: []string{"a", "b"}}, "a b"},
	}
	for _, c := range cases {
		if got := Text(c.item); got != c.want {
			t.Fatalf("Text(%+v) = %q, want %q", c.item, got, c.want)
		}
	}
}
