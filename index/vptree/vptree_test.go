package vptree

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/index/flat"
)

func randomCorpus(r *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func TestSearch_MatchesFlat(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	data := randomCorpus(r, 300, 8)

	tree := New()
	if err := tree.Build(data); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	exact := flat.New(index.MetricL2)
	if err := exact.Build(data); err != nil {
		t.Fatalf("flat Build failed: %v", err)
	}
	queries := randomCorpus(r, 25, 8)
	got, err := tree.Search(queries, 7)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want, err := exact.Search(queries, 7)
	if err != nil {
		t.Fatalf("flat Search failed: %v", err)
	}
	for q := range queries {
		if len(got[q]) != len(want[q]) {
			t.Fatalf("query %d: len %d, want %d", q, len(got[q]), len(want[q]))
		}
		for n := range want[q] {
			if got[q][n] != want[q][n] {
				t.Fatalf("query %d hit %d: got %+v, want %+v", q, n, got[q][n], want[q][n])
			}
		}
	}
}

func TestSearch_DuplicatesKeepRowOrder(t *testing.T) {
	tree := New()
	if err := tree.Build([][]float32{{1, 1}, {0, 0}, {1, 1}, {1, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	res, err := tree.Search([][]float32{{1, 1}}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for n, row := range []int{0, 2, 3} {
		if res[0][n].Row != row {
			t.Fatalf("hit %d = %+v, want row %d", n, res[0][n], row)
		}
	}
}

func TestSearch_ClampsK(t *testing.T) {
	tree := New()
	if err := tree.Build([][]float32{{0}, {1}, {2}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	res, err := tree.Search([][]float32{{1.2}}, 50)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res[0]) != 3 || res[0][0].Row != 1 {
		t.Fatalf("unexpected result: %+v", res[0])
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	if err := New().Build(nil); !errors.Is(err, index.ErrEmptyCorpus) {
		t.Fatalf("Build(nil) err = %v, want ErrEmptyCorpus", err)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	data := randomCorpus(r, 40, 4)
	tree := New()
	if err := tree.Build(data); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	blob, err := tree.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	restored := New()
	if err := restored.UnmarshalBinary(blob); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	q := [][]float32{{0.1, 0.2, 0.3, 0.4}}
	want, _ := tree.Search(q, 5)
	got, _ := restored.Search(q, 5)
	for n := range want[0] {
		if got[0][n] != want[0][n] {
			t.Fatalf("hit %d: got %+v, want %+v", n, got[0][n], want[0][n])
		}
	}

	ip := flat.New(index.MetricInnerProduct)
	if err := ip.Build(data); err != nil {
		t.Fatalf("flat Build failed: %v", err)
	}
	ipBlob, _ := ip.MarshalBinary()
	if err := New().UnmarshalBinary(ipBlob); err == nil {
		t.Fatalf("expected error loading an inner-product matrix")
	}
}
