package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/idmap"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/index/flat"
	"github.com/kristinmlloyd/VibeCheck/index/vptree"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "snap.sqlite"), false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot(t *testing.T, metric index.Metric) *Snapshot {
	t.Helper()
	idx := flat.New(metric)
	if err := idx.Build([][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ids, err := idmap.New([]string{"10", "20", "30"})
	if err != nil {
		t.Fatalf("idmap.New failed: %v", err)
	}
	s, err := New(idx, ids, Meta{Name: "test", TextDim: 2, ImageDim: 1, TextModel: "text-v1", ImageModel: "image-v1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := testSnapshot(t, index.MetricInnerProduct)
	if err := Save(ctx, db, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(ctx, db, "test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Meta.BuildTag != s.Meta.BuildTag || got.Meta.Checksum != s.Meta.Checksum {
		t.Fatalf("meta mismatch: got %+v, want %+v", got.Meta, s.Meta)
	}
	if got.Meta.Metric != index.MetricInnerProduct || got.Meta.Kind != index.KindFlat {
		t.Fatalf("metric/kind = %s/%s", got.Meta.Metric, got.Meta.Kind)
	}
	if got.Meta.TextModel != "text-v1" || got.Meta.ImageModel != "image-v1" {
		t.Fatalf("models = %q/%q", got.Meta.TextModel, got.Meta.ImageModel)
	}
	if got.IDs.Len() != 3 || got.Index.Rows() != 3 {
		t.Fatalf("rows = %d/%d, want 3", got.IDs.Len(), got.Index.Rows())
	}
	res, err := got.Index.Search([][]float32{{0, 1, 0}}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if id, _ := got.IDs.Lookup(res[0][0].Row); id != "20" {
		t.Fatalf("top id = %q, want 20", id)
	}
}

func TestSave_ReplacesByName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	first := testSnapshot(t, index.MetricL2)
	if err := Save(ctx, db, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second := testSnapshot(t, index.MetricL2)
	if err := Save(ctx, db, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(ctx, db, "test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Meta.BuildTag != second.Meta.BuildTag {
		t.Fatalf("build tag = %s, want %s", got.Meta.BuildTag, second.Meta.BuildTag)
	}
}

func TestLoad_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := Save(ctx, db, testSnapshot(t, index.MetricL2)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE vibe_snapshots SET ids = ? WHERE name = 'test'`, []byte(`["10","20"]`)); err != nil {
		t.Fatalf("UPDATE failed: %v", err)
	}
	_, err := Load(ctx, db, "test")
	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("Load err = %v, want *ConfigError", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(context.Background(), openTestDB(t), "missing")
	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("Load err = %v, want *ConfigError", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.sqlite"), true)
	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("Open err = %v, want *ConfigError", err)
	}
}

func TestNew_Misaligned(t *testing.T) {
	idx := flat.New(index.MetricL2)
	if err := idx.Build([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ids, _ := idmap.New([]string{"a", "b", "c"})
	_, err := New(idx, ids, Meta{TextDim: 1, ImageDim: 1})
	var mis *idmap.MisalignedError
	if !errors.As(err, &mis) {
		t.Fatalf("New err = %v, want *idmap.MisalignedError", err)
	}

	ids, _ = idmap.New([]string{"a", "b"})
	if _, err := New(idx, ids, Meta{TextDim: 3, ImageDim: 1}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestNewIndex(t *testing.T) {
	tests := []struct {
		kind    index.Kind
		metric  index.Metric
		rows    int
		want    string
		wantErr bool
	}{
		{kind: index.KindAuto, metric: index.MetricL2, rows: 10, want: "flat"},
		{kind: index.KindAuto, metric: index.MetricL2, rows: 5000, want: "vptree"},
		{kind: index.KindAuto, metric: index.MetricInnerProduct, rows: 5000, want: "flat"},
		{kind: index.KindVPTree, metric: index.MetricL2, want: "vptree"},
		{kind: index.KindVPTree, metric: index.MetricInnerProduct, wantErr: true},
		{kind: "annoy", metric: index.MetricL2, wantErr: true},
	}
	for _, tc := range tests {
		idx, err := NewIndex(tc.kind, tc.metric, tc.rows)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s/%s: expected error", tc.kind, tc.metric)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.kind, tc.metric, err)
		}
		got := "flat"
		if _, ok := idx.(*vptree.Index); ok {
			got = "vptree"
		}
		if got != tc.want {
			t.Fatalf("%s/%s rows=%d: got %s, want %s", tc.kind, tc.metric, tc.rows, got, tc.want)
		}
	}
}
