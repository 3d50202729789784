package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  log_format: json
data:
  db_path: /srv/vibecheck.db
  snapshot_path: /srv/index.sqlite
photos:
  s3:
    bucket: vibe-photos
    prefix: images/
models:
  device: cpu
  text_model_path: /models/minilm.onnx
  tokenizer_path: /models/tokenizer.json
  image_model_path: /models/clip.onnx
index:
  metric: ip
  kind: flat
  top_k: 10
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug || cfg.Server.LogFormat != config.FormatJSON {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Data.DBPath != "/srv/vibecheck.db" || cfg.Data.SnapshotName != "default" {
		t.Fatalf("data = %+v", cfg.Data)
	}
	if cfg.Photos.S3.Bucket != "vibe-photos" || cfg.Photos.Dir != "data/images" {
		t.Fatalf("photos = %+v", cfg.Photos)
	}
	if cfg.Models.Device != encoder.DeviceCPU || cfg.Models.TextDim != 384 || cfg.Models.ImageDim != 512 {
		t.Fatalf("models = %+v", cfg.Models)
	}
	if cfg.Index.Metric != index.MetricInnerProduct || cfg.Index.Kind != index.KindFlat || cfg.Index.TopK != 10 || cfg.Index.MaxPhotos != 5 {
		t.Fatalf("index = %+v", cfg.Index)
	}
	if err := cfg.Models.RequireModelFiles(); err != nil {
		t.Fatalf("RequireModelFiles: %v", err)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Server.MaxUploadBytes != 16<<20 || cfg.Index.Metric != index.MetricL2 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Index.Metric = "cosine"
	cfg.Index.TopK = 0
	cfg.Photos.Dir = ""

	err := config.Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"server.log_level", "index.metric", "index.top_k", "photos.dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DB_PATH":                 "/legacy/vibecheck.db",
		"VIBECHECK_IMAGE_DIR":     "/new/images",
		"IMAGE_DIR":               "/legacy/images",
		"VIBECHECK_SNAPSHOT_PATH": "/snap.sqlite",
		"VIBECHECK_TOP_K":         "7",
		"OPENAI_API_KEY":          "sk-test",
	}
	cfg := config.Default()
	if err := config.ApplyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Data.DBPath != "/legacy/vibecheck.db" {
		t.Errorf("DBPath = %q", cfg.Data.DBPath)
	}
	if cfg.Photos.Dir != "/new/images" {
		t.Errorf("Photos.Dir = %q, prefixed variable should win", cfg.Photos.Dir)
	}
	if cfg.Data.SnapshotPath != "/snap.sqlite" || cfg.Index.TopK != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Models.OpenAI.Enabled() {
		t.Errorf("OpenAI not enabled")
	}
	if err := cfg.Models.RequireModelFiles(); err == nil || strings.Contains(err.Error(), "text_model_path") {
		t.Errorf("RequireModelFiles = %v, want only the image model missing", err)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := config.Default()
	err := config.ApplyEnv(cfg, func(k string) string {
		if k == "VIBECHECK_TOP_K" {
			return "many"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "VIBECHECK_TOP_K") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vibecheck.yaml")
	if err := os.WriteFile(path, []byte("index:\n  workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIBECHECK_LOG_LEVEL", "warn")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Index.Workers != 2 || cfg.Server.LogLevel != config.LogWarn {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
