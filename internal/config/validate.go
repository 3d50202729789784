package config

import (
	"errors"
	"fmt"
)

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %g", cfg.Server.RateLimit))
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be at least 1 when rate_limit is set"))
	}

	if cfg.Data.DBPath == "" {
		errs = append(errs, errors.New("data.db_path is required"))
	}
	if cfg.Data.SnapshotPath == "" {
		errs = append(errs, errors.New("data.snapshot_path is required"))
	}
	if cfg.Data.SnapshotName == "" {
		errs = append(errs, errors.New("data.snapshot_name is required"))
	}

	if cfg.Photos.Dir == "" && cfg.Photos.S3.Bucket == "" {
		errs = append(errs, errors.New("photos.dir or photos.s3.bucket is required"))
	}

	if !cfg.Models.Device.IsValid() {
		errs = append(errs, fmt.Errorf("models.device %q is invalid; valid values: auto, cpu, cuda", cfg.Models.Device))
	}
	if cfg.Models.TextDim < 1 {
		errs = append(errs, fmt.Errorf("models.text_dim must be positive, got %d", cfg.Models.TextDim))
	}
	if cfg.Models.ImageDim < 1 {
		errs = append(errs, fmt.Errorf("models.image_dim must be positive, got %d", cfg.Models.ImageDim))
	}
	if cfg.Models.TextCacheSize < 0 {
		errs = append(errs, fmt.Errorf("models.text_cache_size must not be negative, got %d", cfg.Models.TextCacheSize))
	}

	if !cfg.Index.Metric.IsValid() {
		errs = append(errs, fmt.Errorf("index.metric %q is invalid; valid values: l2, ip", cfg.Index.Metric))
	}
	if !cfg.Index.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("index.kind %q is invalid; valid values: auto, flat, vptree", cfg.Index.Kind))
	}
	if cfg.Index.MaxPhotos < 1 {
		errs = append(errs, fmt.Errorf("index.max_photos must be positive, got %d", cfg.Index.MaxPhotos))
	}
	if cfg.Index.Workers < 1 {
		errs = append(errs, fmt.Errorf("index.workers must be positive, got %d", cfg.Index.Workers))
	}
	if cfg.Index.TopK < 1 {
		errs = append(errs, fmt.Errorf("index.top_k must be positive, got %d", cfg.Index.TopK))
	}

	return errors.Join(errs...)
}

// RequireModelFiles reports missing local model paths. Only the image model
// is required when the hosted text encoder is enabled.
func (c ModelConfig) RequireModelFiles() error {
	var errs []error
	if !c.OpenAI.Enabled() {
		if c.TextModelPath == "" {
			errs = append(errs, errors.New("models.text_model_path is required"))
		}
		if c.TokenizerPath == "" {
			errs = append(errs, errors.New("models.tokenizer_path is required"))
		}
	}
	if c.ImageModelPath == "" {
		errs = append(errs, errors.New("models.image_model_path is required"))
	}
	return errors.Join(errs...)
}
