package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kristinmlloyd/VibeCheck/encoder"
)

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory and the process
// environment, in increasing precedence, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
// Each setting has a VIBECHECK_ name; DB_PATH, IMAGE_DIR and
// OPENAI_API_KEY are honoured when the prefixed name is unset.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	lookup := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}
	str := func(dst *string, keys ...string) {
		if v := lookup(keys...); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		v := lookup(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}

	str(&cfg.Server.ListenAddr, "VIBECHECK_LISTEN_ADDR")
	if v := lookup("VIBECHECK_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v := lookup("VIBECHECK_LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = LogFormat(v)
	}
	if v := lookup("VIBECHECK_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("VIBECHECK_RATE_LIMIT: %q is not a number", v))
		} else {
			cfg.Server.RateLimit = f
		}
	}

	str(&cfg.Data.DBPath, "VIBECHECK_DB_PATH", "DB_PATH")
	str(&cfg.Data.SnapshotPath, "VIBECHECK_SNAPSHOT_PATH")
	str(&cfg.Data.SnapshotName, "VIBECHECK_SNAPSHOT_NAME")

	str(&cfg.Photos.Dir, "VIBECHECK_IMAGE_DIR", "IMAGE_DIR")
	str(&cfg.Photos.S3.Bucket, "VIBECHECK_S3_BUCKET")
	str(&cfg.Photos.S3.Prefix, "VIBECHECK_S3_PREFIX")
	str(&cfg.Photos.S3.Region, "VIBECHECK_S3_REGION", "AWS_REGION")
	str(&cfg.Photos.S3.Endpoint, "VIBECHECK_S3_ENDPOINT")

	if v := lookup("VIBECHECK_DEVICE"); v != "" {
		cfg.Models.Device = encoder.Device(v)
	}
	str(&cfg.Models.ONNXLibrary, "VIBECHECK_ONNX_LIBRARY")
	str(&cfg.Models.TextModelPath, "VIBECHECK_TEXT_MODEL_PATH")
	str(&cfg.Models.TokenizerPath, "VIBECHECK_TOKENIZER_PATH")
	str(&cfg.Models.ImageModelPath, "VIBECHECK_IMAGE_MODEL_PATH")
	str(&cfg.Models.OpenAI.APIKey, "VIBECHECK_OPENAI_API_KEY", "OPENAI_API_KEY")
	str(&cfg.Models.OpenAI.Model, "VIBECHECK_OPENAI_MODEL")

	num(&cfg.Index.TopK, "VIBECHECK_TOP_K")
	num(&cfg.Index.Workers, "VIBECHECK_WORKERS")

	return errors.Join(errs...)
}
