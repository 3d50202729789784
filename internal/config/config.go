// Package config defines the VibeCheck configuration and loads it from a
// YAML file, a .env file and the process environment.
package config

import (
	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/photos"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the log handler.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == FormatText || f == FormatJSON
}

// Config is the root configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Photos PhotoConfig  `yaml:"photos"`
	Models ModelConfig  `yaml:"models"`
	Index  IndexConfig  `yaml:"index"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr"`
	LogLevel   LogLevel  `yaml:"log_level"`
	LogFormat  LogFormat `yaml:"log_format"`
	// MaxUploadBytes bounds request bodies, including image uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// RateLimit is the sustained requests per second allowed per client
	// address; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// DataConfig locates the record store and the snapshot database.
type DataConfig struct {
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	SnapshotName string `yaml:"snapshot_name"`
}

// PhotoConfig selects the photo source. S3 is used when S3.Bucket is set,
// otherwise Dir.
type PhotoConfig struct {
	Dir string          `yaml:"dir"`
	S3  photos.S3Config `yaml:"s3"`
}

// ModelConfig configures the encoders.
type ModelConfig struct {
	Device         encoder.Device `yaml:"device"`
	ONNXLibrary    string         `yaml:"onnx_library"`
	TextModelPath  string         `yaml:"text_model_path"`
	TokenizerPath  string         `yaml:"tokenizer_path"`
	ImageModelPath string         `yaml:"image_model_path"`
	TextModel      string         `yaml:"text_model"`
	TextDim        int            `yaml:"text_dim"`
	ImageModel     string         `yaml:"image_model"`
	ImageDim       int            `yaml:"image_dim"`
	Threads        int            `yaml:"threads"`
	// TextCacheSize is the number of query embeddings kept in memory.
	TextCacheSize int          `yaml:"text_cache_size"`
	OpenAI        OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig enables the hosted text encoder when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Enabled reports whether the hosted text encoder is configured.
func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

// IndexConfig controls offline builds and default query sizes.
type IndexConfig struct {
	Metric    index.Metric `yaml:"metric"`
	Kind      index.Kind   `yaml:"kind"`
	MaxPhotos int          `yaml:"max_photos"`
	Workers   int          `yaml:"workers"`
	TopK      int          `yaml:"top_k"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			LogLevel:       LogInfo,
			LogFormat:      FormatText,
			MaxUploadBytes: 16 << 20,
			RateLimit:      20,
			RateBurst:      40,
		},
		Data: DataConfig{
			DBPath:       "data/vibecheck.db",
			SnapshotPath: "data/vibecheck_index.sqlite",
			SnapshotName: "default",
		},
		Photos: PhotoConfig{Dir: "data/images"},
		Models: ModelConfig{
			Device:        encoder.DeviceAuto,
			TextModel:     "sentence-transformers/all-MiniLM-L6-v2",
			TextDim:       384,
			ImageModel:    "openai/clip-vit-base-patch32",
			ImageDim:      512,
			TextCacheSize: 1024,
		},
		Index: IndexConfig{
			Metric:    index.MetricL2,
			Kind:      index.KindAuto,
			MaxPhotos: 5,
			Workers:   4,
			TopK:      5,
		},
	}
}
