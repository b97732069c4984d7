// Package config provides configuration loading and structs for the ruiji server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Job       JobConfig       `yaml:"job"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Export    ExportConfig    `yaml:"export"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the run history database path.
type StorageConfig struct {
	HistoryPath string `yaml:"history_path"`
}

// EmbeddingConfig selects and configures the image embedder.
type EmbeddingConfig struct {
	// Provider is "onnx" or "thumbnail". The onnx provider falls back to thumbnail
	// when the runtime or model is unavailable.
	Provider      string    `yaml:"provider"`
	ModelPath     string    `yaml:"model_path"`
	Dimensions    int       `yaml:"dimensions"`
	ImageSize     int       `yaml:"image_size"`
	InputName     string    `yaml:"input_name"`
	OutputName    string    `yaml:"output_name"`
	Mean          []float32 `yaml:"mean"`
	Std           []float32 `yaml:"std"`
	ThumbnailGrid int       `yaml:"thumbnail_grid"`
	CacheSize     int       `yaml:"cache_size"`
}

// JobConfig holds embedding job settings.
type JobConfig struct {
	// Extensions is the allow-list every job starts from; requests may add more.
	Extensions []string `yaml:"extensions"`
}

// ClusterConfig holds clustering defaults.
type ClusterConfig struct {
	// DefaultThreshold is used when a request gives none. Zero is a valid threshold,
	// so unset is nil.
	DefaultThreshold *float64 `yaml:"default_threshold"`
	// PairSource selects how similar pairs are found: brute_force or faiss
	// (needs the faiss build tag).
	PairSource string `yaml:"pair_source"`
}

// ThresholdOrDefault returns the configured threshold, or 0.8 when unset.
func (c *ClusterConfig) ThresholdOrDefault() float64 {
	if c.DefaultThreshold != nil {
		return *c.DefaultThreshold
	}
	return defaultThreshold
}

// ExportConfig holds export settings.
type ExportConfig struct {
	Suffix  string `yaml:"suffix"`
	Workers int    `yaml:"workers"`
}

// WatchConfig holds folder watch settings.
type WatchConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// EnabledOrDefault returns whether to watch the job folder; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and validates the result. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderThumbnail:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q", ProviderONNX, ProviderThumbnail, c.Embedding.Provider)
	}
	if t := c.Cluster.ThresholdOrDefault(); t < 0 || t > 1 {
		return fmt.Errorf("cluster.default_threshold must be between 0 and 1, got %v", t)
	}
	switch c.Cluster.PairSource {
	case PairsBruteForce, PairsFAISS:
	default:
		return fmt.Errorf("cluster.pair_source must be %q or %q, got %q", PairsBruteForce, PairsFAISS, c.Cluster.PairSource)
	}
	if len(c.Embedding.Mean) != 3 || len(c.Embedding.Std) != 3 {
		return fmt.Errorf("embedding.mean and embedding.std need 3 values each")
	}
	for _, s := range c.Embedding.Std {
		if s == 0 {
			return fmt.Errorf("embedding.std values must be non-zero")
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
