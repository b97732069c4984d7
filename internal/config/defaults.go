package config

// Embedding providers.
const (
	ProviderONNX      = "onnx"
	ProviderThumbnail = "thumbnail"
)

// Pair sources.
const (
	PairsBruteForce = "brute_force"
	PairsFAISS      = "faiss"
)

const defaultThreshold = 0.8

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = "/usr/local/var/ruiji/history.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/ruiji/models/siglip2-base-patch16-512.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.ImageSize == 0 {
		cfg.Embedding.ImageSize = 512
	}
	if cfg.Embedding.InputName == "" {
		cfg.Embedding.InputName = "pixel_values"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "image_embeds"
	}
	if len(cfg.Embedding.Mean) == 0 {
		cfg.Embedding.Mean = []float32{0.5, 0.5, 0.5}
	}
	if len(cfg.Embedding.Std) == 0 {
		cfg.Embedding.Std = []float32{0.5, 0.5, 0.5}
	}
	if cfg.Embedding.ThumbnailGrid == 0 {
		cfg.Embedding.ThumbnailGrid = 16
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if len(cfg.Job.Extensions) == 0 {
		cfg.Job.Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif"}
	}
	if cfg.Cluster.DefaultThreshold == nil {
		t := defaultThreshold
		cfg.Cluster.DefaultThreshold = &t
	}
	if cfg.Cluster.PairSource == "" {
		cfg.Cluster.PairSource = PairsBruteForce
	}
	if cfg.Export.Suffix == "" {
		cfg.Export.Suffix = "_copy"
	}
	if cfg.Export.Workers == 0 {
		cfg.Export.Workers = 4
	}
	if cfg.Watch.Enabled == nil {
		t := true
		cfg.Watch.Enabled = &t
	}
}
