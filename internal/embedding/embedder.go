// Package embedding turns image files into feature vectors: an ONNX vision model when
// available, a pure-Go thumbnail descriptor otherwise, and an LRU cache in front of either.
package embedding

import "context"

// Embedder produces a raw (not necessarily normalized) feature vector for an image file.
// Implementations load and decode the image themselves; a file that cannot be read or
// decoded yields an error, never a panic.
type Embedder interface {
	Embed(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Provider names accepted by the embedding.provider config key.
const (
	ProviderONNX      = "onnx"
	ProviderThumbnail = "thumbnail"
)
