package embedding

import (
	"context"
	"fmt"
)

const defaultThumbnailGrid = 16

// ThumbnailEmbedder describes an image by its downscaled RGB thumbnail, mapped to [-1, 1].
// It needs no model files, so it is the fallback when ONNX is unavailable. It finds
// near-identical photos (re-encodes, resizes, small edits) but not semantic similarity.
type ThumbnailEmbedder struct {
	grid int
}

// NewThumbnailEmbedder returns an embedder using a grid x grid thumbnail
// (dimensions = grid*grid*3). Non-positive grid selects 16.
func NewThumbnailEmbedder(grid int) *ThumbnailEmbedder {
	if grid <= 0 {
		grid = defaultThumbnailGrid
	}
	return &ThumbnailEmbedder{grid: grid}
}

// Embed decodes the image at path and returns its thumbnail descriptor.
func (e *ThumbnailEmbedder) Embed(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image: %s", path)
	}
	thumb := Resize(img, e.grid, e.grid)
	emb := make([]float32, 0, e.Dimensions())
	for y := 0; y < e.grid; y++ {
		for x := 0; x < e.grid; x++ {
			off := thumb.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				emb = append(emb, float32(thumb.Pix[off+c])/127.5-1)
			}
		}
	}
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *ThumbnailEmbedder) Dimensions() int {
	return e.grid * e.grid * 3
}

// Close is a no-op for ThumbnailEmbedder.
func (e *ThumbnailEmbedder) Close() error {
	return nil
}
