package embedding

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, fill func(x, y int) color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func solid(c color.Color) func(x, y int) color.Color {
	return func(int, int) color.Color { return c }
}

func TestThumbnailEmbedder_Dimensions(t *testing.T) {
	assert.Equal(t, 16*16*3, NewThumbnailEmbedder(0).Dimensions())
	assert.Equal(t, 4*4*3, NewThumbnailEmbedder(4).Dimensions())
}

func TestThumbnailEmbedder_Embed(t *testing.T) {
	dir := t.TempDir()
	red := filepath.Join(dir, "red.png")
	writePNG(t, red, 32, 24, solid(color.RGBA{R: 255, A: 255}))

	e := NewThumbnailEmbedder(4)
	vec, err := e.Embed(context.Background(), red)
	require.NoError(t, err)
	require.Len(t, vec, e.Dimensions())
	for i := 0; i < len(vec); i += 3 {
		assert.InDelta(t, 1.0, vec[i], 1e-6)
		assert.InDelta(t, -1.0, vec[i+1], 1e-6)
		assert.InDelta(t, -1.0, vec[i+2], 1e-6)
	}

	again, err := e.Embed(context.Background(), red)
	require.NoError(t, err)
	assert.Equal(t, vec, again)
}

func TestThumbnailEmbedder_Failures(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a png"), 0o644))

	e := NewThumbnailEmbedder(4)
	_, err := e.Embed(context.Background(), corrupt)
	assert.Error(t, err)

	_, err = e.Embed(context.Background(), filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, corrupt)
	assert.ErrorIs(t, err, context.Canceled)
}
