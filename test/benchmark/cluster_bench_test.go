package benchmark

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/ruiji/internal/cluster"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/pkg/utils"
)

func randomStore(b *testing.B, n, dims int) *vector.Snapshot {
	b.Helper()
	r := rand.New(rand.NewSource(1))
	s := vector.NewStore(dims)
	for i := 0; i < n; i++ {
		v := make([]float32, dims)
		for d := range v {
			v[d] = float32(r.NormFloat64())
		}
		utils.NormalizeL2(v)
		if err := s.Put(filepath.Join("/bench", string(rune('a'+i%26)), string(rune('a'+i/26))), v); err != nil {
			b.Fatal(err)
		}
	}
	return s.Snapshot()
}

func BenchmarkCompute_BruteForce1000x768(b *testing.B) {
	snap := randomStore(b, 1000, 768)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cluster.Compute(snap, 0.8, cluster.BruteForce{})
	}
}

func BenchmarkCompute_FAISSPairs1000x768(b *testing.B) {
	snap := randomStore(b, 1000, 768)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cluster.Compute(snap, 0.8, vector.FAISSPairs{})
	}
}

func BenchmarkThumbnailEmbedder_Embed(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.png")
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		b.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		b.Fatal(err)
	}
	f.Close()

	e := embedding.NewThumbnailEmbedder(16)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, path)
	}
}
