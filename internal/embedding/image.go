package embedding

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage opens and decodes the image at path. JPEG, PNG, GIF, BMP, TIFF and WebP
// are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// Resize scales img to exactly width x height (aspect ratio is not preserved).
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// PixelValues resizes img to size x size and returns its pixels as a planar
// channel-first (CHW) float tensor, each channel normalized as (v/255 - mean) / std.
func PixelValues(img image.Image, size int, mean, std [3]float32) []float32 {
	rgba := Resize(img, size, size)
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := rgba.PixOffset(x, y)
			i := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(rgba.Pix[off+c]) / 255
				out[c*plane+i] = (v - mean[c]) / std[c]
			}
		}
	}
	return out
}
