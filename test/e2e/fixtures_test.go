package e2e

import (
	"bytes"
	"image"
	"testing"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func TestEncodeImage_RoundTrip(t *testing.T) {
	src := blockPattern(1, 32, 8)
	for _, ext := range SupportedFormats {
		data, err := EncodeImage(ext, src)
		if err != nil {
			t.Fatalf("EncodeImage(%s): %v", ext, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %s: %v", ext, err)
		}
		if img.Bounds() != src.Bounds() {
			t.Errorf("%s: bounds %v, want %v", ext, img.Bounds(), src.Bounds())
		}
	}
	if _, err := EncodeImage(".heic", src); err == nil {
		t.Error("expected error for unsupported format")
	}
}
