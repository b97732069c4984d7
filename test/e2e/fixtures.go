// Package e2e provides end-to-end tests; this file encodes fixture images in every supported format.
package e2e

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// SupportedFormats lists the encodings used by the E2E corpus. ".tif" is not in the
// default allow-list, so jobs must add it explicitly.
var SupportedFormats = []string{".png", ".jpg", ".gif", ".bmp", ".tif"}

// EncodeImage encodes img in the format named by ext.
func EncodeImage(ext string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".png":
		err = png.Encode(&buf, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".tif", ".tiff":
		err = tiff.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
