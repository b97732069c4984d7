// Package e2e provides end-to-end tests over a generated folder of near-duplicate images.
package e2e

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
)

// Fixture is one file of the corpus.
type Fixture struct {
	RelPath string
	// Family groups near-duplicates; -1 marks an image unlike any other.
	Family int
	Image  image.Image
	// Raw, when set, is written verbatim instead of encoding Image.
	Raw []byte
}

// Corpus is a folder layout with known clusters.
type Corpus struct {
	Fixtures []Fixture
	Families int
}

const (
	patternSize   = 64
	patternBlocks = 8
)

// BuildCorpus returns families groups of four near-duplicates each, singles distinct
// images, one corrupt JPEG and one text file. Variants of a family are spread over
// subfolders and formats: the original PNG, an upscaled PNG, a JPEG re-encode and a
// brightened BMP.
func BuildCorpus(families, singles int) *Corpus {
	c := &Corpus{Families: families}
	for f := 0; f < families; f++ {
		base := blockPattern(int64(100+f), patternSize, patternBlocks)
		dir := fmt.Sprintf("family-%02d", f)
		c.Fixtures = append(c.Fixtures,
			Fixture{RelPath: filepath.Join(dir, "original.png"), Family: f, Image: base},
			Fixture{RelPath: filepath.Join(dir, "large.png"), Family: f, Image: upscale(base, 3, 2)},
			Fixture{RelPath: filepath.Join(dir, "reencoded.jpg"), Family: f, Image: base},
			Fixture{RelPath: filepath.Join("edits", dir+"-bright.bmp"), Family: f, Image: brighten(base, 8)},
		)
	}
	exts := []string{".png", ".gif", ".tif"}
	for s := 0; s < singles; s++ {
		c.Fixtures = append(c.Fixtures, Fixture{
			RelPath: filepath.Join("singles", fmt.Sprintf("single-%02d%s", s, exts[s%len(exts)])),
			Family:  -1,
			Image:   blockPattern(int64(900+s), patternSize, patternBlocks),
		})
	}
	c.Fixtures = append(c.Fixtures,
		Fixture{RelPath: "broken.jpg", Family: -1, Raw: []byte("not really a jpeg")},
		Fixture{RelPath: "readme.txt", Family: -1, Raw: []byte("ignored by the allow-list")},
	)
	return c
}

// WriteTo writes every fixture under root.
func (c *Corpus) WriteTo(root string) error {
	for _, f := range c.Fixtures {
		path := filepath.Join(root, f.RelPath)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		data := f.Raw
		if data == nil {
			var err error
			if data, err = EncodeImage(filepath.Ext(path), f.Image); err != nil {
				return fmt.Errorf("encode %s: %w", f.RelPath, err)
			}
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// ExpectedClusters returns the sorted rel paths of each family.
func (c *Corpus) ExpectedClusters() [][]string {
	groups := make([][]string, c.Families)
	for _, f := range c.Fixtures {
		if f.Family >= 0 {
			groups[f.Family] = append(groups[f.Family], f.RelPath)
		}
	}
	for _, g := range groups {
		sort.Strings(g)
	}
	return groups
}

// Singletons returns the sorted rel paths of decodable images that belong to no family.
func (c *Corpus) Singletons() []string {
	var out []string
	for _, f := range c.Fixtures {
		if f.Family < 0 && f.Raw == nil {
			out = append(out, f.RelPath)
		}
	}
	sort.Strings(out)
	return out
}

// Broken returns the rel paths of files with an image extension that cannot be decoded.
func (c *Corpus) Broken() []string {
	var out []string
	for _, f := range c.Fixtures {
		if f.Raw != nil && filepath.Ext(f.RelPath) != ".txt" {
			out = append(out, f.RelPath)
		}
	}
	return out
}

// blockPattern draws a blocks x blocks grid of random colors, size pixels square.
func blockPattern(seed int64, size, blocks int) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	palette := make([]color.RGBA, blocks*blocks)
	for i := range palette {
		palette[i] = color.RGBA{R: uint8(r.Intn(256)), G: uint8(r.Intn(256)), B: uint8(r.Intn(256)), A: 255}
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / blocks
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, palette[(y/cell)*blocks+x/cell])
		}
	}
	return img
}

// upscale scales src by num/den with nearest-neighbour sampling.
func upscale(src *image.RGBA, num, den int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx()*num/den, b.Dy()*num/den
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetRGBA(x, y, src.RGBAAt(x*den/num, y*den/num))
		}
	}
	return dst
}

func brighten(src *image.RGBA, delta int) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(src.Pix[i+c]) + delta
			if v > 255 {
				v = 255
			}
			dst.Pix[i+c] = uint8(v)
		}
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}
