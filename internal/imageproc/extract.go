package imageproc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/nfnt/resize"

	"kpalette/internal/kmeans"
)

// Source is a decoded image together with a digest of its encoded bytes.
type Source struct {
	Path   string
	Digest string
	Format string
	Image  image.Image
}

// Load reads and decodes the image at path.
func Load(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading image: %w", err)
	}
	return Decode(path, raw)
}

// Decode decodes an encoded image that was read from name.
func Decode(name string, raw []byte) (*Source, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("error decoding image %s: %w", name, err)
	}
	sum := sha256.Sum256(raw)
	return &Source{
		Path:   name,
		Digest: hex.EncodeToString(sum[:]),
		Format: format,
		Image:  img,
	}, nil
}

// Downscale shrinks img so neither side exceeds maxSide, keeping the aspect
// ratio. Images already within bounds, or a maxSide of 0, are returned as is.
func Downscale(img image.Image, maxSide uint) image.Image {
	if maxSide == 0 {
		return img
	}
	b := img.Bounds()
	if uint(b.Dx()) <= maxSide && uint(b.Dy()) <= maxSide {
		return img
	}
	return resize.Thumbnail(maxSide, maxSide, img, resize.Lanczos3)
}

// ExtractDataset returns the distinct RGB colours of img in row-major order
// of first appearance. Alpha is discarded.
func ExtractDataset(img image.Image) kmeans.Dataset {
	b := img.Bounds()
	set := kmeans.NewPointSet()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := rgbAt(img, x, y)
			set.Add(kmeans.Point{float64(c[0]), float64(c[1]), float64(c[2])})
		}
	}
	return set.Points()
}

func rgbAt(img image.Image, x, y int) [3]uint8 {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return [3]uint8{c.R, c.G, c.B}
}
