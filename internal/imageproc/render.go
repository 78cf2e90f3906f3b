package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"

	"kpalette/internal/kmeans"
)

// Recolor returns a copy of img with every pixel replaced by the centroid of
// its cluster. Alpha is preserved.
func Recolor(img image.Image, res kmeans.Result) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	idx := newColorIndex(res)

	rgb := make([][3]uint8, len(res.Clusters))
	for i, c := range res.Clusters {
		rgb[i] = ToRGB(c.Centroid)
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			cl := rgb[idx.lookup([3]uint8{c.R, c.G, c.B})]
			out.SetNRGBA(x, y, color.NRGBA{R: cl[0], G: cl[1], B: cl[2], A: c.A})
		}
	}
	return out
}

// SwatchStrip draws the palette as a row of size x size squares.
func SwatchStrip(swatches []Swatch, size int) *image.NRGBA {
	if size < 1 {
		size = 1
	}
	out := image.NewNRGBA(image.Rect(0, 0, size*len(swatches), size))
	for i, s := range swatches {
		r := image.Rect(i*size, 0, (i+1)*size, size)
		fill := color.NRGBA{R: s.Color[0], G: s.Color[1], B: s.Color[2], A: 255}
		draw.Draw(out, r, image.NewUniform(fill), image.Point{}, draw.Src)
	}
	return out
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("error encoding png: %w", err)
	}
	return nil
}

// SavePNG writes img as a PNG file at path.
func SavePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating image file: %w", err)
	}
	if err := EncodePNG(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
