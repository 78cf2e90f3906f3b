package imageproc

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"kpalette/internal/kmeans"
)

// Swatch is one palette entry derived from a cluster.
type Swatch struct {
	Cluster    int      `json:"cluster"`
	Color      [3]uint8 `json:"color"`
	Hex        string   `json:"hex"`
	Hue        float64  `json:"hue"`
	Saturation float64  `json:"saturation"`
	Lightness  float64  `json:"lightness"`
	Colors     int      `json:"colors"`
	Pixels     int      `json:"pixels"`
	Proportion float64  `json:"proportion"`
}

// colorIndex maps every clustered colour to its cluster.
type colorIndex struct {
	clusters  map[[3]uint8]int
	centroids kmeans.Centroids
}

func newColorIndex(res kmeans.Result) *colorIndex {
	idx := &colorIndex{
		clusters:  make(map[[3]uint8]int),
		centroids: res.Clusters.Centroids(),
	}
	for i, c := range res.Clusters {
		for _, p := range c.Points {
			idx.clusters[ToRGB(p)] = i
		}
	}
	return idx
}

// lookup returns the cluster of c, falling back to the nearest centroid for
// colours that were not part of the clustered dataset.
func (idx *colorIndex) lookup(c [3]uint8) int {
	if i, ok := idx.clusters[c]; ok {
		return i
	}
	i := kmeans.Nearest(kmeans.Point{float64(c[0]), float64(c[1]), float64(c[2])}, idx.centroids)
	idx.clusters[c] = i
	return i
}

// Palette turns a clustering result into swatches sorted by proportion in
// descending order. Pixels of img are counted per cluster; with a nil img
// the proportions are weighted by distinct colours instead. Swatch colours
// come from the latest centroids, which differ from the centroids the
// clusters were assigned with when a run stopped at its iteration cap.
func Palette(res kmeans.Result, img image.Image) []Swatch {
	k := len(res.Clusters)
	if k == 0 {
		return nil
	}

	counts := make([]int, k)
	if img != nil {
		idx := newColorIndex(res)
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				counts[idx.lookup(rgbAt(img, x, y))]++
			}
		}
	} else {
		copy(counts, res.Clusters.Sizes())
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	swatches := make([]Swatch, k)
	for i, c := range res.Clusters {
		centre := c.Centroid
		if len(res.Centroids) == k {
			centre = res.Centroids[i]
		}
		rgb := ToRGB(centre)
		col := colorful.Color{
			R: float64(rgb[0]) / 255.0,
			G: float64(rgb[1]) / 255.0,
			B: float64(rgb[2]) / 255.0,
		}
		h, s, l := col.Hsl()
		swatches[i] = Swatch{
			Cluster:    i,
			Color:      rgb,
			Hex:        col.Hex(),
			Hue:        h,
			Saturation: s,
			Lightness:  l,
			Colors:     len(c.Points),
			Pixels:     counts[i],
		}
		if total > 0 {
			swatches[i].Proportion = float64(counts[i]) / float64(total)
		}
	}

	sortByProportion(swatches)
	return swatches
}

// sortByProportion orders swatches by proportion, largest first. Equal
// proportions keep cluster order.
func sortByProportion(swatches []Swatch) {
	sort.SliceStable(swatches, func(i, j int) bool {
		return swatches[i].Proportion > swatches[j].Proportion
	})
}

// ToRGB rounds a centroid to an 8-bit colour, clamping each channel.
func ToRGB(p kmeans.Point) [3]uint8 {
	var rgb [3]uint8
	for i := 0; i < 3 && i < len(p); i++ {
		v := math.Round(p[i])
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		rgb[i] = uint8(v)
	}
	return rgb
}

// Hex formats a centroid as a #rrggbb string.
func Hex(p kmeans.Point) string {
	rgb := ToRGB(p)
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
