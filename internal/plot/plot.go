// Package plot renders 2-D projections of a clustering result as HTML
// scatter charts.
package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"kpalette/internal/imageproc"
	"kpalette/internal/kmeans"
)

// RGBAxes names the three channels of a colour dataset.
var RGBAxes = []string{"red", "green", "blue"}

// Projections returns one scatter chart per pair of dimensions. Each
// cluster is its own series, drawn in its centroid colour when names are
// RGBAxes, followed by a series holding the centroids.
func Projections(res kmeans.Result, names []string) []*charts.Scatter {
	dim := 0
	if len(res.Centroids) > 0 {
		dim = len(res.Centroids[0])
	}

	var out []*charts.Scatter
	for x := 0; x < dim; x++ {
		for y := x + 1; y < dim; y++ {
			out = append(out, projection(res, x, y, names))
		}
	}
	return out
}

func projection(res kmeans.Result, x, y int, names []string) *charts.Scatter {
	xName, yName := axisName(names, x), axisName(names, y)
	rgb := len(names) == 3 && names[0] == RGBAxes[0]

	xAxis := opts.XAxis{Name: xName}
	yAxis := opts.YAxis{Name: yName}
	if rgb {
		xAxis.Min, xAxis.Max = 0, 255
		yAxis.Min, yAxis.Max = 0, 255
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s / %s", xName, yName),
			Subtitle: fmt.Sprintf("%d clusters, %d iterations", len(res.Centroids), res.Iterations),
		}),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(yAxis),
	)

	for i, c := range res.Clusters {
		data := make([]opts.ScatterData, 0, len(c.Points))
		for _, p := range c.Points {
			data = append(data, opts.ScatterData{Value: []float64{p[x], p[y]}})
		}
		var series []charts.SeriesOpts
		if rgb {
			series = append(series, charts.WithItemStyleOpts(opts.ItemStyle{
				Color: imageproc.Hex(c.Centroid),
			}))
		}
		sc.AddSeries(fmt.Sprintf("Cluster %d", i), data, series...)
	}

	centroids := make([]opts.ScatterData, 0, len(res.Centroids))
	for i, c := range res.Centroids {
		centroids = append(centroids, opts.ScatterData{
			Name:  fmt.Sprintf("centroid %d", i),
			Value: []float64{c[x], c[y]},
		})
	}
	sc.AddSeries("Centroids", centroids, charts.WithItemStyleOpts(opts.ItemStyle{Color: "black"}))
	return sc
}

// Render writes an HTML page holding every projection of res.
func Render(w io.Writer, res kmeans.Result, names []string) error {
	page := components.NewPage()
	for _, sc := range Projections(res, names) {
		page.AddCharts(sc)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("error rendering plot: %w", err)
	}
	return nil
}

func axisName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("x%d", i)
}
