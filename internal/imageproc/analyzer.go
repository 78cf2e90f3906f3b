// Package imageproc turns images into colour datasets for k-means and
// renders the clustering result back into palettes and recoloured images.
package imageproc

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"kpalette/internal/kmeans"
)

// Options configures an Analyzer.
type Options struct {
	Clusters      int
	MaxIterations int
	Strategy      kmeans.Strategy
	Tolerance     float64
	// Seed feeds a fresh random source for every analysed image.
	Seed uint64
	// MaxSide bounds the image before extraction. Zero disables downscaling.
	MaxSide uint
}

// DefaultOptions mirrors kmeans.DefaultOptions with a 15 colour palette.
func DefaultOptions() Options {
	return Options{
		Clusters:      15,
		MaxIterations: kmeans.DefaultMaxIterations,
		Strategy:      kmeans.NaiveSharding,
	}
}

// Analysis is the outcome of clustering one image.
type Analysis struct {
	Width     int
	Height    int
	Dataset   kmeans.Dataset
	Result    kmeans.Result
	Palette   []Swatch
	Recolored *image.NRGBA
}

// Analyzer extracts palettes from images. It is safe for concurrent use;
// every call clusters with its own random source.
type Analyzer struct {
	opts Options
	log  *zap.Logger
}

// NewAnalyzer returns an Analyzer. A nil logger disables logging.
func NewAnalyzer(opts Options, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{opts: opts, log: log}
}

// Options returns the analyzer configuration.
func (a *Analyzer) Options() Options { return a.opts }

func (a *Analyzer) kmeansOptions() kmeans.Options {
	return kmeans.Options{
		MaxIterations: a.opts.MaxIterations,
		Strategy:      a.opts.Strategy,
		Tolerance:     a.opts.Tolerance,
		Rand:          kmeans.NewRand(a.opts.Seed),
	}
}

// prepare downsizes img and extracts its dataset.
func (a *Analyzer) prepare(img image.Image) (image.Image, kmeans.Dataset) {
	scaled := Downscale(img, a.opts.MaxSide)
	if scaled.Bounds() != img.Bounds() {
		a.log.Debug("downscaled image",
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()),
			zap.Int("scaled_width", scaled.Bounds().Dx()),
			zap.Int("scaled_height", scaled.Bounds().Dy()),
		)
	}
	ds := ExtractDataset(scaled)
	a.log.Debug("extracted colours", zap.Int("distinct", len(ds)))
	return scaled, ds
}

// Analyze clusters the colours of img and builds the palette and the
// recoloured image.
func (a *Analyzer) Analyze(img image.Image) (*Analysis, error) {
	start := time.Now()
	scaled, ds := a.prepare(img)

	res, err := kmeans.Run(ds, a.opts.Clusters, a.kmeansOptions())
	if err != nil {
		return nil, fmt.Errorf("error clustering %d colours into %d clusters: %w", len(ds), a.opts.Clusters, err)
	}

	an := a.finish(scaled, ds, res)
	a.log.Info("palette extracted",
		zap.Int("colours", len(ds)),
		zap.Int("k", a.opts.Clusters),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Duration("elapsed", time.Since(start)),
	)
	if !res.Converged {
		a.log.Warn("iteration cap reached before convergence", zap.Int("max_iterations", a.opts.MaxIterations))
	}
	return an, nil
}

func (a *Analyzer) finish(img image.Image, ds kmeans.Dataset, res kmeans.Result) *Analysis {
	b := img.Bounds()
	return &Analysis{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Dataset:   ds,
		Result:    res,
		Palette:   Palette(res, img),
		Recolored: Recolor(img, res),
	}
}

// Stepper clusters one image a single iteration at a time.
type Stepper struct {
	a     *Analyzer
	img   image.Image
	state kmeans.State
}

// NewStepper prepares img and initialises the centroids without running
// any iteration.
func (a *Analyzer) NewStepper(img image.Image) (*Stepper, error) {
	scaled, ds := a.prepare(img)
	st, err := kmeans.NewState(ds, a.opts.Clusters, a.kmeansOptions())
	if err != nil {
		return nil, fmt.Errorf("error initialising %d clusters over %d colours: %w", a.opts.Clusters, len(ds), err)
	}
	return &Stepper{a: a, img: scaled, state: st}, nil
}

// Step runs one iteration, or marks the run stopped, and reports whether the
// run is done.
func (s *Stepper) Step() (bool, error) {
	st, err := kmeans.Step(s.state)
	if err != nil {
		return false, err
	}
	s.state = st
	s.a.log.Debug("iteration",
		zap.Int("iteration", st.Iterations),
		zap.Bool("stopped", st.Stopped),
	)
	return st.Done(), nil
}

// State returns the current iteration state.
func (s *Stepper) State() kmeans.State { return s.state }

// Analysis builds the palette from the current state.
func (s *Stepper) Analysis() *Analysis {
	return s.a.finish(s.img, s.state.Dataset, s.state.Result())
}
