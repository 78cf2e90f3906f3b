package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"kpalette/internal/cache"
	"kpalette/internal/config"
	"kpalette/internal/ffmpeg"
	"kpalette/internal/imageproc"
	"kpalette/internal/kmeans"
	"kpalette/internal/plot"
)

// swatchSize is the edge length of one palette square in pixels.
const swatchSize = 20

// Report is the JSON summary printed for every image.
type Report struct {
	Path       string             `json:"path"`
	Digest     string             `json:"digest,omitempty"`
	Width      int                `json:"width,omitempty"`
	Height     int                `json:"height,omitempty"`
	Colors     int                `json:"colors,omitempty"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	Cached     bool               `json:"cached,omitempty"`
	Palette    []imageproc.Swatch `json:"palette,omitempty"`
	Outputs    []string           `json:"outputs,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type runner struct {
	cfg      config.Config
	analyzer *imageproc.Analyzer
	cache    *cache.Store
	outDir   string
	plot     bool
	// frameAt treats inputs as videos and analyses the frame at this time.
	frameAt string
	log     *zap.Logger
}

func (r *runner) params() cache.Params {
	return cache.Params{
		Clusters:      r.cfg.Clusters,
		MaxIterations: r.cfg.MaxIterations,
		Strategy:      r.cfg.Init,
		Seed:          r.cfg.Seed,
		Tolerance:     r.cfg.Tolerance,
		MaxSide:       r.cfg.MaxSide,
	}
}

// analyzeFile produces the report of one image. Failures specific to the
// image end up in Report.Error so the rest of the batch carries on; only
// cancellation is returned as an error.
func (r *runner) analyzeFile(ctx context.Context, path string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	log := r.log.With(zap.String("path", path))

	rep, err := r.process(ctx, path, log)
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		return Report{Path: path, Error: err.Error()}, nil
	}
	return rep, nil
}

// load decodes path, or grabs a frame from it when frameAt is set.
func (r *runner) load(ctx context.Context, path string) (*imageproc.Source, error) {
	if r.frameAt == "" {
		return imageproc.Load(path)
	}
	raw, err := ffmpeg.ExtractFrame(ctx, path, r.frameAt, r.log)
	if err != nil {
		return nil, fmt.Errorf("error extracting frame at %s: %w", r.frameAt, err)
	}
	return imageproc.Decode(path, raw)
}

func (r *runner) process(ctx context.Context, path string, log *zap.Logger) (Report, error) {
	src, err := r.load(ctx, path)
	if err != nil {
		return Report{}, err
	}

	key := cache.Key(src.Digest, r.params())
	if r.cache != nil && r.outDir == "" {
		var rep Report
		switch err := r.cache.Get(key, &rep); {
		case err == nil:
			rep.Path = path
			rep.Cached = true
			return rep, nil
		case !errors.Is(err, os.ErrNotExist):
			log.Warn("ignoring unreadable cache entry", zap.Error(err))
		}
	}

	an, err := r.analyzer.Analyze(src.Image)
	if err != nil {
		return Report{}, err
	}
	rep := newReport(path, src.Digest, an)

	if r.cache != nil {
		if err := r.cache.Put(key, rep); err != nil {
			log.Warn("cannot cache report", zap.Error(err))
		}
	}
	if r.outDir != "" {
		if rep.Outputs, err = r.writeOutputs(path, an); err != nil {
			return Report{}, err
		}
	}
	return rep, nil
}

func newReport(path, digest string, an *imageproc.Analysis) Report {
	return Report{
		Path:       path,
		Digest:     digest,
		Width:      an.Width,
		Height:     an.Height,
		Colors:     len(an.Dataset),
		Iterations: an.Result.Iterations,
		Converged:  an.Result.Converged,
		Palette:    an.Palette,
	}
}

// writeOutputs saves the recoloured image, the palette strip and, if
// requested, the scatter plots next to each other in the output directory.
func (r *runner) writeOutputs(path string, an *imageproc.Analysis) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	recolored := filepath.Join(r.outDir, base+"_recolored.png")
	palette := filepath.Join(r.outDir, base+"_palette.png")

	if err := imageproc.SavePNG(recolored, an.Recolored); err != nil {
		return nil, err
	}
	if err := imageproc.SavePNG(palette, imageproc.SwatchStrip(an.Palette, swatchSize)); err != nil {
		return nil, err
	}
	outputs := []string{recolored, palette}

	if r.plot {
		name := filepath.Join(r.outDir, base+"_clusters.html")
		file, err := os.Create(name)
		if err != nil {
			return nil, fmt.Errorf("error creating plot file: %w", err)
		}
		if err := plot.Render(file, an.Result, plot.RGBAxes); err != nil {
			file.Close()
			return nil, err
		}
		if err := file.Close(); err != nil {
			return nil, err
		}
		outputs = append(outputs, name)
	}
	return outputs, nil
}

// interactive clusters one image, advancing an iteration for every line read
// from in. Once in is exhausted the remaining iterations run unattended.
func (r *runner) interactive(ctx context.Context, path string, in io.Reader, out io.Writer) (Report, error) {
	src, err := r.load(ctx, path)
	if err != nil {
		return Report{}, err
	}
	stepper, err := r.analyzer.NewStepper(src.Image)
	if err != nil {
		return Report{}, err
	}

	st := stepper.State()
	fmt.Fprintf(out, "%d colours, %d clusters. Press Enter to advance.\n", len(st.Dataset), st.K)

	lines, readErr := readLines(ctx, in)
	waiting := true
	for {
		st = stepper.State()
		fmt.Fprintf(out, "iteration %d out of %d max  %s\n", st.Iterations, st.MaxIterations(), hexes(st.Current))

		if waiting {
			select {
			case <-ctx.Done():
				return Report{}, ctx.Err()
			case _, ok := <-lines:
				if !ok {
					if err := <-readErr; err != nil {
						return Report{}, fmt.Errorf("error reading input: %w", err)
					}
					waiting = false
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		done, err := stepper.Step()
		if err != nil {
			return Report{}, err
		}
		if done {
			break
		}
	}

	an := stepper.Analysis()
	fmt.Fprintf(out, "generated palette: %s (converged: %t)\n", hexes(an.Result.Centroids), an.Result.Converged)

	rep := newReport(path, src.Digest, an)
	if r.outDir != "" {
		if rep.Outputs, err = r.writeOutputs(path, an); err != nil {
			return Report{}, err
		}
	}
	return rep, nil
}

// readLines signals every line read from in on the returned channel and
// closes it at end of input, after sending the scanner error (if any) on the
// second channel. A read blocked on in outlives ctx until in delivers data
// or is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan struct{}, <-chan error) {
	lines := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func hexes(c kmeans.Centroids) string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = imageproc.Hex(p)
	}
	return strings.Join(parts, " ")
}
