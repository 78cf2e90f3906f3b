// Package config loads the TOML configuration of the analyze command.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"kpalette/internal/imageproc"
	"kpalette/internal/kmeans"
	"kpalette/internal/logutil"
)

// DefaultClusters is the palette size used when none is configured.
const DefaultClusters = 15

// Config holds every tunable of a palette run.
type Config struct {
	Clusters      int     `toml:"clusters"`
	MaxIterations int     `toml:"max_iterations"`
	Init          string  `toml:"init"`
	Seed          uint64  `toml:"seed"`
	Tolerance     float64 `toml:"tolerance"`
	// MaxSide downsizes larger images before extraction. Zero keeps the
	// original size.
	MaxSide  uint   `toml:"max_side"`
	Workers  int    `toml:"workers"`
	CacheDir string `toml:"cache_dir"`

	Log logutil.Config `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Clusters:      DefaultClusters,
		MaxIterations: kmeans.DefaultMaxIterations,
		Init:          kmeans.NaiveSharding.String(),
		Workers:       runtime.GOMAXPROCS(0),
		Log:           logutil.DefaultConfig(),
	}
}

// Load decodes the file at path over the defaults. Unknown keys are an
// error so that typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("error decoding config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks ranges and the init strategy name.
func (c Config) Validate() error {
	if c.Clusters < 1 {
		return fmt.Errorf("clusters must be at least 1, got %d", c.Clusters)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative, got %d", c.MaxIterations)
	}
	if !kmeans.ValidTolerance(c.Tolerance) {
		return fmt.Errorf("tolerance must be a finite non-negative number, got %g", c.Tolerance)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := kmeans.ParseStrategy(c.Init); err != nil {
		return err
	}
	return nil
}

// AnalyzerOptions converts the config into analyzer options.
func (c Config) AnalyzerOptions() (imageproc.Options, error) {
	strategy, err := kmeans.ParseStrategy(c.Init)
	if err != nil {
		return imageproc.Options{}, err
	}
	return imageproc.Options{
		Clusters:      c.Clusters,
		MaxIterations: c.MaxIterations,
		Strategy:      strategy,
		Tolerance:     c.Tolerance,
		Seed:          c.Seed,
		MaxSide:       c.MaxSide,
	}, nil
}
