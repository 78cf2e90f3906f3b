package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kpalette/internal/cache"
	"kpalette/internal/config"
	"kpalette/internal/imageproc"
	"kpalette/internal/kmeans"
	"kpalette/internal/logutil"
	"kpalette/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Define command line flags
	configPath := flag.String("config", "", "Path to a TOML config file")
	clusters := flag.Int("k", config.DefaultClusters, "Number of palette colours")
	maxIter := flag.Int("max-iter", kmeans.DefaultMaxIterations, "Iteration cap")
	initName := flag.String("init", kmeans.NaiveSharding.String(), "Centroid init: naive-sharding or random-pick")
	seed := flag.Uint64("seed", 0, "Seed for random-pick init and empty-cluster reseeding")
	tolerance := flag.Float64("tolerance", 0, "Per-component convergence tolerance (0 = exact)")
	maxSide := flag.Uint("max-side", 0, "Downscale images so no side exceeds this (0 = off)")
	workers := flag.Int("workers", 0, "Images analysed concurrently (0 = config default)")
	cacheDir := flag.String("cache", "", "LevelDB directory for cached palettes")
	outDir := flag.String("out", "", "Directory for recoloured images and palette swatches")
	plotHTML := flag.Bool("plot", false, "Write scatter plots of the clusters (needs -out)")
	frameAt := flag.String("frame-at", "", "Treat inputs as videos and analyse the frame at this time (HH:MM:SS or seconds)")
	step := flag.Bool("step", false, "Advance one iteration per Enter on stdin (single image)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: console or json")
	logFile := flag.String("log-file", "", "Write logs to a rotating file instead of stderr")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	// Flags given explicitly win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.Clusters = *clusters
		case "max-iter":
			cfg.MaxIterations = *maxIter
		case "init":
			cfg.Init = *initName
		case "seed":
			cfg.Seed = *seed
		case "tolerance":
			cfg.Tolerance = *tolerance
		case "max-side":
			cfg.MaxSide = *maxSide
		case "workers":
			if *workers > 0 {
				cfg.Workers = *workers
			}
		case "cache":
			cfg.CacheDir = *cacheDir
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.Filename = *logFile
		}
	})

	// Validate required arguments
	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one image path is required\n")
		flag.Usage()
		return 2
	}
	if *step && len(paths) != 1 {
		fmt.Fprintf(os.Stderr, "Error: -step works on a single image\n")
		return 2
	}
	if *plotHTML && *outDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -plot needs -out\n")
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger, err := logutil.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer logger.Sync() //nolint:errcheck

	opts, err := cfg.AnalyzerOptions()
	if err != nil {
		logger.Error("invalid options", zap.Error(err))
		return 2
	}

	// Create a context that can be canceled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle termination signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Info("received termination signal, shutting down")
		cancel()
	}()

	r := &runner{
		cfg:      cfg,
		analyzer: imageproc.NewAnalyzer(opts, logger),
		outDir:   *outDir,
		plot:     *plotHTML,
		frameAt:  *frameAt,
		log:      logger,
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			logger.Error("cannot create output directory", zap.String("dir", *outDir), zap.Error(err))
			return 1
		}
	}
	if cfg.CacheDir != "" {
		store, err := cache.Open(cfg.CacheDir, logger)
		if err != nil {
			logger.Error("cannot open cache", zap.Error(err))
			return 1
		}
		defer store.Close()
		r.cache = store
	}

	var reports []Report
	if *step {
		rep, err := r.interactive(ctx, paths[0], os.Stdin, os.Stderr)
		if err != nil {
			logger.Error("interactive run failed", zap.String("path", paths[0]), zap.Error(err))
			return exitCode(err)
		}
		reports = []Report{rep}
	} else {
		logger.Info("starting analysis", zap.Int("images", len(paths)), zap.Int("workers", cfg.Workers))
		reports, err = worker.Map(ctx, paths, cfg.Workers, r.analyzeFile)
		if err != nil {
			logger.Error("analysis aborted", zap.Error(err))
			return 1
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		logger.Error("cannot write report", zap.Error(err))
		return 1
	}

	for _, rep := range reports {
		if rep.Error != "" {
			return 1
		}
	}
	return 0
}

func exitCode(err error) int {
	if kmeans.IsInputError(err) || errors.Is(err, os.ErrNotExist) {
		return 2
	}
	return 1
}
