// Package main is the ruiji CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/client"
	"github.com/hyperjump/ruiji/internal/cluster"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/export"
	"github.com/hyperjump/ruiji/internal/job"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/watcher"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and ./config.yaml
// exists, that file is used instead so "ruiji server" from a project dir picks it up.
// A missing default config is not an error; built-in defaults apply.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := reorderArgs(os.Args[2:])
	switch command {
	case "server":
		runServer(args)
	case "run":
		runLocal(args)
	case "start":
		runStart(args)
	case "progress":
		runProgress(args)
	case "clusters":
		runClusters(args)
	case "unclustered":
		runUnclustered(args)
	case "export":
		runExport(args)
	case "failures":
		runFailures(args)
	case "history":
		runHistory(args)
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// reorderArgs moves flags that appear after positional arguments to the front
// so flag.Parse sees them ("ruiji start ~/Photos -ext .heic").
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// splitExtensions parses a comma-separated extension list. Empty input yields nil.
func splitExtensions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseThresholdFlag returns nil for an empty flag so the server default applies.
func parseThresholdFlag(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := cluster.ParseThreshold(s, 0)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func outputFlag(fs *flag.FlagSet) *string {
	return fs.String("output", "text", "output format: text or json")
}

func serverFlag(fs *flag.FlagSet) *string {
	return fs.String("server", defaultServerURL, "ruiji server URL")
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file events, per-image embedding, etc.)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watch server.WatchService
	if cfg.Watch.EnabledOrDefault() {
		session := components.Session
		w := watcher.New(func(path string) {
			logger.Debug("job folder changed", zap.String("path", path))
			session.MarkStale()
		}, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		watch = w
	}

	srv := server.NewServer(components.Session, components.Exporter, components.History, watch, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
}

// runLocal runs a job in-process and prints the clusters, without a server.
func runLocal(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	exts := fs.String("ext", "", "extra extensions, comma-separated (added to the configured list)")
	thresholdStr := fs.String("threshold", "", "similarity threshold in [0,1] (default from config)")
	sortBy := fs.String("sort-by", "", "also list unclustered images sorted by name or date_of_creation")
	output := outputFlag(fs)
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatalf("Usage: ruiji run [flags] <folder>")
	}
	format := mustFormat(*output)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	threshold := cfg.Cluster.ThresholdOrDefault()
	if t, err := parseThresholdFlag(*thresholdStr); err != nil {
		fatalf("%v", err)
	} else if t != nil {
		threshold = *t
	}
	var order cluster.SortBy
	if *sortBy != "" {
		if order, err = cluster.ParseSortBy(*sortBy); err != nil {
			fatalf("%v", err)
		}
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	session := components.Session

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := session.Start(fs.Arg(0), splitExtensions(*exts)); err != nil {
		fatalf("Failed to start job: %v", err)
	}
	if err := waitWithProgress(ctx, session); err != nil {
		_ = session.Close()
	}

	root, clusters, err := session.RootedClusters(threshold)
	if err != nil {
		fatalf("%v", err)
	}
	resp := &models.ClustersResponse{Threshold: threshold, Count: len(clusters), Clusters: make([][]models.ImageRef, len(clusters))}
	for i, c := range clusters {
		resp.Clusters[i] = models.NewImageRefs(root, c)
	}
	if err := cli.WriteClusters(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}

	if *sortBy != "" {
		paths, err := session.Unclustered(threshold, order)
		if err != nil {
			fatalf("%v", err)
		}
		rest := &models.UnclusteredResponse{Threshold: threshold, SortBy: order.String(), Count: len(paths), Images: models.NewImageRefs(root, paths)}
		if err := cli.WriteUnclustered(os.Stdout, rest, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}
	if failed := session.Status().Failed; failed > 0 {
		fmt.Fprintf(os.Stderr, "%d files could not be embedded (see logs)\n", failed)
	}
}

// waitWithProgress prints progress to stderr once a second until the job ends.
func waitWithProgress(ctx context.Context, session *job.Session) error {
	done := make(chan error, 1)
	go func() { done <- session.Wait(ctx) }()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			p := session.Status().Progress
			fmt.Fprintf(os.Stderr, "\r%3d%% %d/%d\n", p.Percent(), p.Processed, p.Total)
			return err
		case <-ticker.C:
			p := session.Status().Progress
			fmt.Fprintf(os.Stderr, "\r%3d%% %d/%d  time left %s", p.Percent(), p.Processed, p.Total, p.TimeLeft())
		}
	}
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	serverURL := serverFlag(fs)
	exts := fs.String("ext", "", "extra extensions, comma-separated (added to the server's list)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatalf("Usage: ruiji start [flags] <folder>")
	}
	folder, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fatalf("Invalid folder: %v", err)
	}
	resp, err := client.New(*serverURL).StartJob(context.Background(), folder, splitExtensions(*exts))
	if err != nil {
		fatalf("Start failed: %v", err)
	}
	fmt.Printf("Job %s started on %s\n", resp.RunID, resp.Root)
}

func runProgress(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := mustFormat(*output)
	resp, err := client.New(*serverURL).Progress(context.Background())
	if err != nil {
		fatalf("Progress failed: %v", err)
	}
	if err := cli.WriteProgress(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runClusters(args []string) {
	fs := flag.NewFlagSet("clusters", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	thresholdStr := fs.String("threshold", "", "similarity threshold in [0,1] (default from server config)")
	_ = fs.Parse(args)
	format := mustFormat(*output)
	threshold, err := parseThresholdFlag(*thresholdStr)
	if err != nil {
		fatalf("%v", err)
	}
	resp, err := client.New(*serverURL).Clusters(context.Background(), threshold)
	if err != nil {
		fatalf("Clusters failed: %v", err)
	}
	if err := cli.WriteClusters(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runUnclustered(args []string) {
	fs := flag.NewFlagSet("unclustered", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	thresholdStr := fs.String("threshold", "", "similarity threshold in [0,1] (default from server config)")
	sortBy := fs.String("sort-by", "name", "name or date_of_creation")
	_ = fs.Parse(args)
	format := mustFormat(*output)
	threshold, err := parseThresholdFlag(*thresholdStr)
	if err != nil {
		fatalf("%v", err)
	}
	resp, err := client.New(*serverURL).Unclustered(context.Background(), threshold, *sortBy)
	if err != nil {
		fatalf("Unclustered failed: %v", err)
	}
	if err := cli.WriteUnclustered(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := mustFormat(*output)
	if fs.NArg() == 0 {
		fatalf("Usage: ruiji export [flags] <path>...")
	}
	resp, err := client.New(*serverURL).Export(context.Background(), fs.Args())
	if err != nil {
		fatalf("Export failed: %v", err)
	}
	if err := cli.WriteExport(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runFailures(args []string) {
	fs := flag.NewFlagSet("failures", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := mustFormat(*output)
	resp, err := client.New(*serverURL).Failures(context.Background())
	if err != nil {
		fatalf("Failures failed: %v", err)
	}
	if err := cli.WriteFailures(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := serverFlag(fs)
	output := outputFlag(fs)
	limit := fs.Int("limit", 20, "number of runs to show")
	_ = fs.Parse(args)
	format := mustFormat(*output)
	resp, err := client.New(*serverURL).History(context.Background(), *limit)
	if err != nil {
		fatalf("History failed: %v", err)
	}
	if err := cli.WriteHistory(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	History  *storage.SQLiteStorage
	Session  *job.Session
	Exporter *export.Exporter
}

// Close stops any running job before releasing the embedder and history database.
func (c *Components) Close() {
	if c.Session != nil {
		_ = c.Session.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.History != nil {
		_ = c.History.Close()
	}
}

// newEmbedder builds the configured embedder. An ONNX model that cannot be loaded
// falls back to the thumbnail descriptor.
func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	e := cfg.Embedding
	var embedder embedding.Embedder
	if e.Provider == config.ProviderONNX {
		onnxCfg := embedding.ONNXConfig{
			ModelPath:  e.ModelPath,
			Dimensions: e.Dimensions,
			ImageSize:  e.ImageSize,
			InputName:  e.InputName,
			OutputName: e.OutputName,
		}
		copy(onnxCfg.Mean[:], e.Mean)
		copy(onnxCfg.Std[:], e.Std)
		onnxEmbedder, err := embedding.NewONNXEmbedder(onnxCfg)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to thumbnail descriptor",
				zap.String("model_path", e.ModelPath), zap.Error(err))
		} else {
			embedder = onnxEmbedder
		}
	}
	if embedder == nil {
		embedder = embedding.NewThumbnailEmbedder(e.ThumbnailGrid)
	}
	logger.Info("embedder initialized",
		zap.String("provider", e.Provider),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.Int("cache_size", e.CacheSize))
	return embedding.NewCachedEmbedder(embedder, e.CacheSize)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	history, err := storage.NewSQLiteStorage(cfg.Storage.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	embedder := newEmbedder(cfg, logger)
	pairs, err := cluster.NewPairSource(cfg.Cluster.PairSource)
	if err != nil {
		logger.Warn("pair source unavailable, falling back to brute force",
			zap.String("requested", cfg.Cluster.PairSource), zap.Error(err))
		pairs = cluster.BruteForce{}
	}
	session := job.NewSession(embedder,
		job.WithLogger(logger),
		job.WithRecorder(history),
		job.WithDefaultExtensions(cfg.Job.Extensions),
		job.WithPairSource(pairs),
	)
	exporter := export.New(
		export.WithLogger(logger),
		export.WithSuffix(cfg.Export.Suffix),
		export.WithWorkers(cfg.Export.Workers),
	)
	return &Components{
		Embedder: embedder,
		History:  history,
		Session:  session,
		Exporter: exporter,
	}, nil
}

func printUsage() {
	fmt.Println(`ruiji - Find near-duplicate images in a folder

Usage:
  ruiji server [flags]               Start the HTTP server
  ruiji run [flags] <folder>         Embed a folder locally and print its clusters
  ruiji start [flags] <folder>       Start a job on a running server
  ruiji progress [flags]             Show job progress
  ruiji clusters [flags]             List groups of similar images
  ruiji unclustered [flags]          List images that belong to no group
  ruiji export [flags] <path>...     Copy selected images to <folder>_copy
  ruiji failures [flags]             List files that could not be embedded
  ruiji history [flags]              List past job runs
  ruiji version                      Show version
  ruiji help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging

Run Flags:
  --config string     Config file path
  --ext string        Extra extensions, comma-separated
  --threshold float   Similarity threshold in [0,1] (default from config, 0.8)
  --sort-by string    Also list unclustered images: name or date_of_creation
  --output string     Output format: text or json (default: text)

Client Flags (start, progress, clusters, unclustered, export, failures, history):
  --server string     Server URL (default: http://localhost:8080)
  --output string     Output format: text or json (default: text)
  --threshold float   clusters, unclustered: similarity threshold
  --sort-by string    unclustered: name or date_of_creation (default: name)
  --ext string        start: extra extensions, comma-separated
  --limit int         history: number of runs (default: 20)

Examples:
  ruiji server
  ruiji run --threshold 0.9 ~/Pictures/trip
  ruiji start ~/Pictures/trip --ext .heic,.webp
  ruiji clusters --threshold 0.85
  ruiji unclustered --sort-by date_of_creation
  ruiji export IMG_0001.jpg IMG_0002.jpg`)
}
