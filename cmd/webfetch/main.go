package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/webfetch/pkg/config"
	"github.com/Sriram-PR/webfetch/pkg/crawl"
	"github.com/Sriram-PR/webfetch/pkg/download"
	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/log"
	"github.com/Sriram-PR/webfetch/pkg/models"
	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/persist"
	"github.com/Sriram-PR/webfetch/pkg/storage"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:], false)
	case "resume":
		runCrawl(os.Args[2:], true)
	case "download":
		runDownload(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("webfetch %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`webfetch - Concurrent site fetcher and bulk downloader

Usage:
  webfetch <command> [options]

Commands:
  crawl     Start a fresh crawl from the configured base URL
  resume    Resume an interrupted crawl from stored state
  download  Bulk-download a list of URLs to disk
  validate  Validate configuration file
  version   Show version info

Run 'webfetch <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, logger *logrus.Logger) *config.AppConfig {
	logger.Infof("Loading configuration from %s", configFile)
	cfg, err := loadConfig(configFile)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		logger.Fatalf("Config invalid: %v", err)
	}
	return cfg
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(logger *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warnf("Received signal %v, shutting down...", sig)
		cancel()
	}()
	return ctx, cancel
}

func startPprof(addr string, logger *logrus.Logger) {
	if addr == "" {
		return
	}
	go func() {
		logger.Infof("pprof listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Warnf("pprof server stopped: %v", err)
		}
	}()
}

// runCrawl handles both crawl and resume subcommands
func runCrawl(args []string, isResume bool) {
	cmdName := "crawl"
	if isResume {
		cmdName = "resume"
	}

	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webfetch %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := log.NewLogger(*logLevel)
	cfg := loadAndValidateConfig(*configFile, logger)
	startPprof(*pprofAddr, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	if isResume && !cfg.EnableStateStore {
		logger.Fatal("resume requires enable_state_store: true in the config")
	}

	var store storage.StateStore
	if cfg.EnableStateStore {
		baseLog := logger.WithField("component", "store")
		badgerStore, err := storage.NewBadgerStore(cfg.StateDir, hostOf(cfg.BaseURL), isResume, baseLog)
		if err != nil {
			logger.Fatalf("State store error: %v", err)
		}
		defer func() {
			if err := badgerStore.Close(); err != nil {
				logger.Errorf("Closing state store: %v", err)
			}
		}()
		go badgerStore.RunGC(ctx, 0)
		store = badgerStore
	}

	runner, err := crawl.NewRunner(cfg, store, logger.WithField("component", "runner"))
	if err != nil {
		logger.Fatalf("Setup error: %v", err)
	}

	if isResume {
		if err := seedFromStore(ctx, store, runner, logger); err != nil {
			logger.Fatalf("Resume scan error: %v", err)
		}
	}

	runErr := runner.Run(ctx)

	summary := runner.Tracker().Summary()
	if summary.TotalErrors > 0 {
		logger.Warnf("Completed with %d tracked errors:", summary.TotalErrors)
		for kind, count := range summary.ByKind {
			logger.Warnf("  %-18s %d", kind, count)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fatalf("Crawl failed: %v", runErr)
	}
}

// seedFromStore requeues incomplete URLs from a previous run.
func seedFromStore(ctx context.Context, store storage.StateStore, runner *crawl.Runner, logger *logrus.Logger) error {
	workChan := make(chan models.WorkItem, 256)
	scanDone := make(chan error, 1)
	go func() {
		_, _, err := store.RequeueIncomplete(ctx, workChan)
		close(workChan)
		scanDone <- err
	}()

	var items []models.WorkItem
	for item := range workChan {
		items = append(items, item)
	}
	if err := <-scanDone; err != nil {
		return err
	}

	if len(items) > 0 {
		logger.Infof("Requeued %d incomplete URLs from previous run", len(items))
		runner.Queue().AddItems(items)
	}
	return nil
}

// runDownload handles the download subcommand: bulk-fetch a URL list.
func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	listFile := fs.String("list", "", "File with one URL per line (or URL<TAB>dest)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webfetch download -list urls.txt [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *listFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -list is required")
		fs.Usage()
		os.Exit(1)
	}

	logger := log.NewLogger(*logLevel)
	cfg := loadAndValidateConfig(*configFile, logger)

	items, err := readDownloadList(*listFile, cfg.OutputDir)
	if err != nil {
		logger.Fatalf("Reading download list: %v", err)
	}
	if len(items) == 0 {
		logger.Info("Download list is empty, nothing to do")
		return
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	client := fetch.NewClient(cfg.HTTPClientSettings, logger)
	tracker := obs.NewErrorTracker(logger.WithField("component", "downloader"))
	dl := download.NewDownloader(
		client,
		tracker,
		cfg.UserAgent,
		cfg.DownloadLimit,
		cfg.ChunkSize,
		fetch.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseRetryDelay},
		cfg.OutputDir,
		logger.WithField("component", "downloader"),
	)

	results := dl.DownloadBatch(ctx, items)
	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}
	logger.Infof("Downloaded %d/%d files", succeeded, len(items))

	if path, err := dl.SaveFailedDownloads(); err == nil && path != "" {
		logger.Infof("Failed downloads written to %s", path)
	}
	if succeeded < len(items) {
		os.Exit(1)
	}
}

// readDownloadList parses the URL list: one URL per line, optionally
// followed by a tab and an explicit destination path.
func readDownloadList(path, outputDir string) ([]download.Item, error) {
	lines, err := persist.ReadLines(path)
	if err != nil {
		return nil, err
	}

	var items []download.Item
	for _, line := range lines {
		rawURL, dest, hasDest := strings.Cut(line, "\t")
		rawURL = strings.TrimSpace(rawURL)
		if rawURL == "" || strings.HasPrefix(rawURL, "#") {
			continue
		}
		if !hasDest || strings.TrimSpace(dest) == "" {
			dest = filepath.Join(outputDir, utils.CleanFilename(rawURL, hostOf(rawURL)))
		}
		items = append(items, download.Item{URL: rawURL, Dest: strings.TrimSpace(dest)})
	}
	return items, nil
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webfetch validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}

// hostOf returns the host part of a URL, or the raw string if unparseable.
func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}
