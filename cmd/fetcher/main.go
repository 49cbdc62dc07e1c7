package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/fetch"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/ingest"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/registry"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/sink"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	dir := flag.String("dir", "", "Directory to monitor (overrides config)")
	sinkType := flag.String("sink", "", "Sink backend: mongodb, postgres, clickhouse or parquet (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Validate files without persisting anything")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dir != "" {
		cfg.Watch.Dir = *dir
	}
	if *sinkType != "" {
		cfg.Sink.Type = *sinkType
	}
	if *dryRun {
		cfg.DryRun = true
	}

	logger := newLogger(cfg.Logging.Level)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating shutdown", "signal", sig.String())
		cancel()
	}()

	// Open the processed-file registry
	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}

	// Build the extension table for the configured file types
	readers, err := fetch.NewTable(cfg.Watch.Extensions)
	if err != nil {
		log.Fatalf("Failed to build reader table: %v", err)
	}

	// Create the sink; dry-run swaps in the log-only backend
	var snk sink.Sink
	if cfg.DryRun {
		snk = sink.NewDryRunSink(logger)
	} else {
		snk, err = sink.New(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Failed to create sink: %v", err)
		}
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := snk.Close(closeCtx); err != nil {
			logger.Error("failed to close sink", "error", err)
		}
	}()

	pipeline := ingest.NewPipeline(&cfg.Schema, reg, readers, cfg.Watch.StabilityDelay.Std(), logger)
	monitor := ingest.NewMonitor(cfg.Watch, pipeline, snk, reg, readers, cfg.DryRun, logger)

	logger.Info("starting file monitor", "sink", snk.Name(), "dir", cfg.Watch.Dir)

	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Monitor failed: %v", err)
	}

	logger.Info("monitor has shut down gracefully")
}

// newLogger builds the process logger at the configured level
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
