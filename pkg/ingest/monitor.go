package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/fetch"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/registry"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/sink"
)

// FileState is one step of the per-file state machine
type FileState string

const (
	// StateDetected means a creation event arrived for the path
	StateDetected FileState = "detected"

	// StateReadinessPending means the file is still growing and a retry is scheduled
	StateReadinessPending FileState = "readiness_pending"

	// StateDispatched means a worker picked the file up
	StateDispatched FileState = "dispatched"

	// StateCompleted means the batch was persisted (or dry-run logged)
	StateCompleted FileState = "completed"

	// StateSkipped means the file needed no work (duplicate, unsupported, empty)
	StateSkipped FileState = "skipped"

	// StateFailed means the pipeline or sink failed for the file
	StateFailed FileState = "failed"
)

// Monitor watches one directory for new files and dispatches each one
// to the pipeline on a worker pool. Ordering between files is not
// guaranteed; rows within a file keep their order because one worker
// owns the whole file.
type Monitor struct {
	cfg      config.WatchConfig
	pipeline *Pipeline
	sink     sink.Sink
	registry *registry.Registry
	readers  *fetch.Table
	dryRun   bool
	logger   *slog.Logger

	queue chan string

	// inflight holds absolute paths with a pipeline run in progress.
	// It is the per-path single-flight guard: the dedup-then-mark
	// sequence is a check-then-act race without it.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMonitor creates a new Monitor
func NewMonitor(cfg config.WatchConfig, pipeline *Pipeline, snk sink.Sink, reg *registry.Registry, readers *fetch.Table, dryRun bool, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		pipeline: pipeline,
		sink:     snk,
		registry: reg,
		readers:  readers,
		dryRun:   dryRun,
		logger:   logger,
		queue:    make(chan string, 128),
		inflight: make(map[string]struct{}),
	}
}

// Start subscribes to creation events for the watched directory and
// runs the worker pool until the context is cancelled. Files already
// present in the directory are scanned first so drops that happened
// while the process was down are not lost.
func (m *Monitor) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.cfg.Dir, err)
	}

	m.logger.Info("monitoring directory",
		"dir", m.cfg.Dir,
		"workers", m.cfg.Workers,
		"extensions", m.readers.Extensions(),
		"dry_run", m.dryRun)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < m.cfg.Workers; i++ {
		g.Go(func() error {
			m.worker(ctx)
			return nil
		})
	}

	g.Go(func() error {
		return m.listen(ctx, watcher)
	})

	if err := m.scan(ctx); err != nil {
		m.logger.Warn("initial directory scan failed", "error", err)
	}

	return g.Wait()
}

// listen is the notification-receiving loop. It only classifies and
// enqueues; all blocking work happens in the workers.
func (m *Monitor) listen(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			m.enqueue(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher error", "error", err)
		}
	}
}

// scan enqueues files already sitting in the watched directory
func (m *Monitor) scan(ctx context.Context) error {
	dirEntries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return err
	}
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		m.enqueue(ctx, filepath.Join(m.cfg.Dir, entry.Name()))
	}
	return nil
}

// enqueue routes one observed path to the worker queue. Directories,
// unsupported extensions and paths with a run already in flight are
// dropped here.
func (m *Monitor) enqueue(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Vanished between the event and the stat; nothing to do.
		return
	}
	if info.IsDir() {
		return
	}

	if _, ok := m.readers.ForPath(path); !ok {
		m.logger.Warn("unsupported file type",
			"file", filepath.Base(path),
			"state", StateSkipped)
		return
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if !m.acquire(abs) {
		// An in-flight run on this path covers the new event.
		return
	}

	m.logger.Info("file detected", "file", filepath.Base(path), "state", StateDetected)

	select {
	case m.queue <- abs:
	case <-ctx.Done():
		m.release(abs)
	}
}

// worker drains the queue, running one file at a time through the
// pipeline and the sink
func (m *Monitor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-m.queue:
			m.handle(ctx, path)
			m.release(path)
		}
	}
}

// handle runs the pipeline for one file, retrying while the file is
// still growing, then persists the batch and marks the registry.
func (m *Monitor) handle(ctx context.Context, path string) {
	filename := filepath.Base(path)
	m.logger.Debug("file dispatched", "file", filename, "state", StateDispatched)

	attempts := 0
	for {
		batch, err := m.pipeline.ProcessFile(ctx, path)

		switch {
		case errors.Is(err, ErrNotReady):
			attempts++
			if m.cfg.MaxRetries > 0 && attempts >= m.cfg.MaxRetries {
				m.logger.Error("file never became stable, giving up",
					"file", filename,
					"attempts", attempts,
					"state", StateFailed)
				return
			}
			m.logger.Info("file not ready, will retry",
				"file", filename,
				"attempt", attempts,
				"state", StateReadinessPending)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.PollInterval.Std()):
			}
			continue

		case errors.Is(err, fetch.ErrNotFound):
			m.logger.Warn("file vanished before processing",
				"file", filename,
				"state", StateSkipped)
			return

		case errors.Is(err, context.Canceled):
			return

		case err != nil:
			// Parse and checksum failures land here. The registry is
			// not marked, so a corrected re-drop is processed fresh.
			m.logger.Error("pipeline failed",
				"file", filename,
				"error", err,
				"state", StateFailed)
			return

		case batch == nil:
			m.logger.Info("nothing to persist",
				"file", filename,
				"state", StateSkipped)
			return
		}

		if err := m.sink.SaveBatch(ctx, batch); err != nil {
			// Not marked processed, so a later drop of the same file
			// retries the persistence.
			m.logger.Error("failed to persist batch",
				"file", filename,
				"checksum", batch.Checksum,
				"error", err,
				"state", StateFailed)
			return
		}

		if m.dryRun {
			// A dry run never marks the registry: the file is still
			// eligible for a real run later.
			m.logger.Info("dry run complete",
				"file", filename,
				"checksum", batch.Checksum,
				"records", batch.Count(),
				"state", StateCompleted)
			return
		}

		if err := m.registry.MarkProcessed(batch.SourceFile, batch.Checksum); err != nil {
			m.logger.Error("failed to update registry",
				"file", filename,
				"error", err,
				"state", StateFailed)
			return
		}

		m.logger.Info("file ingested",
			"file", filename,
			"checksum", batch.Checksum,
			"records", batch.Count(),
			"state", StateCompleted)
		return
	}
}

// acquire claims the path for a single in-flight run
func (m *Monitor) acquire(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[path]; busy {
		return false
	}
	m.inflight[path] = struct{}{}
	return true
}

// release frees the path after its run finished
func (m *Monitor) release(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, path)
}
