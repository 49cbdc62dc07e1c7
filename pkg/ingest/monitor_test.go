package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/fetch"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/registry"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/sink"
)

// countingSink records every SaveBatch call for assertions
type countingSink struct {
	mu      sync.Mutex
	batches []*models.Batch
	fail    bool
}

func (s *countingSink) Name() string { return "counting" }

func (s *countingSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return &sink.SinkError{Sink: s.Name(), SourceFile: batch.SourceFile, Err: errors.New("backend down")}
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *countingSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	return nil
}

func (s *countingSink) Close(ctx context.Context) error { return nil }

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *countingSink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func testWatchConfig(dir string) config.WatchConfig {
	return config.WatchConfig{
		Dir:            dir,
		PollInterval:   config.Duration(20 * time.Millisecond),
		StabilityDelay: config.Duration(5 * time.Millisecond),
		Workers:        2,
		MaxRetries:     10,
	}
}

func newTestMonitor(t *testing.T, dir string, snk sink.Sink, dryRun bool) (*Monitor, *registry.Registry) {
	t.Helper()

	reg, err := registry.Open("")
	require.NoError(t, err)

	readers, err := fetch.NewTable(nil)
	require.NoError(t, err)

	pipeline := NewPipeline(testSchema(), reg, readers, 5*time.Millisecond, testLogger())
	return NewMonitor(testWatchConfig(dir), pipeline, snk, reg, readers, dryRun, testLogger()), reg
}

func TestHandlePersistsAndMarks(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, reg := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "people.csv", "name,age,city\nAlice,25,New York\nBob,-1,SF\n")
	monitor.handle(context.Background(), path)

	require.Equal(t, 1, snk.count())
	assert.Equal(t, 1, snk.batches[0].Count())
	assert.True(t, reg.Seen("people.csv", snk.batches[0].Checksum))
}

func TestHandleIdempotentForSameBytes(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "people.csv", "name,age\nAlice,25\n")

	monitor.handle(context.Background(), path)
	monitor.handle(context.Background(), path)

	// The second run short-circuits at the registry gate.
	assert.Equal(t, 1, snk.count())
}

func TestHandleReprocessesChangedContent(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "people.csv", "name,age\nAlice,25\n")
	monitor.handle(context.Background(), path)

	writeCSV(t, dir, "people.csv", "name,age\nAlice,26\n")
	monitor.handle(context.Background(), path)

	require.Equal(t, 2, snk.count())
	assert.NotEqual(t, snk.batches[0].Checksum, snk.batches[1].Checksum)
}

func TestHandleAllInvalidRowsNoSave(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, reg := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "bad.csv", "name,age\nBob,-1\n")
	monitor.handle(context.Background(), path)

	assert.Equal(t, 0, snk.count())
	assert.False(t, reg.IsProcessed("bad.csv"))
}

func TestHandleDryRunDoesNotMark(t *testing.T) {
	dir := t.TempDir()
	monitor, reg := newTestMonitor(t, dir, sink.NewDryRunSink(testLogger()), true)

	path := writeCSV(t, dir, "people.csv", "name,age\nAlice,25\n")
	monitor.handle(context.Background(), path)

	// A dry run validates but leaves the file eligible for a real run.
	assert.False(t, reg.IsProcessed("people.csv"))
}

func TestHandleSinkFailureAllowsRetry(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, reg := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "people.csv", "name,age\nAlice,25\n")

	snk.setFail(true)
	monitor.handle(context.Background(), path)
	assert.Equal(t, 0, snk.count())
	assert.False(t, reg.IsProcessed("people.csv"))

	// The registry was not marked, so the retry persists the batch.
	snk.setFail(false)
	monitor.handle(context.Background(), path)
	assert.Equal(t, 1, snk.count())
	assert.True(t, reg.IsProcessed("people.csv"))
}

func TestHandleVanishedFile(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	// Never-created path: the readiness gate reports not ready and the
	// retry loop gives up after MaxRetries.
	monitor.handle(context.Background(), filepath.Join(dir, "ghost.csv"))
	assert.Equal(t, 0, snk.count())
}

func TestMonitorEndToEnd(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, reg := newTestMonitor(t, dir, snk, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- monitor.Start(ctx)
	}()

	// Give the watcher a moment to register before dropping files.
	time.Sleep(50 * time.Millisecond)

	writeCSV(t, dir, "people.csv", "name,age,city\nAlice,25,New York\nBob,-1,SF\n")
	writeCSV(t, dir, "notes.txt", "unsupported\n")

	require.Eventually(t, func() bool {
		return snk.count() == 1
	}, 5*time.Second, 20*time.Millisecond, "expected exactly one batch to be persisted")

	assert.Equal(t, "people.csv", snk.batches[0].SourceFile)
	assert.Equal(t, 1, snk.batches[0].Count())
	assert.True(t, reg.IsProcessed("people.csv"))
	assert.False(t, reg.IsProcessed("notes.txt"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not shut down")
	}
}

func TestMonitorScansExistingFiles(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	// File present before the monitor starts.
	writeCSV(t, dir, "existing.csv", "name,age\nAlice,25\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- monitor.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return snk.count() == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not shut down")
	}
}

func TestEnqueueSingleFlight(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	path := writeCSV(t, dir, "people.csv", "name,age\nAlice,25\n")
	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	ctx := context.Background()
	monitor.enqueue(ctx, path)
	monitor.enqueue(ctx, path)

	// Only the first event claims the path; the duplicate is dropped.
	assert.Len(t, monitor.queue, 1)

	monitor.release(abs)
	monitor.enqueue(ctx, path)
	assert.Len(t, monitor.queue, 2)
}

func TestEnqueueIgnoresDirectoriesAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	snk := &countingSink{}
	monitor, _ := newTestMonitor(t, dir, snk, false)

	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0755))
	txt := writeCSV(t, dir, "notes.txt", "nope\n")

	ctx := context.Background()
	monitor.enqueue(ctx, sub)
	monitor.enqueue(ctx, txt)

	assert.Len(t, monitor.queue, 0)
}
