package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// Registry is the durable record of files that were already ingested.
// It is the single source of truth for idempotency: the pipeline checks
// it before parsing and the dispatcher updates it after a confirmed
// persistence success.
//
// Entries are keyed by filename with at most one current entry per
// name. Dedup decisions use Seen, which compares checksums, so a file
// re-appearing under the same name with different content is processed
// again.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]models.ProcessedFileEntry
	path    string
}

// Open loads a registry from the given JSON file, creating an empty
// registry if the file does not exist yet. An empty path keeps the
// registry in memory only.
func Open(path string) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]models.ProcessedFileEntry),
		path:    path,
	}

	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	if len(data) == 0 {
		return r, nil
	}

	var entries []models.ProcessedFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	for _, e := range entries {
		r.entries[e.Filename] = e
	}

	return r, nil
}

// IsProcessed reports whether any entry exists for the filename,
// regardless of checksum
func (r *Registry) IsProcessed(filename string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[filename]
	return ok
}

// Seen reports whether the filename was already ingested with exactly
// this checksum. Same name with a different checksum returns false so
// changed content is reprocessed.
func (r *Registry) Seen(filename, checksum string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[filename]
	return ok && e.Checksum == checksum
}

// MarkProcessed upserts the entry for the filename and persists the
// registry. Safe for concurrent callers; for the same filename the last
// writer wins.
func (r *Registry) MarkProcessed(filename, checksum string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[filename] = models.ProcessedFileEntry{
		Filename:    filename,
		Checksum:    checksum,
		ProcessedAt: time.Now().UTC(),
	}

	return r.persistLocked()
}

// Entries returns a snapshot of all current entries
func (r *Registry) Entries() []models.ProcessedFileEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProcessedFileEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// persistLocked rewrites the backing file. Callers must hold the write
// lock. The write goes through a temp file and rename so a crash never
// leaves a truncated registry behind.
func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}

	entries := make([]models.ProcessedFileEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create registry temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close registry temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	return nil
}
