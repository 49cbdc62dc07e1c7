package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/fetch"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/registry"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/utils"
)

// Pipeline turns one file into a validated batch. It composes the
// readiness gate, the checksum, the registry dedup check, the
// format-specific read and per-row validation, in that order.
//
// The pipeline never mutates the registry; marking a file processed is
// the dispatcher's job after the sink confirms persistence.
type Pipeline struct {
	schema         *models.Schema
	registry       *registry.Registry
	readers        *fetch.Table
	stabilityDelay time.Duration
	logger         *slog.Logger
}

// NewPipeline creates a new Pipeline
func NewPipeline(schema *models.Schema, reg *registry.Registry, readers *fetch.Table, stabilityDelay time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		schema:         schema,
		registry:       reg,
		readers:        readers,
		stabilityDelay: stabilityDelay,
		logger:         logger,
	}
}

// ProcessFile runs the full per-file pipeline and returns the batch to
// persist. A nil batch with a nil error means there is nothing to do
// for this file (already ingested, or no rows survived validation).
// ErrNotReady means the file is still growing and the caller should
// retry later.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*models.Batch, error) {
	filename := filepath.Base(path)

	// Readiness gate. This blocks for the sampling delay, which is why
	// the dispatcher runs the pipeline inside a worker.
	if !utils.IsStable(path, p.stabilityDelay) {
		return nil, ErrNotReady
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checksum, err := utils.Checksum(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fetch.ErrNotFound
		}
		return nil, &ChecksumError{Path: path, Err: err}
	}

	// Dedup is keyed on (filename, checksum): the same bytes are never
	// reprocessed, changed content under the same name is.
	if p.registry.Seen(filename, checksum) {
		p.logger.Info("file already processed, skipping", "file", filename, "checksum", checksum)
		return nil, nil
	}

	reader, ok := p.readers.ForPath(path)
	if !ok {
		p.logger.Warn("no reader for file type, skipping", "file", filename)
		return nil, nil
	}

	rows, err := reader.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records := make([]models.ValidatedRecord, 0, len(rows))
	for i, raw := range rows {
		validated, err := p.schema.Validate(raw)
		if err != nil {
			p.logger.Warn("record failed validation, dropping",
				"file", filename,
				"row", i+1,
				"error", err)
			continue
		}
		records = append(records, validated)
	}

	if len(records) == 0 {
		p.logger.Info("no valid records in file, nothing to persist", "file", filename)
		return nil, nil
	}

	return &models.Batch{
		ID:         uuid.New().String(),
		SourceFile: filename,
		Checksum:   checksum,
		Records:    records,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
