package sink

import (
	"context"
	"log/slog"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// DryRunSink logs what would have been persisted without touching any
// storage backend. It reports the batch size, source file and checksum
// so a dry run shows exactly what a real run would write.
type DryRunSink struct {
	logger *slog.Logger
}

// NewDryRunSink creates a new DryRunSink
func NewDryRunSink(logger *slog.Logger) *DryRunSink {
	return &DryRunSink{logger: logger}
}

func (s *DryRunSink) Name() string { return "dry-run" }

// SaveBatch logs the batch and discards it
func (s *DryRunSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	s.logger.Info("dry run: batch validated, nothing persisted",
		"file", batch.SourceFile,
		"checksum", batch.Checksum,
		"records", batch.Count())
	return nil
}

// InsertRecords logs the record count and discards the records
func (s *DryRunSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	s.logger.Info("dry run: records validated, nothing persisted", "records", len(records))
	return nil
}

// Close is a no-op
func (s *DryRunSink) Close(ctx context.Context) error {
	return nil
}
