package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// Sink persists validated batches to one storage backend. Each Sink
// owns a single connection or session, shared by all pipeline workers,
// and closed only at process shutdown. Implementations must be safe
// for concurrent SaveBatch calls.
type Sink interface {
	// Name returns a short identifier for logging
	Name() string

	// SaveBatch persists all records in the batch. From the caller's
	// perspective the call is atomic where the backend supports it;
	// backends without transactions document their best-effort
	// semantics instead.
	SaveBatch(ctx context.Context, batch *models.Batch) error

	// InsertRecords is the bulk-insert primitive SaveBatch delegates to
	InsertRecords(ctx context.Context, records []models.ValidatedRecord) error

	// Close releases the backend connection
	Close(ctx context.Context) error
}

// SinkError wraps a persistence failure with the batch provenance
// needed for manual replay
type SinkError struct {
	Sink       string
	SourceFile string
	Checksum   string
	Err        error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s failed for %s (checksum %s): %v", e.Sink, e.SourceFile, e.Checksum, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// New creates the Sink selected by the configuration
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.Sink.Type {
	case "mongodb":
		return NewMongoSink(ctx, cfg.Sink.Mongo, logger)
	case "postgres":
		return NewPostgresSink(ctx, cfg.Sink.Postgres, &cfg.Schema, logger)
	case "clickhouse":
		return NewClickHouseSink(ctx, cfg.Sink.ClickHouse, &cfg.Schema, logger)
	case "parquet":
		return NewParquetSink(cfg.Sink.Parquet, &cfg.Schema, logger)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Sink.Type)
	}
}
