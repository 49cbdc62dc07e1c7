package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/uuid"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/utils"
)

// ParquetSink writes each batch as one Snappy-compressed Parquet
// part-file under <dir>/<table>/. Each call writes its own file, so a
// failed write leaves nothing visible and the per-call atomicity holds
// without a transaction.
type ParquetSink struct {
	dir         string
	table       string
	arrowSchema *arrow.Schema
	fields      []models.FieldSpec
	pool        memory.Allocator
	logger      *slog.Logger
}

// NewParquetSink creates a new ParquetSink
func NewParquetSink(cfg config.ParquetConfig, schema *models.Schema, logger *slog.Logger) (*ParquetSink, error) {
	arrowSchema, err := utils.SchemaToArrow(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.Dir, cfg.Table), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lake directory: %w", err)
	}

	return &ParquetSink{
		dir:         cfg.Dir,
		table:       cfg.Table,
		arrowSchema: arrowSchema,
		fields:      schema.Fields,
		pool:        memory.NewGoAllocator(),
		logger:      logger,
	}, nil
}

func (s *ParquetSink) Name() string { return "parquet" }

// SaveBatch writes the batch to a new part-file
func (s *ParquetSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	path := filepath.Join(s.dir, s.table, fmt.Sprintf("%s.parquet", uuid.New().String()))

	if err := s.writeParquet(batch.Records, path); err != nil {
		return &SinkError{
			Sink:       s.Name(),
			SourceFile: batch.SourceFile,
			Checksum:   batch.Checksum,
			Err:        err,
		}
	}

	s.logger.Info("wrote batch to Parquet part-file",
		"path", path,
		"file", batch.SourceFile,
		"records", batch.Count())
	return nil
}

// InsertRecords writes the records to a new part-file
func (s *ParquetSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	path := filepath.Join(s.dir, s.table, fmt.Sprintf("%s.parquet", uuid.New().String()))
	return s.writeParquet(records, path)
}

// writeParquet builds an Arrow record from the rows and writes it as a
// Parquet file
func (s *ParquetSink) writeParquet(records []models.ValidatedRecord, path string) error {
	rec, err := s.buildRecord(records)
	if err != nil {
		return err
	}
	defer rec.Release()

	outputFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outputFile.Close()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy("file-data-fetcher"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(s.pool))

	writer, err := pqarrow.NewFileWriter(s.arrowSchema, outputFile, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write batch to Parquet file: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}

	return nil
}

// buildRecord converts validated rows to an Arrow record following the
// declared schema. Missing optional fields become nulls.
func (s *ParquetSink) buildRecord(records []models.ValidatedRecord) (arrow.Record, error) {
	builder := array.NewRecordBuilder(s.pool, s.arrowSchema)
	defer builder.Release()

	for i, spec := range s.fields {
		fb := builder.Field(i)
		for _, rec := range records {
			value, ok := rec.Values[spec.Name]
			if !ok {
				fb.AppendNull()
				continue
			}
			switch b := fb.(type) {
			case *array.StringBuilder:
				v, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("field %s: expected string, got %T", spec.Name, value)
				}
				b.Append(v)
			case *array.Int64Builder:
				v, ok := value.(int64)
				if !ok {
					return nil, fmt.Errorf("field %s: expected int64, got %T", spec.Name, value)
				}
				b.Append(v)
			case *array.Float64Builder:
				v, ok := value.(float64)
				if !ok {
					return nil, fmt.Errorf("field %s: expected float64, got %T", spec.Name, value)
				}
				b.Append(v)
			case *array.BooleanBuilder:
				v, ok := value.(bool)
				if !ok {
					return nil, fmt.Errorf("field %s: expected bool, got %T", spec.Name, value)
				}
				b.Append(v)
			default:
				return nil, fmt.Errorf("field %s: unsupported builder type %T", spec.Name, fb)
			}
		}
	}

	return builder.NewRecord(), nil
}

// Close is a no-op; part-files are closed per write
func (s *ParquetSink) Close(ctx context.Context) error {
	return nil
}
