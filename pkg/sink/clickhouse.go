package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// ClickHouseSink persists batches to a ClickHouse table, one insert
// block per batch. A block either lands whole or is rejected whole,
// which gives the per-call atomicity the pipeline relies on.
type ClickHouseSink struct {
	conn      driver.Conn
	table     string
	columns   []string
	insertSQL string
	logger    *slog.Logger
}

// NewClickHouseSink connects to ClickHouse and creates a new ClickHouseSink
func NewClickHouseSink(ctx context.Context, cfg config.ClickHouseConfig, schema *models.Schema, logger *slog.Logger) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, &SinkError{Sink: "clickhouse", Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, &SinkError{Sink: "clickhouse", Err: err}
	}

	columns := schema.FieldNames()
	return &ClickHouseSink{
		conn:      conn,
		table:     cfg.Table,
		columns:   columns,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s)", cfg.Table, strings.Join(columns, ", ")),
		logger:    logger,
	}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

// SaveBatch sends all records of the batch as one insert block
func (s *ClickHouseSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	s.logger.Info("inserting batch into ClickHouse",
		"table", s.table,
		"file", batch.SourceFile,
		"records", batch.Count())

	if err := s.InsertRecords(ctx, batch.Records); err != nil {
		return &SinkError{
			Sink:       s.Name(),
			SourceFile: batch.SourceFile,
			Checksum:   batch.Checksum,
			Err:        err,
		}
	}
	return nil
}

// InsertRecords appends records to a prepared block and sends it
func (s *ClickHouseSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	block, err := s.conn.PrepareBatch(ctx, s.insertSQL)
	if err != nil {
		return err
	}

	for _, rec := range records {
		args := make([]any, len(s.columns))
		for i, col := range s.columns {
			args[i] = rec.Values[col]
		}
		if err := block.Append(args...); err != nil {
			return err
		}
	}

	return block.Send()
}

// Close closes the connection
func (s *ClickHouseSink) Close(ctx context.Context) error {
	return s.conn.Close()
}
