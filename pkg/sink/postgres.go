package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// PostgresSink persists batches to a PostgreSQL table. Each SaveBatch
// call runs inside one transaction, so the batch is all-or-nothing.
type PostgresSink struct {
	pool      *pgxpool.Pool
	table     string
	columns   []string
	insertSQL string
	logger    *slog.Logger
}

// NewPostgresSink connects to PostgreSQL and creates a new PostgresSink.
// The target table's columns are taken from the record schema, in
// declaration order.
func NewPostgresSink(ctx context.Context, cfg config.PostgresConfig, schema *models.Schema, logger *slog.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, &SinkError{Sink: "postgres", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &SinkError{Sink: "postgres", Err: err}
	}

	columns := schema.FieldNames()
	return &PostgresSink{
		pool:      pool,
		table:     cfg.Table,
		columns:   columns,
		insertSQL: buildInsertSQL(cfg.Table, columns),
		logger:    logger,
	}, nil
}

// buildInsertSQL renders the parameterized insert statement once, at
// construction, since schema and table never change at runtime
func buildInsertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "))
}

func (s *PostgresSink) Name() string { return "postgres" }

// SaveBatch inserts all records of the batch inside one transaction,
// rolling back on any failure
func (s *PostgresSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	s.logger.Info("inserting batch into PostgreSQL",
		"table", s.table,
		"file", batch.SourceFile,
		"records", batch.Count())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &SinkError{Sink: s.Name(), SourceFile: batch.SourceFile, Checksum: batch.Checksum, Err: err}
	}
	defer tx.Rollback(ctx)

	if err := s.insertTx(ctx, tx, batch.Records); err != nil {
		return &SinkError{Sink: s.Name(), SourceFile: batch.SourceFile, Checksum: batch.Checksum, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &SinkError{Sink: s.Name(), SourceFile: batch.SourceFile, Checksum: batch.Checksum, Err: err}
	}
	return nil
}

// InsertRecords bulk-inserts records in a single transaction
func (s *PostgresSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.insertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertTx queues one insert per record into a pgx batch and executes
// it on the transaction
func (s *PostgresSink) insertTx(ctx context.Context, tx pgx.Tx, records []models.ValidatedRecord) error {
	pb := &pgx.Batch{}
	for _, rec := range records {
		args := make([]any, len(s.columns))
		for i, col := range s.columns {
			args[i] = rec.Values[col]
		}
		pb.Queue(s.insertSQL, args...)
	}

	br := tx.SendBatch(ctx, pb)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return br.Close()
}

// Close releases the connection pool
func (s *PostgresSink) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
