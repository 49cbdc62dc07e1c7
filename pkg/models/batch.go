package models

import (
	"time"
)

// RawRecord is one parsed row of a source file before validation.
// Fields preserves the column order from the file header; Values maps
// field names to the raw cell text.
type RawRecord struct {
	// Fields is the ordered list of column names
	Fields []string

	// Values maps column name to the unparsed cell value
	Values map[string]string
}

// ValidatedRecord is a RawRecord that passed schema validation.
// Values hold coerced Go types (string, int64, float64, bool) and the
// record is not modified after creation.
type ValidatedRecord struct {
	// Fields is the ordered list of column names
	Fields []string

	// Values maps column name to the coerced value
	Values map[string]any
}

// Batch is an ordered sequence of validated records plus the provenance
// needed to trace them back to the source file
type Batch struct {
	// ID uniquely identifies this batch
	ID string

	// SourceFile is the base name of the file the batch was read from
	SourceFile string

	// Checksum is the hex SHA-256 digest of the source file contents
	Checksum string

	// Records are the validated rows, in file order
	Records []ValidatedRecord

	// CreatedAt is the time at which the batch was assembled
	CreatedAt time.Time
}

// Count returns the number of records in the batch
func (b *Batch) Count() int {
	return len(b.Records)
}

// ProcessedFileEntry records one ingested file in the registry
type ProcessedFileEntry struct {
	// Filename is the base name of the ingested file
	Filename string `json:"filename"`

	// Checksum is the content digest the file had when ingested
	Checksum string `json:"checksum"`

	// ProcessedAt is the time of the successful ingestion
	ProcessedAt time.Time `json:"processed_at"`
}
