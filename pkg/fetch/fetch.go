package fetch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// ErrNotFound indicates the file vanished before it could be read
var ErrNotFound = errors.New("file not found")

// ParseError indicates the file content is malformed for its format
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader reads one concrete file format into raw records
type Reader interface {
	// Name returns a short identifier for logging
	Name() string

	// ReadFile parses the file at path into raw rows. It returns
	// ErrNotFound if the path vanished and a *ParseError on malformed
	// content.
	ReadFile(path string) ([]models.RawRecord, error)
}

// Table maps file extensions to the Reader that handles them. The
// table is built once at startup; adding a format means adding a
// Reader and an extension entry, not changing dispatch logic.
type Table struct {
	readers map[string]Reader
}

// NewTable builds the extension table for the given file-type
// whitelist. Types are named as in the configuration (csv, xls, xlsx);
// an empty whitelist enables every supported type.
func NewTable(types []string) (*Table, error) {
	if len(types) == 0 {
		types = []string{"csv", "xls", "xlsx"}
	}

	t := &Table{readers: make(map[string]Reader)}
	for _, ft := range types {
		switch strings.ToLower(ft) {
		case "csv":
			t.readers[".csv"] = NewCSVReader()
		case "xls", "xlsx", "excel":
			excel := NewExcelReader()
			t.readers[".xls"] = excel
			t.readers[".xlsx"] = excel
		default:
			return nil, fmt.Errorf("unsupported file type: %s", ft)
		}
	}
	return t, nil
}

// ForPath returns the Reader registered for the path's extension
func (t *Table) ForPath(path string) (Reader, bool) {
	r, ok := t.readers[strings.ToLower(filepath.Ext(path))]
	return r, ok
}

// Extensions returns the registered extensions, for logging
func (t *Table) Extensions() []string {
	exts := make([]string, 0, len(t.readers))
	for ext := range t.readers {
		exts = append(exts, ext)
	}
	return exts
}

// rowsToRecords converts a header row plus data rows into raw records,
// preserving row order. Cells beyond the header width are dropped;
// short rows leave the trailing fields unset.
func rowsToRecords(header []string, rows [][]string) []models.RawRecord {
	records := make([]models.RawRecord, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				values[name] = row[i]
			}
		}
		records = append(records, models.RawRecord{
			Fields: header,
			Values: values,
		})
	}
	return records
}
