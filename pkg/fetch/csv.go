package fetch

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// CSVReader parses comma-separated files. The first row is always the
// header.
type CSVReader struct{}

// NewCSVReader creates a new CSVReader
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (r *CSVReader) Name() string { return "csv" }

// ReadFile parses the CSV file at path into raw records
func (r *CSVReader) ReadFile(path string) ([]models.RawRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	// Ragged rows are tolerated; validation decides what a usable
	// record is, not the parser.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		rows = append(rows, row)
	}

	return rowsToRecords(header, rows), nil
}
