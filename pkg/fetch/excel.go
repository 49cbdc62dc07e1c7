package fetch

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// ExcelReader parses xls/xlsx workbooks. Records come from the first
// sheet, with the first row as the header.
type ExcelReader struct{}

// NewExcelReader creates a new ExcelReader
func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

func (r *ExcelReader) Name() string { return "excel" }

// ReadFile parses the workbook at path into raw records
func (r *ExcelReader) ReadFile(path string) ([]models.RawRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return rowsToRecords(rows[0], rows[1:]), nil
}
