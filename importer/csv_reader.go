package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type CSVReader struct{}

func (r *CSVReader) Read(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file %s: %w", path, err)
	}
	defer file.Close()

	parsed, err := ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("parse csv file %s: %w", path, err)
	}
	parsed.SourceName = filepath.Base(path)
	return parsed, nil
}

// ParseCSV reads comma-delimited text with RFC-4180 quoting. The first
// non-empty line is the header row; short rows yield empty cells and long
// rows are truncated to the header width.
func ParseCSV(source io.Reader) (*File, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("no header row found")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	normalizedHeaders := make([]string, len(headers))
	for i, header := range headers {
		normalizedHeaders[i] = NormalizeHeader(header)
	}

	records := make([]Record, 0, 128)
	rowNumber := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rowNumber+1, err)
		}
		if isBlankRow(row) {
			rowNumber++
			continue
		}

		values := make(map[string]string, len(normalizedHeaders))
		for i := range normalizedHeaders {
			if i < len(row) {
				values[normalizedHeaders[i]] = row[i]
			} else {
				values[normalizedHeaders[i]] = ""
			}
		}

		records = append(records, Record{RowNumber: rowNumber + 1, Values: values})
		rowNumber++
	}

	return &File{Headers: headers, Records: records}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
