package importer

import (
	"strings"
)

// File is one parsed upload: the ordered header list plus every data row.
type File struct {
	Headers    []string
	Records    []Record
	SourceName string
}

// Record is one raw data row keyed by normalized header.
type Record struct {
	RowNumber int
	Values    map[string]string
}

// Get returns the trimmed cell under the first matching header, or "" when no
// header matches or the cell is absent.
func (r Record) Get(headers ...string) string {
	for _, header := range headers {
		normalized := NormalizeHeader(header)
		if value, ok := r.Values[normalized]; ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// NormalizeHeader lowercases a header and strips separators so "Price (USD)"
// and "price_usd" compare equal.
func NormalizeHeader(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	trimmed = strings.ReplaceAll(trimmed, "_", "")
	trimmed = strings.ReplaceAll(trimmed, "-", "")
	trimmed = strings.ReplaceAll(trimmed, " ", "")
	return trimmed
}

// HasHeader reports whether the file contains the given header.
func (f *File) HasHeader(header string) bool {
	normalized := NormalizeHeader(header)
	for _, candidate := range f.Headers {
		if NormalizeHeader(candidate) == normalized {
			return true
		}
	}
	return false
}

// SampleValue returns the first non-empty cell under the header, used for
// unit-hint detection.
func (f *File) SampleValue(header string) string {
	for _, record := range f.Records {
		if value := record.Get(header); value != "" {
			return value
		}
	}
	return ""
}
