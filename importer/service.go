package importer

import (
	"panelbase/panel"
)

// Candidate pairs a processed panel with the source row it came from.
type Candidate struct {
	Panel panel.Panel
	Row   Record
}

// Result aggregates one processing pass over a parsed file. Row failures are
// collected, not fatal: the batch always runs to the end.
type Result struct {
	RowsRead    int
	RowsMapped  int
	RowsSkipped int
	Candidates  []Candidate
	RowErrors   []RowError
}

// Process runs the row processor across every record of the file. Callers
// must have validated the mappings first; Process itself only fails rows,
// never the batch.
func Process(file *File, mappings []Mapping) *Result {
	result := &Result{Candidates: make([]Candidate, 0, len(file.Records))}

	for _, record := range file.Records {
		result.RowsRead++
		candidate, err := ProcessRow(record, mappings)
		if err != nil {
			result.RowsSkipped++
			if rowErr, ok := err.(RowError); ok {
				result.RowErrors = append(result.RowErrors, rowErr)
			} else {
				result.RowErrors = append(result.RowErrors, RowError{Row: record.RowNumber, Err: err})
			}
			continue
		}

		result.RowsMapped++
		result.Candidates = append(result.Candidates, Candidate{Panel: candidate, Row: record})
	}

	return result
}
