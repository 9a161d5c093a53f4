package importer

import (
	"fmt"
	"strings"

	"panelbase/panel"
	"panelbase/units"
)

// RowError attributes a processing failure to one source row. Row errors are
// collected by the batch runner, never raised as batch failures.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ProcessRow converts one raw record into a candidate panel using the
// confirmed mapping set. Required fields must be bound, non-blank, and
// convert cleanly; optional numeric fields that are unbound or blank are
// recorded in MissingFields instead of failing the row.
func ProcessRow(record Record, mappings []Mapping) (panel.Panel, error) {
	candidate := panel.Panel{ManualOverrides: panel.NewFieldSet()}

	for _, mapping := range mappings {
		raw := ""
		if mapping.Bound() {
			raw = record.Get(mapping.Header)
		}

		if raw == "" {
			if mapping.Required {
				return panel.Panel{}, RowError{Row: record.RowNumber, Err: fmt.Errorf("required field %s is missing", mapping.Label)}
			}
			if mapping.Field.IsNumeric() {
				candidate.MissingFields = append(candidate.MissingFields, mapping.Field)
			}
			continue
		}

		if !mapping.Field.IsNumeric() {
			candidate.SetTextValue(mapping.Field, strings.TrimSpace(raw))
			continue
		}

		value, err := convertNumeric(raw, mapping)
		if err != nil {
			return panel.Panel{}, RowError{Row: record.RowNumber, Err: fmt.Errorf("field %s: %w", mapping.Label, err)}
		}
		if value < 0 {
			return panel.Panel{}, RowError{Row: record.RowNumber, Err: fmt.Errorf("field %s must not be negative", mapping.Label)}
		}
		candidate.SetNumericValue(mapping.Field, &value)
	}

	candidate.ASIN = NormalizeASIN(candidate.ASIN)
	return candidate, nil
}

func convertNumeric(raw string, mapping Mapping) (float64, error) {
	value, err := units.ParseNumber(raw)
	if err != nil {
		return 0, err
	}

	switch mapping.Dimension {
	case DimensionLength:
		return units.ToCm(value, mapping.Unit)
	case DimensionWeight:
		return units.ToKg(value, mapping.Unit)
	case DimensionPrice:
		return units.ToUSD(value, mapping.Unit)
	default:
		return value, nil
	}
}

// NormalizeASIN canonicalizes a marketplace identifier for matching.
func NormalizeASIN(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
