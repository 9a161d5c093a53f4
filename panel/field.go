package panel

import (
	"sort"
	"strings"
)

// Field identifies one attribute of the panel schema. The string values match
// the store column names so changesets can be applied directly.
type Field string

const (
	FieldName         Field = "name"
	FieldManufacturer Field = "manufacturer"
	FieldASIN         Field = "asin"
	FieldLengthCm     Field = "length_cm"
	FieldWidthCm      Field = "width_cm"
	FieldWeightKg     Field = "weight_kg"
	FieldWattage      Field = "wattage"
	FieldVoltage      Field = "voltage"
	FieldPriceUSD     Field = "price_usd"
	FieldDescription  Field = "description"
	FieldImageURL     Field = "image_url"
	FieldWebURL       Field = "web_url"
)

// NumericFields lists the fields carrying float values, in schema order.
func NumericFields() []Field {
	return []Field{FieldLengthCm, FieldWidthCm, FieldWeightKg, FieldWattage, FieldVoltage, FieldPriceUSD}
}

// TextFields lists the fields carrying string values, in schema order.
func TextFields() []Field {
	return []Field{FieldName, FieldManufacturer, FieldASIN, FieldDescription, FieldImageURL, FieldWebURL}
}

// AllFields lists every schema field, text first.
func AllFields() []Field {
	return append(TextFields(), NumericFields()...)
}

// ParseField returns the Field for a column name, or false for unknown names.
func ParseField(value string) (Field, bool) {
	candidate := Field(strings.TrimSpace(strings.ToLower(value)))
	for _, field := range AllFields() {
		if field == candidate {
			return field, true
		}
	}
	return "", false
}

// IsNumeric reports whether the field carries a float value.
func (f Field) IsNumeric() bool {
	switch f {
	case FieldLengthCm, FieldWidthCm, FieldWeightKg, FieldWattage, FieldVoltage, FieldPriceUSD:
		return true
	default:
		return false
	}
}

// FieldSet is a set of schema fields, used for the manual-override marker set.
type FieldSet map[Field]struct{}

func NewFieldSet(fields ...Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// ParseFieldSet builds a set from stored column names, dropping unknowns.
func ParseFieldSet(names []string) FieldSet {
	set := make(FieldSet, len(names))
	for _, name := range names {
		if field, ok := ParseField(name); ok {
			set[field] = struct{}{}
		}
	}
	return set
}

func (s FieldSet) Has(field Field) bool {
	_, ok := s[field]
	return ok
}

func (s FieldSet) Add(field Field) {
	s[field] = struct{}{}
}

// Merge returns a new set containing both operands.
func (s FieldSet) Merge(other FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(other))
	for field := range s {
		out[field] = struct{}{}
	}
	for field := range other {
		out[field] = struct{}{}
	}
	return out
}

// Names returns the member column names in schema-stable order.
func (s FieldSet) Names() []string {
	out := make([]string, 0, len(s))
	for field := range s {
		out = append(out, string(field))
	}
	sort.Strings(out)
	return out
}
