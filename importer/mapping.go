package importer

import (
	"fmt"
	"strings"

	"panelbase/panel"
	"panelbase/units"
)

// Dimension groups fields by the kind of unit their raw values carry.
type Dimension string

const (
	DimensionNone   Dimension = ""
	DimensionLength Dimension = "length"
	DimensionWeight Dimension = "weight"
	DimensionPrice  Dimension = "price"
)

// targetField describes one schema field the mapper can bind a column to:
// priority-ordered alias patterns for header detection plus the unit default
// for dimensional fields. The table is data-driven so alias lists stay
// testable without any UI involved.
type targetField struct {
	Field       panel.Field
	Label       string
	Required    bool
	Dimension   Dimension
	ExactAlias  []string
	ContainsAny []string
}

// targetFields is consulted in order: the first field whose alias list matches
// a header claims it (first-match-wins, not best-match).
var targetFields = []targetField{
	{Field: panel.FieldName, Label: "Name", Required: true, ExactAlias: []string{"model", "title"}, ContainsAny: []string{"name", "product"}},
	{Field: panel.FieldManufacturer, Label: "Manufacturer", Required: true, ExactAlias: []string{"brand", "maker"}, ContainsAny: []string{"manufacturer"}},
	{Field: panel.FieldASIN, Label: "ASIN", ExactAlias: []string{"asin"}, ContainsAny: []string{"asin"}},
	{Field: panel.FieldWattage, Label: "Wattage", Required: true, ContainsAny: []string{"watt", "power"}},
	{Field: panel.FieldLengthCm, Label: "Length", Dimension: DimensionLength, ContainsAny: []string{"length"}},
	{Field: panel.FieldWidthCm, Label: "Width", Dimension: DimensionLength, ContainsAny: []string{"width"}},
	{Field: panel.FieldWeightKg, Label: "Weight", Dimension: DimensionWeight, ContainsAny: []string{"weight"}},
	{Field: panel.FieldVoltage, Label: "Voltage", ContainsAny: []string{"volt"}},
	{Field: panel.FieldPriceUSD, Label: "Price", Dimension: DimensionPrice, ContainsAny: []string{"price", "cost"}},
	{Field: panel.FieldDescription, Label: "Description", ContainsAny: []string{"desc"}},
	{Field: panel.FieldImageURL, Label: "Image URL", ContainsAny: []string{"image"}},
	{Field: panel.FieldWebURL, Label: "Web URL", ContainsAny: []string{"url", "link"}},
}

// unitHints maps substring patterns in a header or sample cell to a source
// unit. Longer, more specific patterns come first.
var unitHints = []struct {
	Dimension Dimension
	Patterns  []string
	Unit      units.Unit
}{
	{DimensionLength, []string{"inch", "(in)", `"`}, units.Inches},
	{DimensionLength, []string{"mm", "millimeter"}, units.Millimeters},
	{DimensionLength, []string{"cm", "centimeter"}, units.Centimeters},
	{DimensionWeight, []string{"lb", "pound"}, units.Pounds},
	{DimensionWeight, []string{"gram", "(g)"}, units.Grams},
	{DimensionWeight, []string{"kg", "kilogram"}, units.Kilograms},
	{DimensionPrice, []string{"usd", "$"}, units.USD},
}

// Mapping binds one schema field to a CSV column plus, for dimensional
// fields, the unit of the raw values.
type Mapping struct {
	Field     panel.Field
	Label     string
	Required  bool
	Dimension Dimension
	Header    string
	Unit      units.Unit
}

// Bound reports whether the mapping references a column.
func (m Mapping) Bound() bool {
	return strings.TrimSpace(m.Header) != ""
}

// DefaultMappings returns the unbound mapping list with storage-unit
// defaults.
func DefaultMappings() []Mapping {
	out := make([]Mapping, 0, len(targetFields))
	for _, target := range targetFields {
		out = append(out, Mapping{
			Field:     target.Field,
			Label:     target.Label,
			Required:  target.Required,
			Dimension: target.Dimension,
			Unit:      defaultUnit(target.Dimension),
		})
	}
	return out
}

func defaultUnit(dimension Dimension) units.Unit {
	switch dimension {
	case DimensionLength:
		return units.Centimeters
	case DimensionWeight:
		return units.Kilograms
	case DimensionPrice:
		return units.USD
	default:
		return ""
	}
}

// AutoDetect builds an initial mapping from the file's headers. Each target
// field scans headers in file order and claims the first unclaimed match;
// later candidate headers for an already-bound field are ignored. The input
// file is not modified and the returned list is freshly allocated.
func AutoDetect(file *File) []Mapping {
	return AutoDetectWithUnits(file, "", "")
}

// AutoDetectWithUnits is AutoDetect with configured fallback units for the
// length and weight dimensions. A unit hint found in a header or sample cell
// still wins over the fallback.
func AutoDetectWithUnits(file *File, lengthUnit, weightUnit units.Unit) []Mapping {
	mappings := DefaultMappings()
	for i := range mappings {
		if lengthUnit != "" && mappings[i].Dimension == DimensionLength {
			mappings[i].Unit = lengthUnit
		}
		if weightUnit != "" && mappings[i].Dimension == DimensionWeight {
			mappings[i].Unit = weightUnit
		}
	}
	claimed := make(map[string]bool, len(file.Headers))

	for i := range mappings {
		target := targetFields[i]
		for _, header := range file.Headers {
			normalized := NormalizeHeader(header)
			if normalized == "" || claimed[normalized] {
				continue
			}
			if !headerMatches(target, normalized) {
				continue
			}
			mappings[i].Header = header
			claimed[normalized] = true
			break
		}
		if mappings[i].Bound() && target.Dimension != DimensionNone {
			if unit, ok := detectUnit(target.Dimension, mappings[i].Header, file.SampleValue(mappings[i].Header)); ok {
				mappings[i].Unit = unit
			}
		}
	}

	return mappings
}

func headerMatches(target targetField, normalizedHeader string) bool {
	for _, alias := range target.ExactAlias {
		if normalizedHeader == NormalizeHeader(alias) {
			return true
		}
	}
	for _, pattern := range target.ContainsAny {
		if strings.Contains(normalizedHeader, NormalizeHeader(pattern)) {
			return true
		}
	}
	return false
}

func detectUnit(dimension Dimension, header, sample string) (units.Unit, bool) {
	haystacks := []string{strings.ToLower(header), strings.ToLower(sample)}
	for _, hint := range unitHints {
		if hint.Dimension != dimension {
			continue
		}
		for _, haystack := range haystacks {
			if haystack == "" {
				continue
			}
			for _, pattern := range hint.Patterns {
				if strings.Contains(haystack, pattern) {
					return hint.Unit, true
				}
			}
		}
	}
	return "", false
}

// Rebind returns a copy of mappings with the given field bound to header and
// unit. An empty header unbinds the field; an empty unit keeps the current
// one.
func Rebind(mappings []Mapping, field panel.Field, header string, unit units.Unit) ([]Mapping, error) {
	out := append([]Mapping(nil), mappings...)
	for i := range out {
		if out[i].Field != field {
			continue
		}
		out[i].Header = strings.TrimSpace(header)
		if unit != "" {
			if out[i].Dimension == DimensionNone {
				return nil, fmt.Errorf("field %s does not take a unit", field)
			}
			out[i].Unit = unit
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown mapping field: %s", field)
}

// Validate returns the labels of required fields that are unbound or bound to
// a header missing from the file. An empty result means processing may
// proceed.
func Validate(mappings []Mapping, file *File) []string {
	unmet := make([]string, 0)
	for _, mapping := range mappings {
		if !mapping.Bound() {
			if mapping.Required {
				unmet = append(unmet, mapping.Label)
			}
			continue
		}
		if !file.HasHeader(mapping.Header) {
			unmet = append(unmet, mapping.Label)
		}
	}
	return unmet
}
