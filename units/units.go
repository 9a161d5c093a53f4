// Package units converts between the catalog storage units (cm, kg, USD) and
// the source units accepted on import.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit names the measurement unit of a raw source value.
type Unit string

const (
	Centimeters Unit = "cm"
	Inches      Unit = "in"
	Millimeters Unit = "mm"
	Kilograms   Unit = "kg"
	Pounds      Unit = "lb"
	Grams       Unit = "g"
	USD         Unit = "usd"
)

const (
	cmPerInch    = 2.54
	cmPerMeter   = 100
	kgPerPound   = 0.453592
	feetPerMeter = 3.280839895013123
)

func InchesToCm(value float64) float64 { return value * cmPerInch }

func CmToInches(value float64) float64 { return value / cmPerInch }

func MillimetersToCm(value float64) float64 { return value / 10 }

func CmToMillimeters(value float64) float64 { return value * 10 }

func PoundsToKg(value float64) float64 { return value * kgPerPound }

func KgToPounds(value float64) float64 { return value / kgPerPound }

func GramsToKg(value float64) float64 { return value / 1000 }

func KgToGrams(value float64) float64 { return value * 1000 }

func MetersToFeet(value float64) float64 { return value * feetPerMeter }

func FeetToMeters(value float64) float64 { return value / feetPerMeter }

// ParseUnit resolves a unit label, accepting the common spellings that appear
// in spreadsheet headers.
func ParseUnit(value string) (Unit, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "cm", "centimeter", "centimeters":
		return Centimeters, nil
	case "in", "inch", "inches", `"`:
		return Inches, nil
	case "mm", "millimeter", "millimeters":
		return Millimeters, nil
	case "kg", "kilogram", "kilograms":
		return Kilograms, nil
	case "lb", "lbs", "pound", "pounds":
		return Pounds, nil
	case "g", "gram", "grams":
		return Grams, nil
	case "usd", "$", "dollar", "dollars":
		return USD, nil
	default:
		return "", fmt.Errorf("unsupported unit: %q", value)
	}
}

// ParseNumber extracts a float from a raw cell value, tolerating currency
// symbols, thousands separators, and trailing unit text.
func ParseNumber(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}

	var builder strings.Builder
	started := false
	for _, r := range cleaned {
		if (r >= '0' && r <= '9') || r == '.' {
			builder.WriteRune(r)
			started = true
			continue
		}
		if r == '-' && !started && builder.Len() == 0 {
			builder.WriteRune(r)
			continue
		}
		if r == ',' {
			continue
		}
		if started {
			// stop at trailing unit text like "kg" or "inches"
			break
		}
	}

	numeric := builder.String()
	if numeric == "" || numeric == "-" {
		return 0, fmt.Errorf("no numeric value in %q", raw)
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return value, nil
}

// ToCm converts a length in the given source unit to centimeters.
func ToCm(value float64, unit Unit) (float64, error) {
	switch unit {
	case Centimeters:
		return value, nil
	case Inches:
		return InchesToCm(value), nil
	case Millimeters:
		return MillimetersToCm(value), nil
	default:
		return 0, fmt.Errorf("unit %q is not a length unit", unit)
	}
}

// ToKg converts a weight in the given source unit to kilograms.
func ToKg(value float64, unit Unit) (float64, error) {
	switch unit {
	case Kilograms:
		return value, nil
	case Pounds:
		return PoundsToKg(value), nil
	case Grams:
		return GramsToKg(value), nil
	default:
		return 0, fmt.Errorf("unit %q is not a weight unit", unit)
	}
}

// ToUSD converts a price in the given source unit to US dollars. USD is the
// only supported price unit today; the signature keeps the call sites uniform.
func ToUSD(value float64, unit Unit) (float64, error) {
	if unit != USD {
		return 0, fmt.Errorf("unit %q is not a price unit", unit)
	}
	return value, nil
}
