package panel

import "time"

// Panel is the normalized catalog record used across importers, the diff
// engine, and outputs. Optional numeric specs are pointers so a missing value
// is distinguishable from zero.
type Panel struct {
	ID           string
	ASIN         string
	Name         string
	Manufacturer string
	LengthCm     *float64
	WidthCm      *float64
	WeightKg     *float64
	Wattage      *float64
	Voltage      *float64
	PriceUSD     *float64
	Description  string
	ImageURL     string
	WebURL       string
	Favorite     bool

	// MissingFields lists numeric spec fields that were absent at ingest time.
	MissingFields []Field

	// ManualOverrides holds fields edited by an admin and protected from
	// automatic overwrite by imports.
	ManualOverrides FieldSet

	PendingFlags  int
	ResolvedFlags int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NumericValue returns the value behind a numeric field, or nil when the field
// is not numeric or has no value.
func (p Panel) NumericValue(field Field) *float64 {
	switch field {
	case FieldLengthCm:
		return p.LengthCm
	case FieldWidthCm:
		return p.WidthCm
	case FieldWeightKg:
		return p.WeightKg
	case FieldWattage:
		return p.Wattage
	case FieldVoltage:
		return p.Voltage
	case FieldPriceUSD:
		return p.PriceUSD
	default:
		return nil
	}
}

// TextValue returns the value behind a text field. The second return value is
// false for non-text fields.
func (p Panel) TextValue(field Field) (string, bool) {
	switch field {
	case FieldName:
		return p.Name, true
	case FieldManufacturer:
		return p.Manufacturer, true
	case FieldASIN:
		return p.ASIN, true
	case FieldDescription:
		return p.Description, true
	case FieldImageURL:
		return p.ImageURL, true
	case FieldWebURL:
		return p.WebURL, true
	default:
		return "", false
	}
}

// SetNumericValue assigns a numeric field. Unknown fields are ignored.
func (p *Panel) SetNumericValue(field Field, value *float64) {
	switch field {
	case FieldLengthCm:
		p.LengthCm = value
	case FieldWidthCm:
		p.WidthCm = value
	case FieldWeightKg:
		p.WeightKg = value
	case FieldWattage:
		p.Wattage = value
	case FieldVoltage:
		p.Voltage = value
	case FieldPriceUSD:
		p.PriceUSD = value
	}
}

// SetTextValue assigns a text field. Unknown fields are ignored.
func (p *Panel) SetTextValue(field Field, value string) {
	switch field {
	case FieldName:
		p.Name = value
	case FieldManufacturer:
		p.Manufacturer = value
	case FieldASIN:
		p.ASIN = value
	case FieldDescription:
		p.Description = value
	case FieldImageURL:
		p.ImageURL = value
	case FieldWebURL:
		p.WebURL = value
	}
}

// PricePerWatt derives USD per watt. The second return value is false when
// either input is missing or wattage is zero.
func (p Panel) PricePerWatt() (float64, bool) {
	if p.PriceUSD == nil || p.Wattage == nil || *p.Wattage == 0 {
		return 0, false
	}
	return *p.PriceUSD / *p.Wattage, true
}

// WattsPerKilogram derives watts per kilogram of panel weight.
func (p Panel) WattsPerKilogram() (float64, bool) {
	if p.Wattage == nil || p.WeightKg == nil || *p.WeightKg == 0 {
		return 0, false
	}
	return *p.Wattage / *p.WeightKg, true
}

// WattsPerSquareMeter derives watts per square meter of panel face area.
func (p Panel) WattsPerSquareMeter() (float64, bool) {
	if p.Wattage == nil || p.LengthCm == nil || p.WidthCm == nil {
		return 0, false
	}
	areaM2 := (*p.LengthCm / 100) * (*p.WidthCm / 100)
	if areaM2 == 0 {
		return 0, false
	}
	return *p.Wattage / areaM2, true
}

// Incomplete reports whether any core numeric spec is missing.
func (p Panel) Incomplete() bool {
	return p.LengthCm == nil || p.WidthCm == nil || p.WeightKg == nil ||
		p.Wattage == nil || p.PriceUSD == nil
}
