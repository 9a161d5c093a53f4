package output

import (
	"fmt"
	"strings"

	"panelbase/panel"
)

type Writer interface {
	Write(path string, panels []panel.Panel) error
}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func exportHeaders() []string {
	return []string{
		"ASIN", "Name", "Manufacturer",
		"LengthCm", "WidthCm", "WeightKg", "Wattage", "Voltage", "PriceUSD",
		"PricePerWatt", "WattsPerKg", "WattsPerM2",
		"Description", "ImageURL", "WebURL", "MissingFields",
	}
}

func exportRow(p panel.Panel) []string {
	missing := make([]string, 0, len(p.MissingFields))
	for _, field := range p.MissingFields {
		missing = append(missing, string(field))
	}

	return []string{
		p.ASIN,
		p.Name,
		p.Manufacturer,
		formatNumber(p.LengthCm),
		formatNumber(p.WidthCm),
		formatNumber(p.WeightKg),
		formatNumber(p.Wattage),
		formatNumber(p.Voltage),
		formatNumber(p.PriceUSD),
		formatDerived(p.PricePerWatt()),
		formatDerived(p.WattsPerKilogram()),
		formatDerived(p.WattsPerSquareMeter()),
		p.Description,
		p.ImageURL,
		p.WebURL,
		strings.Join(missing, ";"),
	}
}

func formatNumber(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *value)
}

func formatDerived(value float64, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.2f", value)
}
