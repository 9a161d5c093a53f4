// Package catalog filters and sorts the loaded panel snapshot. All state
// lives in an explicit ViewConfig value; Apply is a pure function over it.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"panelbase/panel"
)

// Metric names a filterable numeric axis, including the derived ones.
type Metric string

const (
	MetricWattage      Metric = "wattage"
	MetricVoltage      Metric = "voltage"
	MetricPrice        Metric = "price"
	MetricWeight       Metric = "weight"
	MetricLength       Metric = "length"
	MetricWidth        Metric = "width"
	MetricPricePerWatt Metric = "price_per_watt"
	MetricWattsPerKg   Metric = "watts_per_kg"
	MetricWattsPerM2   Metric = "watts_per_m2"
)

// Metrics lists every filterable axis in display order.
func Metrics() []Metric {
	return []Metric{
		MetricWattage, MetricVoltage, MetricPrice, MetricWeight,
		MetricLength, MetricWidth,
		MetricPricePerWatt, MetricWattsPerKg, MetricWattsPerM2,
	}
}

// ParseMetric resolves a query-parameter metric name.
func ParseMetric(value string) (Metric, error) {
	candidate := Metric(strings.TrimSpace(strings.ToLower(value)))
	for _, metric := range Metrics() {
		if metric == candidate {
			return metric, nil
		}
	}
	return "", fmt.Errorf("unknown metric: %q", value)
}

// Range is one numeric filter. Nil bounds are open; a record with a nil value
// for the metric passes the filter (null never excludes).
type Range struct {
	Min *float64
	Max *float64
}

func (r Range) Contains(value *float64) bool {
	if value == nil {
		return true
	}
	if r.Min != nil && *value < *r.Min {
		return false
	}
	if r.Max != nil && *value > *r.Max {
		return false
	}
	return true
}

// SortKey selects the one active ordering. Ties keep input order.
type SortKey string

const (
	SortByName       SortKey = "name"
	SortByPrice      SortKey = "price"
	SortByWattage    SortKey = "wattage"
	SortByEfficiency SortKey = "efficiency"
	SortByValue      SortKey = "value"
)

// ParseSortKey resolves a query-parameter sort name; empty means name order.
func ParseSortKey(value string) (SortKey, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "name":
		return SortByName, nil
	case "price":
		return SortByPrice, nil
	case "wattage":
		return SortByWattage, nil
	case "efficiency":
		return SortByEfficiency, nil
	case "value":
		return SortByValue, nil
	default:
		return "", fmt.Errorf("unknown sort key: %q", value)
	}
}

// ViewConfig is the immutable filter/sort configuration for one render.
type ViewConfig struct {
	Ranges            map[Metric]Range
	FavoritesOnly     bool
	IncludeIncomplete bool
	SortKey           SortKey
	SortDescending    bool
}

// DefaultViewConfig shows the complete catalog sorted by name.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Ranges:            map[Metric]Range{},
		IncludeIncomplete: true,
		SortKey:           SortByName,
	}
}

// Apply filters and sorts a catalog snapshot. The input slice is not
// modified; sorting is stable so equal keys keep input order.
func Apply(panels []panel.Panel, cfg ViewConfig) []panel.Panel {
	out := make([]panel.Panel, 0, len(panels))
	for _, p := range panels {
		if cfg.FavoritesOnly && !p.Favorite {
			continue
		}
		if !cfg.IncludeIncomplete && p.Incomplete() {
			continue
		}
		if !passesRanges(p, cfg.Ranges) {
			continue
		}
		out = append(out, p)
	}

	sortPanels(out, cfg.SortKey, cfg.SortDescending)
	return out
}

func passesRanges(p panel.Panel, ranges map[Metric]Range) bool {
	for metric, rng := range ranges {
		if !rng.Contains(MetricValue(p, metric)) {
			return false
		}
	}
	return true
}

// MetricValue reads a metric off a panel, nil when the underlying values are
// missing.
func MetricValue(p panel.Panel, metric Metric) *float64 {
	derived := func(value float64, ok bool) *float64 {
		if !ok {
			return nil
		}
		return &value
	}

	switch metric {
	case MetricWattage:
		return p.Wattage
	case MetricVoltage:
		return p.Voltage
	case MetricPrice:
		return p.PriceUSD
	case MetricWeight:
		return p.WeightKg
	case MetricLength:
		return p.LengthCm
	case MetricWidth:
		return p.WidthCm
	case MetricPricePerWatt:
		return derived(p.PricePerWatt())
	case MetricWattsPerKg:
		return derived(p.WattsPerKilogram())
	case MetricWattsPerM2:
		return derived(p.WattsPerSquareMeter())
	default:
		return nil
	}
}

func sortPanels(panels []panel.Panel, key SortKey, descending bool) {
	metricFor := map[SortKey]Metric{
		SortByPrice:      MetricPrice,
		SortByWattage:    MetricWattage,
		SortByEfficiency: MetricWattsPerM2,
		SortByValue:      MetricPricePerWatt,
	}

	sort.SliceStable(panels, func(i, j int) bool {
		if key == SortByName {
			left := strings.ToLower(panels[i].Name)
			right := strings.ToLower(panels[j].Name)
			if descending {
				return left > right
			}
			return left < right
		}

		left := MetricValue(panels[i], metricFor[key])
		right := MetricValue(panels[j], metricFor[key])
		// records without the sort metric go last regardless of direction
		if left == nil {
			return false
		}
		if right == nil {
			return true
		}
		if descending {
			return *left > *right
		}
		return *left < *right
	})
}
