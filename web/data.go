package web

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"panelbase/catalog"
	"panelbase/importer"
	"panelbase/moderation"
	"panelbase/panel"
	"panelbase/session"
	"panelbase/storage"
)

// panelView is the JSON shape of one catalog record, derived metrics included.
type panelView struct {
	ID            string   `json:"id"`
	ASIN          string   `json:"asin,omitempty"`
	Name          string   `json:"name"`
	Manufacturer  string   `json:"manufacturer"`
	LengthCm      *float64 `json:"lengthCm"`
	WidthCm       *float64 `json:"widthCm"`
	WeightKg      *float64 `json:"weightKg"`
	Wattage       *float64 `json:"wattage"`
	Voltage       *float64 `json:"voltage"`
	PriceUSD      *float64 `json:"priceUsd"`
	PricePerWatt  *float64 `json:"pricePerWatt"`
	WattsPerKg    *float64 `json:"wattsPerKg"`
	WattsPerM2    *float64 `json:"wattsPerM2"`
	Description   string   `json:"description,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	WebURL        string   `json:"webUrl,omitempty"`
	Favorite      bool     `json:"favorite"`
	Incomplete    bool     `json:"incomplete"`
	MissingFields []string `json:"missingFields,omitempty"`
	Overridden    []string `json:"manualOverrides,omitempty"`
	PendingFlags  int      `json:"pendingFlags"`
	ResolvedFlags int      `json:"resolvedFlags"`
	UpdatedAt     string   `json:"updatedAt"`
}

func buildPanelView(p panel.Panel) panelView {
	derived := func(value float64, ok bool) *float64 {
		if !ok {
			return nil
		}
		return &value
	}

	missing := make([]string, 0, len(p.MissingFields))
	for _, field := range p.MissingFields {
		missing = append(missing, string(field))
	}

	view := panelView{
		ID:            p.ID,
		ASIN:          p.ASIN,
		Name:          p.Name,
		Manufacturer:  p.Manufacturer,
		LengthCm:      p.LengthCm,
		WidthCm:       p.WidthCm,
		WeightKg:      p.WeightKg,
		Wattage:       p.Wattage,
		Voltage:       p.Voltage,
		PriceUSD:      p.PriceUSD,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		WebURL:        p.WebURL,
		Favorite:      p.Favorite,
		Incomplete:    p.Incomplete(),
		MissingFields: missing,
		Overridden:    p.ManualOverrides.Names(),
		PendingFlags:  p.PendingFlags,
		ResolvedFlags: p.ResolvedFlags,
	}
	view.PricePerWatt = derived(p.PricePerWatt())
	view.WattsPerKg = derived(p.WattsPerKilogram())
	view.WattsPerM2 = derived(p.WattsPerSquareMeter())
	if !p.UpdatedAt.IsZero() {
		view.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return view
}

func buildPanelViews(panels []panel.Panel) []panelView {
	out := make([]panelView, 0, len(panels))
	for _, p := range panels {
		out = append(out, buildPanelView(p))
	}
	return out
}

// ParseViewConfig reads filter and sort settings from catalog query
// parameters: <metric>_min / <metric>_max range bounds, favorites=1,
// complete=1, sort=<key> and desc=1.
func ParseViewConfig(query url.Values) (catalog.ViewConfig, error) {
	cfg := catalog.DefaultViewConfig()

	for _, metric := range catalog.Metrics() {
		rng := catalog.Range{}
		bounded := false
		if raw := strings.TrimSpace(query.Get(string(metric) + "_min")); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return catalog.ViewConfig{}, fmt.Errorf("invalid %s_min: %q", metric, raw)
			}
			rng.Min = &value
			bounded = true
		}
		if raw := strings.TrimSpace(query.Get(string(metric) + "_max")); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return catalog.ViewConfig{}, fmt.Errorf("invalid %s_max: %q", metric, raw)
			}
			rng.Max = &value
			bounded = true
		}
		if bounded {
			cfg.Ranges[metric] = rng
		}
	}

	cfg.FavoritesOnly = query.Get("favorites") == "1"
	if query.Get("complete") == "1" {
		cfg.IncludeIncomplete = false
	}

	sortKey, err := catalog.ParseSortKey(query.Get("sort"))
	if err != nil {
		return catalog.ViewConfig{}, err
	}
	cfg.SortKey = sortKey
	cfg.SortDescending = query.Get("desc") == "1"

	return cfg, nil
}

type mappingView struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Header   string `json:"header,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

func buildMappingViews(mappings []importer.Mapping) []mappingView {
	out := make([]mappingView, 0, len(mappings))
	for _, mapping := range mappings {
		out = append(out, mappingView{
			Field:    string(mapping.Field),
			Label:    mapping.Label,
			Required: mapping.Required,
			Header:   mapping.Header,
			Unit:     string(mapping.Unit),
		})
	}
	return out
}

type planItemView struct {
	Name         string         `json:"name"`
	Manufacturer string         `json:"manufacturer"`
	ASIN         string         `json:"asin,omitempty"`
	Row          int            `json:"row"`
	Disposition  string         `json:"disposition"`
	MatchReason  string         `json:"matchReason,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
}

type rowErrorView struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type sessionView struct {
	ID              string         `json:"id"`
	State           string         `json:"state"`
	SourceName      string         `json:"sourceName,omitempty"`
	Headers         []string       `json:"headers,omitempty"`
	Mappings        []mappingView  `json:"mappings,omitempty"`
	Unmet           []string       `json:"unmetRequirements,omitempty"`
	Plan            []planItemView `json:"plan,omitempty"`
	RowErrors       []rowErrorView `json:"rowErrors,omitempty"`
	SnapshotWarning string         `json:"snapshotWarning,omitempty"`
	Summary         sessionSummary `json:"summary"`
	LastError       string         `json:"lastError,omitempty"`
}

type sessionSummary struct {
	RowsRead       int `json:"rowsRead"`
	RowsSkipped    int `json:"rowsSkipped"`
	New            int `json:"new"`
	Updated        int `json:"updated"`
	Unchanged      int `json:"unchanged"`
	SkippedDeleted int `json:"skippedDeleted"`
	Inserted       int `json:"inserted"`
	ChangesApplied int `json:"changesApplied"`
}

func buildSessionView(s *session.Session) sessionView {
	view := sessionView{
		ID:        s.ID,
		State:     string(s.State()),
		Unmet:     s.UnmetRequirements(),
		LastError: s.LastError(),
	}

	if file := s.File(); file != nil {
		view.SourceName = file.SourceName
		view.Headers = file.Headers
		view.Mappings = buildMappingViews(s.Mappings())
	}

	if plan := s.Plan(); plan != nil {
		view.Plan = make([]planItemView, 0, len(plan.Items))
		for _, item := range plan.Items {
			changes := make(map[string]any, len(item.Changes))
			for field, value := range item.Changes {
				changes[string(field)] = value
			}
			view.Plan = append(view.Plan, planItemView{
				Name:         item.Candidate.Name,
				Manufacturer: item.Candidate.Manufacturer,
				ASIN:         item.Candidate.ASIN,
				Row:          item.Row.RowNumber,
				Disposition:  string(item.Disposition),
				MatchReason:  string(item.MatchReason),
				Changes:      changes,
			})
		}
		if plan.SnapshotWarning {
			view.SnapshotWarning = "catalog snapshot unavailable; every row was classified as new"
		}
	}

	for _, rowErr := range s.RowErrors() {
		view.RowErrors = append(view.RowErrors, rowErrorView{Row: rowErr.Row, Error: rowErr.Err.Error()})
	}

	summary := s.Summary()
	view.Summary = sessionSummary{
		RowsRead:       summary.RowsRead,
		RowsSkipped:    summary.RowsSkipped,
		New:            summary.New,
		Updated:        summary.Updated,
		Unchanged:      summary.Unchanged,
		SkippedDeleted: summary.SkippedDeleted,
		Inserted:       summary.Inserted,
		ChangesApplied: summary.ChangesApplied,
	}

	return view
}

type flagView struct {
	ID         string            `json:"id"`
	PanelID    string            `json:"panelId"`
	Type       string            `json:"type"`
	Fields     []string          `json:"fields,omitempty"`
	Suggested  map[string]string `json:"suggested,omitempty"`
	Comment    string            `json:"comment,omitempty"`
	Status     string            `json:"status"`
	AdminNote  string            `json:"adminNote,omitempty"`
	CreatedAt  string            `json:"createdAt"`
	ResolvedAt string            `json:"resolvedAt,omitempty"`
}

func buildFlagView(flag moderation.Flag) flagView {
	fields := make([]string, 0, len(flag.Fields))
	for _, field := range flag.Fields {
		fields = append(fields, string(field))
	}
	suggested := make(map[string]string, len(flag.Suggested))
	for field, value := range flag.Suggested {
		suggested[string(field)] = value
	}

	view := flagView{
		ID:        flag.ID,
		PanelID:   flag.PanelID,
		Type:      string(flag.Type),
		Fields:    fields,
		Suggested: suggested,
		Comment:   flag.Comment,
		Status:    string(flag.Status),
		AdminNote: flag.AdminNote,
	}
	if !flag.CreatedAt.IsZero() {
		view.CreatedAt = flag.CreatedAt.Format(time.RFC3339)
	}
	if flag.ResolvedAt != nil {
		view.ResolvedAt = flag.ResolvedAt.Format(time.RFC3339)
	}
	return view
}

func buildFlagViews(flags []moderation.Flag) []flagView {
	out := make([]flagView, 0, len(flags))
	for _, flag := range flags {
		out = append(out, buildFlagView(flag))
	}
	return out
}

type priceChangeView struct {
	OldPrice  *float64 `json:"oldPrice"`
	NewPrice  float64  `json:"newPrice"`
	Source    string   `json:"source,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

func buildPriceChangeViews(changes []storage.PriceChange) []priceChangeView {
	out := make([]priceChangeView, 0, len(changes))
	for _, change := range changes {
		view := priceChangeView{
			OldPrice: change.OldPrice,
			NewPrice: change.NewPrice,
			Source:   change.Source,
		}
		if !change.CreatedAt.IsZero() {
			view.CreatedAt = change.CreatedAt.Format(time.RFC3339)
		}
		out = append(out, view)
	}
	return out
}

// applyPanelEdit overlays non-nil request fields onto a stored panel and
// returns the set of fields the admin actually changed.
func applyPanelEdit(p panel.Panel, body panelEditRequest) (panel.Panel, panel.FieldSet) {
	edited := panel.NewFieldSet()

	setText := func(field panel.Field, value *string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		current, _ := p.TextValue(field)
		if trimmed == current {
			return
		}
		p.SetTextValue(field, trimmed)
		edited.Add(field)
	}
	setNumber := func(field panel.Field, value *float64) {
		if value == nil {
			return
		}
		current := p.NumericValue(field)
		if current != nil && *current == *value {
			return
		}
		v := *value
		p.SetNumericValue(field, &v)
		edited.Add(field)
	}

	setText(panel.FieldName, body.Name)
	setText(panel.FieldManufacturer, body.Manufacturer)
	setText(panel.FieldASIN, body.ASIN)
	setText(panel.FieldDescription, body.Description)
	setText(panel.FieldImageURL, body.ImageURL)
	setText(panel.FieldWebURL, body.WebURL)
	setNumber(panel.FieldLengthCm, body.LengthCm)
	setNumber(panel.FieldWidthCm, body.WidthCm)
	setNumber(panel.FieldWeightKg, body.WeightKg)
	setNumber(panel.FieldWattage, body.Wattage)
	setNumber(panel.FieldVoltage, body.Voltage)
	setNumber(panel.FieldPriceUSD, body.PriceUSD)

	return p, edited
}

