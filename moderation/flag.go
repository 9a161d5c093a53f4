// Package moderation models the data-quality flag queue: user-submitted
// corrections, system-detected gaps, and deletion recommendations.
package moderation

import (
	"fmt"
	"time"

	"panelbase/panel"
)

type FlagType string

const (
	FlagUserSubmitted     FlagType = "user_submitted"
	FlagMissingData       FlagType = "missing_data"
	FlagParseFailure      FlagType = "parse_failure"
	FlagDeleteRecommended FlagType = "delete_recommendation"
)

func ParseFlagType(value string) (FlagType, error) {
	switch FlagType(value) {
	case FlagUserSubmitted, FlagMissingData, FlagParseFailure, FlagDeleteRecommended:
		return FlagType(value), nil
	default:
		return "", fmt.Errorf("unknown flag type: %q", value)
	}
}

type FlagStatus string

const (
	StatusPending  FlagStatus = "pending"
	StatusApproved FlagStatus = "approved"
	StatusRejected FlagStatus = "rejected"
)

func ParseFlagStatus(value string) (FlagStatus, error) {
	switch FlagStatus(value) {
	case StatusPending, StatusApproved, StatusRejected:
		return FlagStatus(value), nil
	default:
		return "", fmt.Errorf("unknown flag status: %q", value)
	}
}

// Flag is one moderation queue row.
type Flag struct {
	ID         string
	PanelID    string
	Type       FlagType
	Fields     []panel.Field
	Suggested  map[panel.Field]string
	Comment    string
	Status     FlagStatus
	AdminNote  string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// RemainingMissingFields returns the flagged fields that are still absent on
// the panel. Safe to recompute at any time; an empty result means the flag
// can auto-resolve.
func RemainingMissingFields(flag Flag, p panel.Panel) []panel.Field {
	remaining := make([]panel.Field, 0, len(flag.Fields))
	for _, field := range flag.Fields {
		if fieldPopulated(p, field) {
			continue
		}
		remaining = append(remaining, field)
	}
	return remaining
}

// CanAutoResolve reports whether a pending missing-data flag is satisfied:
// every previously-missing field is now populated. Idempotent by
// construction.
func CanAutoResolve(flag Flag, p panel.Panel) bool {
	if flag.Type != FlagMissingData || flag.Status != StatusPending {
		return false
	}
	return len(RemainingMissingFields(flag, p)) == 0
}

// SuggestedCorrections converts a flag's suggested values into typed field
// assignments, skipping suggestions that fail to parse. The returned set
// names the fields that were applied, to be merged into the panel's
// manual-override set (a human proposed them).
func SuggestedCorrections(flag Flag, parseNumber func(string) (float64, error)) (map[panel.Field]any, panel.FieldSet, error) {
	if len(flag.Suggested) == 0 {
		return nil, nil, fmt.Errorf("flag %s has no suggested values", flag.ID)
	}

	out := make(map[panel.Field]any, len(flag.Suggested))
	edited := panel.NewFieldSet()
	for field, raw := range flag.Suggested {
		if field.IsNumeric() {
			value, err := parseNumber(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("suggested value for %s: %w", field, err)
			}
			out[field] = value
		} else {
			out[field] = raw
		}
		edited.Add(field)
	}
	return out, edited, nil
}

func fieldPopulated(p panel.Panel, field panel.Field) bool {
	if field.IsNumeric() {
		return p.NumericValue(field) != nil
	}
	value, ok := p.TextValue(field)
	return ok && value != ""
}
