// Package reconcile matches imported candidates against the loaded catalog
// snapshot and computes the minimal field changesets needed to bring matched
// records in line.
package reconcile

import (
	"strings"

	"panelbase/importer"
	"panelbase/internal/numutil"
	"panelbase/panel"
)

// numericTolerance absorbs representation differences between an imported
// value and the stored one ("50.0" vs 50).
const numericTolerance = 1e-6

// Disposition classifies one processed row. Exactly one of the three values
// applies to every (candidate, snapshot) pair; the preview, summary counts,
// and commit step all depend on that.
type Disposition string

const (
	DispositionNew       Disposition = "new"
	DispositionUpdate    Disposition = "update"
	DispositionUnchanged Disposition = "unchanged"
	// DispositionSkippedDeleted marks candidates whose ASIN was previously
	// deleted by an admin; they are withheld from re-ingestion.
	DispositionSkippedDeleted Disposition = "skipped_deleted"
)

// MatchReason records which identity key produced a match.
type MatchReason string

const (
	MatchByASIN MatchReason = "asin"
	MatchByName MatchReason = "name+manufacturer"
)

// Changeset maps field names to the new values needed on the existing record.
// Values are float64 for numeric fields and string otherwise.
type Changeset map[panel.Field]any

// ProcessedPanel is the unit of work the import session previews and commits.
type ProcessedPanel struct {
	Candidate   panel.Panel
	Row         importer.Record
	Existing    *panel.Panel
	Changes     Changeset
	Disposition Disposition
	MatchReason MatchReason
}

// Snapshot is the read-only view of the stored catalog taken before
// processing begins.
type Snapshot struct {
	Panels       []panel.Panel
	DeletedASINs map[string]bool

	// Unavailable marks a snapshot that failed to load. Classification then
	// treats every candidate as new rather than dropping rows.
	Unavailable bool
}

// Plan is the aggregated classification of one import batch.
type Plan struct {
	Items           []ProcessedPanel
	New             int
	Updated         int
	Unchanged       int
	SkippedDeleted  int
	SnapshotWarning bool
}

// Classify runs matching and diffing across all candidates. It never fails:
// with an unavailable snapshot every candidate is classified new and the plan
// carries a warning.
func Classify(candidates []importer.Candidate, snapshot Snapshot) *Plan {
	plan := &Plan{Items: make([]ProcessedPanel, 0, len(candidates))}
	if snapshot.Unavailable {
		plan.SnapshotWarning = true
	}

	for _, candidate := range candidates {
		item := ProcessedPanel{Candidate: candidate.Panel, Row: candidate.Row}

		if !snapshot.Unavailable && candidate.Panel.ASIN != "" && snapshot.DeletedASINs[candidate.Panel.ASIN] {
			item.Disposition = DispositionSkippedDeleted
			plan.SkippedDeleted++
			plan.Items = append(plan.Items, item)
			continue
		}

		var existing *panel.Panel
		var reason MatchReason
		if !snapshot.Unavailable {
			existing, reason = FindMatch(candidate.Panel, snapshot.Panels)
		}

		if existing == nil {
			item.Disposition = DispositionNew
			plan.New++
			plan.Items = append(plan.Items, item)
			continue
		}

		item.Existing = existing
		item.MatchReason = reason
		item.Changes = Diff(*existing, candidate.Panel)
		if len(item.Changes) == 0 {
			item.Disposition = DispositionUnchanged
			plan.Unchanged++
		} else {
			item.Disposition = DispositionUpdate
			plan.Updated++
		}
		plan.Items = append(plan.Items, item)
	}

	return plan
}

// FindMatch returns the existing record the candidate corresponds to, or nil.
// Matching is deterministic and total: a normalized ASIN match wins, then the
// first record with equal normalized name and manufacturer. Name+manufacturer
// carries no uniqueness guarantee; the reason is surfaced so an operator can
// see which key matched.
func FindMatch(candidate panel.Panel, existing []panel.Panel) (*panel.Panel, MatchReason) {
	if candidate.ASIN != "" {
		for i := range existing {
			if existing[i].ASIN != "" && importer.NormalizeASIN(existing[i].ASIN) == candidate.ASIN {
				return &existing[i], MatchByASIN
			}
		}
	}

	name := normalizeIdentity(candidate.Name)
	manufacturer := normalizeIdentity(candidate.Manufacturer)
	if name == "" || manufacturer == "" {
		return nil, ""
	}
	for i := range existing {
		if normalizeIdentity(existing[i].Name) == name && normalizeIdentity(existing[i].Manufacturer) == manufacturer {
			return &existing[i], MatchByName
		}
	}
	return nil, ""
}

// Diff computes the changeset between a matched existing record and a fresh
// candidate. Only fields where the candidate has a defined value and differs
// are included; fields in the existing record's manual-override set are
// excluded regardless of disagreement.
func Diff(existing, candidate panel.Panel) Changeset {
	changes := make(Changeset)

	for _, field := range panel.TextFields() {
		if existing.ManualOverrides.Has(field) {
			continue
		}
		value, _ := candidate.TextValue(field)
		if value == "" {
			continue
		}
		current, _ := existing.TextValue(field)
		if value != current {
			changes[field] = value
		}
	}

	for _, field := range panel.NumericFields() {
		if existing.ManualOverrides.Has(field) {
			continue
		}
		value := candidate.NumericValue(field)
		if value == nil {
			continue
		}
		current := existing.NumericValue(field)
		if current == nil || !numutil.EqualWithin(*value, *current, numericTolerance) {
			changes[field] = *value
		}
	}

	return changes
}

func normalizeIdentity(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(value)), " "))
}
