// Package session drives the staged import workflow:
// upload → mapping → preview → importing → complete, with cancel from preview
// and reset from anywhere. The whole pipeline is a single sequential pass;
// there is no parallel row processing and no background retry.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"panelbase/importer"
	"panelbase/panel"
	"panelbase/reconcile"
	"panelbase/units"
)

type State string

const (
	StateUpload    State = "upload"
	StateMapping   State = "mapping"
	StatePreview   State = "preview"
	StateImporting State = "importing"
	StateComplete  State = "complete"
)

// Store is the slice of the catalog store the commit step needs.
type Store interface {
	InsertPanels(panels []panel.Panel) (int, error)
	ApplyChangeset(panelID string, changes reconcile.Changeset, source string) error
}

// SnapshotLoader produces the read-only catalog view candidates are matched
// against. A load failure must yield an Unavailable snapshot, not an error.
type SnapshotLoader func() reconcile.Snapshot

// Summary carries the counts the preview and completion screens show.
type Summary struct {
	RowsRead       int
	RowsSkipped    int
	New            int
	Updated        int
	Unchanged      int
	SkippedDeleted int
	Inserted       int
	ChangesApplied int
}

// Session is one operator's import workflow. It is not safe for concurrent
// use; the web layer serializes access.
type Session struct {
	ID    string
	state State

	file     *importer.File
	mappings []importer.Mapping
	result   *importer.Result
	plan     *reconcile.Plan

	defaultLengthUnit units.Unit
	defaultWeightUnit units.Unit

	summary   Summary
	lastError string
}

func New() *Session {
	return &Session{ID: uuid.NewString(), state: StateUpload}
}

// SetDefaultUnits configures the fallback units applied during header
// auto-detection. Takes effect on the next LoadFile.
func (s *Session) SetDefaultUnits(length, weight units.Unit) {
	s.defaultLengthUnit = length
	s.defaultWeightUnit = weight
}

func (s *Session) State() State         { return s.state }
func (s *Session) File() *importer.File { return s.file }
func (s *Session) Mappings() []importer.Mapping {
	return append([]importer.Mapping(nil), s.mappings...)
}
func (s *Session) Plan() *reconcile.Plan         { return s.plan }
func (s *Session) RowErrors() []importer.RowError {
	if s.result == nil {
		return nil
	}
	return s.result.RowErrors
}
func (s *Session) Summary() Summary  { return s.summary }
func (s *Session) LastError() string { return s.lastError }

// LoadFile accepts a successfully parsed upload and moves upload → mapping
// with an auto-detected mapping list. Parse failures belong to the caller:
// the session only ever sees parsed files.
func (s *Session) LoadFile(file *importer.File) error {
	if s.state != StateUpload {
		return fmt.Errorf("cannot load a file in state %s", s.state)
	}
	if file == nil || len(file.Headers) == 0 {
		return fmt.Errorf("uploaded file has no header row")
	}

	s.file = file
	s.mappings = importer.AutoDetectWithUnits(file, s.defaultLengthUnit, s.defaultWeightUnit)
	s.state = StateMapping
	s.lastError = ""
	return nil
}

// Rebind adjusts one field binding while in the mapping state.
func (s *Session) Rebind(field panel.Field, header string, unit units.Unit) error {
	if s.state != StateMapping {
		return fmt.Errorf("cannot edit mappings in state %s", s.state)
	}
	mappings, err := importer.Rebind(s.mappings, field, header, unit)
	if err != nil {
		return err
	}
	s.mappings = mappings
	return nil
}

// UnmetRequirements lists required fields blocking the preview transition.
func (s *Session) UnmetRequirements() []string {
	if s.state != StateMapping {
		return nil
	}
	return importer.Validate(s.mappings, s.file)
}

// BuildPreview processes every row and classifies the batch against the
// snapshot, moving mapping → preview. Per-row failures are counted, not
// fatal; the transition is refused while required fields are unbound.
func (s *Session) BuildPreview(loadSnapshot SnapshotLoader) error {
	if s.state != StateMapping {
		return fmt.Errorf("cannot build a preview in state %s", s.state)
	}
	if unmet := importer.Validate(s.mappings, s.file); len(unmet) > 0 {
		return fmt.Errorf("%d required field(s) not mapped: %v", len(unmet), unmet)
	}

	s.result = importer.Process(s.file, s.mappings)
	s.plan = reconcile.Classify(s.result.Candidates, loadSnapshot())

	s.summary = Summary{
		RowsRead:       s.result.RowsRead,
		RowsSkipped:    s.result.RowsSkipped,
		New:            s.plan.New,
		Updated:        s.plan.Updated,
		Unchanged:      s.plan.Unchanged,
		SkippedDeleted: s.plan.SkippedDeleted,
	}
	s.state = StatePreview
	s.lastError = ""
	return nil
}

// Commit applies the plan: bulk insert of new records, then one changeset per
// updated record. The first store failure aborts the remaining batch and
// returns the session to preview; the operator retries the whole commit.
// Inserts are upsert-by-ASIN in the store, so a retry cannot double-write.
func (s *Session) Commit(store Store, source string) error {
	if s.state != StatePreview {
		return fmt.Errorf("cannot commit in state %s", s.state)
	}
	s.state = StateImporting

	inserts := make([]panel.Panel, 0, s.plan.New)
	for _, item := range s.plan.Items {
		if item.Disposition == reconcile.DispositionNew {
			inserts = append(inserts, item.Candidate)
		}
	}

	inserted, err := store.InsertPanels(inserts)
	if err != nil {
		s.state = StatePreview
		s.lastError = fmt.Sprintf("insert new panels: %v", err)
		return fmt.Errorf("insert new panels: %w", err)
	}
	s.summary.Inserted = inserted

	applied := 0
	for _, item := range s.plan.Items {
		if item.Disposition != reconcile.DispositionUpdate {
			continue
		}
		if err := store.ApplyChangeset(item.Existing.ID, item.Changes, source); err != nil {
			s.state = StatePreview
			s.lastError = fmt.Sprintf("update panel %s: %v", item.Existing.ID, err)
			return fmt.Errorf("update panel %s: %w", item.Existing.ID, err)
		}
		applied++
	}
	s.summary.ChangesApplied = applied

	s.state = StateComplete
	s.lastError = ""
	return nil
}

// Cancel discards the preview and returns to upload. It is the only backward
// transition; once importing has begun there is no cancellation point.
func (s *Session) Cancel() error {
	if s.state != StatePreview {
		return fmt.Errorf("cannot cancel in state %s", s.state)
	}
	s.Reset()
	return nil
}

// Reset discards all in-memory session data from any state.
func (s *Session) Reset() {
	s.state = StateUpload
	s.file = nil
	s.mappings = nil
	s.result = nil
	s.plan = nil
	s.summary = Summary{}
	s.lastError = ""
}
