package session

import (
	"errors"
	"strings"
	"testing"

	"panelbase/importer"
	"panelbase/panel"
	"panelbase/reconcile"
	"panelbase/units"
)

type fakeStore struct {
	inserted     []panel.Panel
	changesets   map[string]reconcile.Changeset
	insertErr    error
	changesetErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{changesets: make(map[string]reconcile.Changeset)}
}

func (f *fakeStore) InsertPanels(panels []panel.Panel) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, panels...)
	return len(panels), nil
}

func (f *fakeStore) ApplyChangeset(panelID string, changes reconcile.Changeset, source string) error {
	if f.changesetErr != nil {
		return f.changesetErr
	}
	f.changesets[panelID] = changes
	return nil
}

func parseFile(t *testing.T, source string) *importer.File {
	t.Helper()
	file, err := importer.ParseCSV(strings.NewReader(source))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return file
}

func floatPtr(value float64) *float64 {
	return &value
}

func emptySnapshot() reconcile.Snapshot {
	return reconcile.Snapshot{}
}

func TestSessionStateTransitions(t *testing.T) {
	t.Parallel()

	sess := New()
	if sess.State() != StateUpload {
		t.Fatalf("expected new session in upload, got %s", sess.State())
	}

	if err := sess.BuildPreview(emptySnapshot); err == nil {
		t.Fatal("expected preview refused in upload state")
	}
	if err := sess.Cancel(); err == nil {
		t.Fatal("expected cancel refused in upload state")
	}
	if err := sess.Commit(newFakeStore(), "test"); err == nil {
		t.Fatal("expected commit refused in upload state")
	}

	file := parseFile(t, "Model,Brand,Wattage\nSP-400,Acme,400\n")
	if err := sess.LoadFile(file); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if sess.State() != StateMapping {
		t.Fatalf("expected mapping state, got %s", sess.State())
	}
	if err := sess.LoadFile(file); err == nil {
		t.Fatal("expected second upload refused in mapping state")
	}

	if err := sess.BuildPreview(emptySnapshot); err != nil {
		t.Fatalf("build preview: %v", err)
	}
	if sess.State() != StatePreview {
		t.Fatalf("expected preview state, got %s", sess.State())
	}

	if err := sess.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sess.State() != StateUpload || sess.File() != nil {
		t.Fatal("expected cancel to discard everything and return to upload")
	}
}

func TestSessionRefusesPreviewWithUnmetRequirements(t *testing.T) {
	t.Parallel()

	sess := New()
	file := parseFile(t, "Model,Wattage\nSP-400,400\n")
	if err := sess.LoadFile(file); err != nil {
		t.Fatalf("load file: %v", err)
	}

	unmet := sess.UnmetRequirements()
	if len(unmet) != 1 || unmet[0] != "Manufacturer" {
		t.Fatalf("expected Manufacturer unmet, got %v", unmet)
	}
	if err := sess.BuildPreview(emptySnapshot); err == nil {
		t.Fatal("expected preview refused while required fields are unbound")
	}
	if sess.State() != StateMapping {
		t.Fatalf("expected session to stay in mapping, got %s", sess.State())
	}
}

func TestSessionEndToEndCommit(t *testing.T) {
	t.Parallel()

	existing := panel.Panel{
		ID:              "p1",
		Name:            "SP-400",
		Manufacturer:    "Acme",
		Wattage:         floatPtr(400),
		PriceUSD:        floatPtr(249.99),
		ManualOverrides: panel.NewFieldSet(),
	}
	snapshot := func() reconcile.Snapshot {
		return reconcile.Snapshot{Panels: []panel.Panel{existing}}
	}

	sess := New()
	file := parseFile(t, strings.Join([]string{
		`Model,Brand,Wattage,Price`,
		`SP-400,Acme,400,$199.99`,
		`SP-600,Bolt,600,$299.00`,
	}, "\n"))
	if err := sess.LoadFile(file); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if err := sess.BuildPreview(snapshot); err != nil {
		t.Fatalf("build preview: %v", err)
	}

	summary := sess.Summary()
	if summary.New != 1 || summary.Updated != 1 || summary.Unchanged != 0 {
		t.Fatalf("unexpected preview summary: %+v", summary)
	}

	store := newFakeStore()
	if err := sess.Commit(store, "csv_import"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if sess.State() != StateComplete {
		t.Fatalf("expected complete state, got %s", sess.State())
	}

	if len(store.inserted) != 1 || store.inserted[0].Name != "SP-600" {
		t.Fatalf("expected one insert for SP-600, got %v", store.inserted)
	}
	changes, ok := store.changesets["p1"]
	if !ok {
		t.Fatalf("expected changeset applied to p1, got %v", store.changesets)
	}
	if got := changes[panel.FieldPriceUSD]; got != 199.99 {
		t.Fatalf("expected price change to 199.99, got %v", got)
	}

	summary = sess.Summary()
	if summary.Inserted != 1 || summary.ChangesApplied != 1 {
		t.Fatalf("unexpected commit summary: %+v", summary)
	}
}

func TestSessionCommitFailureReturnsToPreview(t *testing.T) {
	t.Parallel()

	sess := New()
	file := parseFile(t, "Model,Brand,Wattage\nSP-400,Acme,400\n")
	if err := sess.LoadFile(file); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if err := sess.BuildPreview(emptySnapshot); err != nil {
		t.Fatalf("build preview: %v", err)
	}

	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	if err := sess.Commit(store, "test"); err == nil {
		t.Fatal("expected commit failure")
	}
	if sess.State() != StatePreview {
		t.Fatalf("expected session back in preview, got %s", sess.State())
	}
	if sess.LastError() == "" {
		t.Fatal("expected last error recorded")
	}

	// Retry succeeds once the store recovers.
	store.insertErr = nil
	if err := sess.Commit(store, "test"); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if sess.State() != StateComplete {
		t.Fatalf("expected complete after retry, got %s", sess.State())
	}
}

func TestSessionDefaultUnits(t *testing.T) {
	t.Parallel()

	sess := New()
	sess.SetDefaultUnits(units.Inches, units.Pounds)

	file := parseFile(t, "Model,Brand,Wattage,Length\nSP-400,Acme,400,68.9\n")
	if err := sess.LoadFile(file); err != nil {
		t.Fatalf("load file: %v", err)
	}

	for _, mapping := range sess.Mappings() {
		if mapping.Field == panel.FieldLengthCm && mapping.Unit != units.Inches {
			t.Fatalf("expected inch default on length mapping, got %s", mapping.Unit)
		}
	}
}
