package storage

import (
	"errors"
	"testing"

	"panelbase/moderation"
	"panelbase/panel"
	"panelbase/reconcile"
)

func insertFlag(t *testing.T, store *SQLiteStore, flag moderation.Flag) string {
	t.Helper()
	id, err := store.InsertFlag(flag)
	if err != nil {
		t.Fatalf("insert flag: %v", err)
	}
	return id
}

func TestInsertAndListFlags(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	stored := insertOne(t, store, testPanel("SP-400"))

	id := insertFlag(t, store, moderation.Flag{
		PanelID: stored.ID,
		Type:    moderation.FlagUserSubmitted,
		Comment: "wattage looks wrong",
		Suggested: map[panel.Field]string{
			panel.FieldWattage: "410",
		},
	})

	flag, found, err := store.GetFlagByID(id)
	if err != nil || !found {
		t.Fatalf("get flag: found=%v err=%v", found, err)
	}
	if flag.Status != moderation.StatusPending {
		t.Fatalf("expected default pending status, got %s", flag.Status)
	}
	if flag.Suggested[panel.FieldWattage] != "410" {
		t.Fatalf("expected suggested value round trip, got %v", flag.Suggested)
	}

	pending, err := store.ListFlags(moderation.StatusPending)
	if err != nil {
		t.Fatalf("list pending flags: %v", err)
	}
	if len(pending) != 1 || pending[0].Comment != "wattage looks wrong" {
		t.Fatalf("unexpected pending flags: %v", pending)
	}

	all, err := store.ListFlags("")
	if err != nil {
		t.Fatalf("list all flags: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one flag total, got %d", len(all))
	}

	// Flag counters surface on the panel listing.
	reloaded, _, err := store.GetPanelByID(stored.ID)
	if err != nil {
		t.Fatalf("reload panel: %v", err)
	}
	if reloaded.PendingFlags != 1 || reloaded.ResolvedFlags != 0 {
		t.Fatalf("expected 1 pending / 0 resolved, got %d/%d", reloaded.PendingFlags, reloaded.ResolvedFlags)
	}
}

func TestInsertFlagRequiresExistingPanel(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	_, err := store.InsertFlag(moderation.Flag{PanelID: "missing", Type: moderation.FlagUserSubmitted})
	if !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
	if _, err := store.InsertFlag(moderation.Flag{Type: moderation.FlagUserSubmitted}); err == nil {
		t.Fatal("expected error for empty panel id")
	}
}

func TestResolveFlag(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	stored := insertOne(t, store, testPanel("SP-400"))
	id := insertFlag(t, store, moderation.Flag{PanelID: stored.ID, Type: moderation.FlagParseFailure})

	if err := store.ResolveFlag(id, moderation.StatusPending, ""); err == nil {
		t.Fatal("expected error resolving to pending")
	}
	if err := store.ResolveFlag(id, moderation.StatusRejected, "not actionable"); err != nil {
		t.Fatalf("resolve flag: %v", err)
	}

	flag, _, err := store.GetFlagByID(id)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if flag.Status != moderation.StatusRejected || flag.AdminNote != "not actionable" {
		t.Fatalf("unexpected resolution: %+v", flag)
	}
	if flag.ResolvedAt == nil {
		t.Fatal("expected resolved_at stamped")
	}

	if err := store.ResolveFlag("missing", moderation.StatusApproved, ""); !errors.Is(err, ErrFlagNotFound) {
		t.Fatalf("expected ErrFlagNotFound, got %v", err)
	}
}

func TestApproveFlagAppliesSuggestedCorrections(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	stored := insertOne(t, store, testPanel("SP-400"))
	id := insertFlag(t, store, moderation.Flag{
		PanelID: stored.ID,
		Type:    moderation.FlagUserSubmitted,
		Suggested: map[panel.Field]string{
			panel.FieldWattage:  "410",
			panel.FieldPriceUSD: "$199.99",
		},
	})

	if err := store.ApproveFlag(id, "checked the datasheet"); err != nil {
		t.Fatalf("approve flag: %v", err)
	}

	updated, _, err := store.GetPanelByID(stored.ID)
	if err != nil {
		t.Fatalf("reload panel: %v", err)
	}
	if updated.Wattage == nil || *updated.Wattage != 410 {
		t.Fatalf("expected suggested wattage applied, got %v", updated.Wattage)
	}
	if updated.PriceUSD == nil || *updated.PriceUSD != 199.99 {
		t.Fatalf("expected suggested price applied, got %v", updated.PriceUSD)
	}
	if !updated.ManualOverrides.Has(panel.FieldWattage) || !updated.ManualOverrides.Has(panel.FieldPriceUSD) {
		t.Fatalf("expected corrected fields pinned as overrides, got %v", updated.ManualOverrides.Names())
	}

	flag, _, err := store.GetFlagByID(id)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if flag.Status != moderation.StatusApproved {
		t.Fatalf("expected approved, got %s", flag.Status)
	}

	// A later import cannot undo the approved correction.
	if err := store.ApplyChangeset(stored.ID, reconcile.Changeset{panel.FieldWattage: 400.0}, "csv_import"); err != nil {
		t.Fatalf("apply changeset: %v", err)
	}
	updated, _, _ = store.GetPanelByID(stored.ID)
	if updated.Wattage == nil || *updated.Wattage != 410 {
		t.Fatalf("expected override to survive reimport, got %v", updated.Wattage)
	}

	if err := store.ApproveFlag(id, "again"); err == nil {
		t.Fatal("expected error approving an already-resolved flag")
	}
}

func TestApproveFlagDeleteRecommendation(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	stored := insertOne(t, store, testPanel("SP-400"))
	id := insertFlag(t, store, moderation.Flag{
		PanelID: stored.ID,
		Type:    moderation.FlagDeleteRecommended,
		Comment: "duplicate listing",
	})

	if err := store.ApproveFlag(id, ""); err != nil {
		t.Fatalf("approve flag: %v", err)
	}

	if _, found, err := store.GetPanelByID(stored.ID); err != nil || found {
		t.Fatalf("expected panel deleted, found=%v err=%v", found, err)
	}
	deleted, err := store.ListDeletedASINs()
	if err != nil {
		t.Fatalf("list deleted asins: %v", err)
	}
	if !deleted["B0SP-400"] {
		t.Fatalf("expected ASIN audited on approval delete, got %v", deleted)
	}
}

func TestAutoResolvePendingFlags(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	incoming := testPanel("SP-400")
	incoming.PriceUSD = nil
	stored := insertOne(t, store, incoming)

	id := insertFlag(t, store, moderation.Flag{
		PanelID: stored.ID,
		Type:    moderation.FlagMissingData,
		Fields:  []panel.Field{panel.FieldPriceUSD},
	})

	// Price still missing, nothing resolves.
	resolved, err := store.AutoResolvePendingFlags()
	if err != nil {
		t.Fatalf("auto-resolve: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("expected nothing resolved yet, got %d", resolved)
	}

	if err := store.ApplyChangeset(stored.ID, reconcile.Changeset{panel.FieldPriceUSD: 199.99}, "csv_import"); err != nil {
		t.Fatalf("apply changeset: %v", err)
	}

	resolved, err = store.AutoResolvePendingFlags()
	if err != nil {
		t.Fatalf("auto-resolve: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected one flag resolved, got %d", resolved)
	}

	flag, _, err := store.GetFlagByID(id)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if flag.Status != moderation.StatusApproved || flag.AdminNote == "" {
		t.Fatalf("unexpected auto-resolution: %+v", flag)
	}

	// Running again is a no-op.
	resolved, err = store.AutoResolvePendingFlags()
	if err != nil {
		t.Fatalf("auto-resolve again: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("expected idempotent auto-resolve, got %d", resolved)
	}
}
