package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"panelbase/config"
	"panelbase/panel"
	"panelbase/storage"
)

func testConfig() config.Config {
	return config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 8090},
		Database: config.DatabaseConfig{Path: "unused"},
		Import: config.ImportConfig{
			DefaultSource:     "csv_import",
			DefaultLengthUnit: "in",
			DefaultWeightUnit: "lb",
		},
		Export: config.ExportConfig{DefaultFormat: "csv"},
		Flags:  config.FlagsConfig{AutoResolveAfterImport: true},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "panels.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ts := httptest.NewServer(NewServer(store, testConfig()))
	t.Cleanup(ts.Close)
	return ts, store
}

func ptr(value float64) *float64 {
	return &value
}

func seedPanel(t *testing.T, store *storage.SQLiteStore, name string) panel.Panel {
	t.Helper()
	p := panel.Panel{
		ASIN:            "B0" + name,
		Name:            name,
		Manufacturer:    "Acme",
		Wattage:         ptr(400),
		PriceUSD:        ptr(249.99),
		LengthCm:        ptr(175),
		WidthCm:         ptr(113),
		WeightKg:        ptr(18.9),
		ManualOverrides: panel.NewFieldSet(),
	}
	if _, err := store.InsertPanels([]panel.Panel{p}); err != nil {
		t.Fatalf("seed panel: %v", err)
	}
	panels, err := store.ListPanels()
	if err != nil {
		t.Fatalf("list panels: %v", err)
	}
	for _, stored := range panels {
		if stored.Name == name {
			return stored
		}
	}
	t.Fatalf("seeded panel %q not found", name)
	return panel.Panel{}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, raw)
	}
}

func uploadCSV(t *testing.T, client *http.Client, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url+"/api/import/upload", &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestImportFlow(t *testing.T) {
	t.Parallel()

	ts, store := newTestServer(t)
	client := ts.Client()
	existing := seedPanel(t, store, "SP-400")

	csvContent := strings.Join([]string{
		`Model,Brand,ASIN,Wattage,Price`,
		fmt.Sprintf(`SP-400,Acme,%s,400,$199.99`, existing.ASIN),
		`SP-600,Bolt,B0NEW00001,600,$299.00`,
	}, "\n")

	resp := uploadCSV(t, client, ts.URL, "pricelist.csv", csvContent)
	requireStatus(t, resp, http.StatusOK)
	var view sessionView
	decodeBody(t, resp, &view)
	if view.State != "mapping" {
		t.Fatalf("expected mapping state after upload, got %q", view.State)
	}
	if view.SourceName != "pricelist.csv" {
		t.Fatalf("expected source name recorded, got %q", view.SourceName)
	}
	if len(view.Unmet) != 0 {
		t.Fatalf("expected required fields auto-detected, got unmet %v", view.Unmet)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/preview", nil)
	requireStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &view)
	if view.State != "preview" {
		t.Fatalf("expected preview state, got %q", view.State)
	}
	if view.Summary.New != 1 || view.Summary.Updated != 1 {
		t.Fatalf("unexpected preview summary: %+v", view.Summary)
	}
	if len(view.Plan) != 2 {
		t.Fatalf("expected 2 plan items, got %d", len(view.Plan))
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/commit", nil)
	requireStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &view)
	if view.State != "complete" {
		t.Fatalf("expected complete state, got %q", view.State)
	}
	if view.Summary.Inserted != 1 || view.Summary.ChangesApplied != 1 {
		t.Fatalf("unexpected commit summary: %+v", view.Summary)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/panels", nil)
	requireStatus(t, resp, http.StatusOK)
	var panels []panelView
	decodeBody(t, resp, &panels)
	if len(panels) != 2 {
		t.Fatalf("expected 2 panels after import, got %d", len(panels))
	}
	if panels[0].Name != "SP-400" || panels[0].PriceUSD == nil || *panels[0].PriceUSD != 199.99 {
		t.Fatalf("expected updated price on SP-400, got %+v", panels[0])
	}

	// A fresh upload after completion implicitly resets the session.
	resp = uploadCSV(t, client, ts.URL, "another.csv", "Model,Brand,Wattage\nSP-700,Volt,700\n")
	requireStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &view)
	if view.State != "mapping" || view.SourceName != "another.csv" {
		t.Fatalf("expected implicit reset into mapping, got %+v", view)
	}
}

func TestImportCancel(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	client := ts.Client()

	resp := uploadCSV(t, client, ts.URL, "list.csv", "Model,Brand,Wattage\nSP-400,Acme,400\n")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Cancel is only legal from preview.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/cancel", nil)
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/preview", nil)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/cancel", nil)
	requireStatus(t, resp, http.StatusOK)
	var view sessionView
	decodeBody(t, resp, &view)
	if view.State != "upload" {
		t.Fatalf("expected upload state after cancel, got %q", view.State)
	}
}

func TestMappingRebind(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	client := ts.Client()

	resp := uploadCSV(t, client, ts.URL, "list.csv", "Model,Brand,Watts,Size\nSP-400,Acme,400,68.9\n")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/mapping", rebindRequest{
		Field:  "length_cm",
		Header: "Size",
		Unit:   "in",
	})
	requireStatus(t, resp, http.StatusOK)
	var view sessionView
	decodeBody(t, resp, &view)

	found := false
	for _, mapping := range view.Mappings {
		if mapping.Field == "length_cm" {
			found = mapping.Header == "Size" && mapping.Unit == "in"
		}
	}
	if !found {
		t.Fatalf("expected length rebound to Size/in, got %v", view.Mappings)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/import/mapping", rebindRequest{
		Field: "bogus", Header: "Size",
	})
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestPanelEndpoints(t *testing.T) {
	t.Parallel()

	ts, store := newTestServer(t)
	client := ts.Client()
	stored := seedPanel(t, store, "SP-400")

	price := 300.0
	resp := doJSON(t, client, http.MethodPatch, ts.URL+"/api/panels/"+stored.ID, panelEditRequest{PriceUSD: &price})
	requireStatus(t, resp, http.StatusOK)
	var view panelView
	decodeBody(t, resp, &view)
	if view.PriceUSD == nil || *view.PriceUSD != 300 {
		t.Fatalf("expected edited price, got %v", view.PriceUSD)
	}
	overridden := false
	for _, name := range view.Overridden {
		if name == "price_usd" {
			overridden = true
		}
	}
	if !overridden {
		t.Fatalf("expected price pinned as override, got %v", view.Overridden)
	}

	empty := ""
	resp = doJSON(t, client, http.MethodPatch, ts.URL+"/api/panels/"+stored.ID, panelEditRequest{Name: &empty})
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPut, ts.URL+"/api/panels/"+stored.ID+"/favorite", favoriteRequest{Favorite: true})
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/panels?favorites=1", nil)
	requireStatus(t, resp, http.StatusOK)
	var panels []panelView
	decodeBody(t, resp, &panels)
	if len(panels) != 1 || !panels[0].Favorite {
		t.Fatalf("expected one favorite, got %v", panels)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/panels/"+stored.ID+"/prices", nil)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/panels/"+stored.ID+"?reason=discontinued", nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("delete panel: %v", err)
	}
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/panels/"+stored.ID, nil)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestPanelsQueryValidation(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodGet, ts.URL+"/api/panels?sort=bogus", nil)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/panels?price_min=abc", nil)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestFlagEndpoints(t *testing.T) {
	t.Parallel()

	ts, store := newTestServer(t)
	client := ts.Client()
	stored := seedPanel(t, store, "SP-400")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/flags", flagCreateRequest{
		PanelID:   stored.ID,
		Type:      "user_submitted",
		Suggested: map[string]string{"wattage": "410"},
		Comment:   "datasheet says 410",
	})
	requireStatus(t, resp, http.StatusCreated)
	var created map[string]string
	decodeBody(t, resp, &created)
	flagID := created["id"]
	if flagID == "" {
		t.Fatal("expected created flag id")
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/flags?status=pending", nil)
	requireStatus(t, resp, http.StatusOK)
	var flags []flagView
	decodeBody(t, resp, &flags)
	if len(flags) != 1 || flags[0].ID != flagID {
		t.Fatalf("unexpected pending flags: %v", flags)
	}

	// Approval with no request body applies the suggestion.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/flags/"+flagID+"/approve", nil)
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	updated, _, err := store.GetPanelByID(stored.ID)
	if err != nil {
		t.Fatalf("reload panel: %v", err)
	}
	if updated.Wattage == nil || *updated.Wattage != 410 {
		t.Fatalf("expected suggested wattage applied, got %v", updated.Wattage)
	}

	// Approving again conflicts.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/flags/"+flagID+"/approve", nil)
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/flags", flagCreateRequest{
		PanelID: stored.ID,
		Type:    "parse_failure",
	})
	requireStatus(t, resp, http.StatusCreated)
	decodeBody(t, resp, &created)

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/flags/"+created["id"]+"/reject", flagResolveRequest{Note: "noise"})
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/flags?status=pending", nil)
	requireStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &flags)
	if len(flags) != 0 {
		t.Fatalf("expected empty queue, got %v", flags)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/flags", flagCreateRequest{
		PanelID: "missing",
		Type:    "parse_failure",
	})
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestCompareEndpoints(t *testing.T) {
	t.Parallel()

	ts, store := newTestServer(t)
	client := ts.Client()
	first := seedPanel(t, store, "SP-400")
	second := seedPanel(t, store, "SP-600")

	for _, id := range []string{second.ID, first.ID} {
		resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/compare/"+id, nil)
		requireStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()
	}

	resp := doJSON(t, client, http.MethodGet, ts.URL+"/api/compare", nil)
	requireStatus(t, resp, http.StatusOK)
	var panels []panelView
	decodeBody(t, resp, &panels)
	if len(panels) != 2 || panels[0].Name != "SP-600" {
		t.Fatalf("expected selection order preserved, got %v", panels)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/compare/missing", nil)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodDelete, ts.URL+"/api/compare/"+second.ID, nil)
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodDelete, ts.URL+"/api/compare", nil)
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/compare", nil)
	requireStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &panels)
	if len(panels) != 0 {
		t.Fatalf("expected cleared selection, got %v", panels)
	}
}

func TestPagesRender(t *testing.T) {
	t.Parallel()

	ts, store := newTestServer(t)
	client := ts.Client()
	seedPanel(t, store, "SP-400")

	for _, path := range []string{"/catalog", "/import", "/flags"} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, resp.StatusCode, body)
		}
		if !strings.Contains(string(body), "panelbase") {
			t.Fatalf("%s: unexpected page body", path)
		}
	}

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	resp.Body.Close()
	if resp.Request.URL.Path != "/catalog" {
		t.Fatalf("expected index redirect to /catalog, got %s", resp.Request.URL.Path)
	}
}
