// Package web serves a localhost-only single-admin UI; it intentionally has
// no auth/CSRF protection in this mode.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"panelbase/catalog"
	"panelbase/config"
	"panelbase/importer"
	"panelbase/moderation"
	"panelbase/panel"
	"panelbase/session"
	"panelbase/storage"
	"panelbase/units"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	store *storage.SQLiteStore
	cfg   config.Config
	mux   *http.ServeMux

	// One import session and one comparison set at a time; the admin tool is
	// single-user.
	sessionMu sync.Mutex
	session   *session.Session

	compareMu sync.Mutex
	compare   catalog.CompareSet
}

type catalogPageView struct {
	Title  string
	Panels []panelView
	Total  int
	Shown  int
}

type importPageView struct {
	Title   string
	Session sessionView
}

type flagsPageView struct {
	Title   string
	Pending []flagView
}

type panelEditRequest struct {
	Name         *string  `json:"name"`
	Manufacturer *string  `json:"manufacturer"`
	ASIN         *string  `json:"asin"`
	LengthCm     *float64 `json:"lengthCm"`
	WidthCm      *float64 `json:"widthCm"`
	WeightKg     *float64 `json:"weightKg"`
	Wattage      *float64 `json:"wattage"`
	Voltage      *float64 `json:"voltage"`
	PriceUSD     *float64 `json:"priceUsd"`
	Description  *string  `json:"description"`
	ImageURL     *string  `json:"imageUrl"`
	WebURL       *string  `json:"webUrl"`
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

type rebindRequest struct {
	Field  string `json:"field"`
	Header string `json:"header"`
	Unit   string `json:"unit"`
}

type flagCreateRequest struct {
	PanelID   string            `json:"panelId"`
	Type      string            `json:"type"`
	Fields    []string          `json:"fields"`
	Suggested map[string]string `json:"suggested"`
	Comment   string            `json:"comment"`
}

type flagResolveRequest struct {
	Note string `json:"note"`
}

func NewServer(store *storage.SQLiteStore, cfg config.Config) http.Handler {
	server := &Server{
		store:   store,
		cfg:     cfg,
		session: newSession(cfg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server.handleIndex)
	mux.HandleFunc("GET /catalog", server.handleCatalogPage)
	mux.HandleFunc("GET /import", server.handleImportPage)
	mux.HandleFunc("GET /flags", server.handleFlagsPage)

	mux.HandleFunc("GET /api/panels", server.handleAPIPanels)
	mux.HandleFunc("GET /api/panels/{id}", server.handleAPIPanelGet)
	mux.HandleFunc("PATCH /api/panels/{id}", server.handleAPIPanelPatch)
	mux.HandleFunc("DELETE /api/panels/{id}", server.handleAPIPanelDelete)
	mux.HandleFunc("PUT /api/panels/{id}/favorite", server.handleAPIFavorite)
	mux.HandleFunc("GET /api/panels/{id}/prices", server.handleAPIPriceHistory)

	mux.HandleFunc("GET /api/compare", server.handleAPICompareList)
	mux.HandleFunc("POST /api/compare/{id}", server.handleAPICompareAdd)
	mux.HandleFunc("DELETE /api/compare/{id}", server.handleAPICompareRemove)
	mux.HandleFunc("DELETE /api/compare", server.handleAPICompareClear)

	mux.HandleFunc("GET /api/import/session", server.handleAPISession)
	mux.HandleFunc("POST /api/import/upload", server.handleAPIUpload)
	mux.HandleFunc("POST /api/import/mapping", server.handleAPIRebind)
	mux.HandleFunc("POST /api/import/preview", server.handleAPIPreview)
	mux.HandleFunc("POST /api/import/commit", server.handleAPICommit)
	mux.HandleFunc("POST /api/import/cancel", server.handleAPICancel)
	mux.HandleFunc("POST /api/import/reset", server.handleAPIReset)

	mux.HandleFunc("GET /api/flags", server.handleAPIFlagsList)
	mux.HandleFunc("POST /api/flags", server.handleAPIFlagCreate)
	mux.HandleFunc("POST /api/flags/{id}/approve", server.handleAPIFlagApprove)
	mux.HandleFunc("POST /api/flags/{id}/reject", server.handleAPIFlagReject)
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func newSession(cfg config.Config) *session.Session {
	sess := session.New()
	length, _ := units.ParseUnit(cfg.Import.DefaultLengthUnit)
	weight, _ := units.ParseUnit(cfg.Import.DefaultWeightUnit)
	sess.SetDefaultUnits(length, weight)
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/catalog", http.StatusFound)
}

func (s *Server) handleCatalogPage(w http.ResponseWriter, r *http.Request) {
	viewCfg, err := ParseViewConfig(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	panels, err := s.store.ListPanels()
	if err != nil {
		http.Error(w, fmt.Sprintf("list panels: %v", err), http.StatusInternalServerError)
		return
	}
	filtered := catalog.Apply(panels, viewCfg)

	view := catalogPageView{
		Title:  "panelbase - catalog",
		Panels: buildPanelViews(filtered),
		Total:  len(panels),
		Shown:  len(filtered),
	}
	if err := renderTemplate(w, "catalog.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	view := importPageView{
		Title:   "panelbase - import",
		Session: buildSessionView(s.session),
	}
	s.sessionMu.Unlock()

	if err := renderTemplate(w, "import.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleFlagsPage(w http.ResponseWriter, r *http.Request) {
	flags, err := s.store.ListFlags(moderation.StatusPending)
	if err != nil {
		http.Error(w, fmt.Sprintf("list flags: %v", err), http.StatusInternalServerError)
		return
	}

	view := flagsPageView{
		Title:   "panelbase - flags",
		Pending: buildFlagViews(flags),
	}
	if err := renderTemplate(w, "flags.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleAPIPanels(w http.ResponseWriter, r *http.Request) {
	viewCfg, err := ParseViewConfig(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	panels, err := s.store.ListPanels()
	if err != nil {
		http.Error(w, fmt.Sprintf("list panels: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, buildPanelViews(catalog.Apply(panels, viewCfg)))
}

func (s *Server) handleAPIPanelGet(w http.ResponseWriter, r *http.Request) {
	p, found, err := s.store.GetPanelByID(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("get panel: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "panel not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, buildPanelView(p))
}

func (s *Server) handleAPIPanelPatch(w http.ResponseWriter, r *http.Request) {
	existing, found, err := s.store.GetPanelByID(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("get panel: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "panel not found", http.StatusNotFound)
		return
	}

	var body panelEditRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, edited := applyPanelEdit(existing, body)
	if len(edited) == 0 {
		writeJSON(w, http.StatusOK, buildPanelView(existing))
		return
	}
	if updated.Name == "" || updated.Manufacturer == "" {
		http.Error(w, "name and manufacturer must not be empty", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdatePanel(updated, edited); err != nil {
		if errors.Is(err, storage.ErrPanelNotFound) {
			http.Error(w, "panel not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("update panel: %v", err), http.StatusInternalServerError)
		return
	}

	s.autoResolveFlags()

	refreshed, _, err := s.store.GetPanelByID(updated.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("get panel: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, buildPanelView(refreshed))
}

func (s *Server) handleAPIPanelDelete(w http.ResponseWriter, r *http.Request) {
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if err := s.store.DeletePanel(r.PathValue("id"), reason); err != nil {
		if errors.Is(err, storage.ErrPanelNotFound) {
			http.Error(w, "panel not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("delete panel: %v", err), http.StatusInternalServerError)
		return
	}

	s.compareMu.Lock()
	s.compare.Remove(r.PathValue("id"))
	s.compareMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIFavorite(w http.ResponseWriter, r *http.Request) {
	var body favoriteRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.SetFavorite(r.PathValue("id"), body.Favorite); err != nil {
		if errors.Is(err, storage.ErrPanelNotFound) {
			http.Error(w, "panel not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("set favorite: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIPriceHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, found, err := s.store.GetPanelByID(id); err != nil {
		http.Error(w, fmt.Sprintf("get panel: %v", err), http.StatusInternalServerError)
		return
	} else if !found {
		http.Error(w, "panel not found", http.StatusNotFound)
		return
	}

	changes, err := s.store.ListPriceHistory(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("list price history: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, buildPriceChangeViews(changes))
}

func (s *Server) handleAPICompareList(w http.ResponseWriter, r *http.Request) {
	panels, err := s.store.ListPanels()
	if err != nil {
		http.Error(w, fmt.Sprintf("list panels: %v", err), http.StatusInternalServerError)
		return
	}

	s.compareMu.Lock()
	selected := s.compare.Select(panels)
	s.compareMu.Unlock()

	writeJSON(w, http.StatusOK, buildPanelViews(selected))
}

func (s *Server) handleAPICompareAdd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, found, err := s.store.GetPanelByID(id); err != nil {
		http.Error(w, fmt.Sprintf("get panel: %v", err), http.StatusInternalServerError)
		return
	} else if !found {
		http.Error(w, "panel not found", http.StatusNotFound)
		return
	}

	s.compareMu.Lock()
	err := s.compare.Add(id)
	s.compareMu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPICompareRemove(w http.ResponseWriter, r *http.Request) {
	s.compareMu.Lock()
	s.compare.Remove(r.PathValue("id"))
	s.compareMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPICompareClear(w http.ResponseWriter, r *http.Request) {
	s.compareMu.Lock()
	s.compare.Clear()
	s.compareMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	view := buildSessionView(s.session)
	s.sessionMu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart form: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", tempUploadPattern(header.Filename))
	if err != nil {
		http.Error(w, fmt.Sprintf("create temp upload: %v", err), http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		http.Error(w, fmt.Sprintf("save upload: %v", err), http.StatusInternalServerError)
		return
	}
	if err := tmp.Close(); err != nil {
		http.Error(w, fmt.Sprintf("close upload temp file: %v", err), http.StatusInternalServerError)
		return
	}

	format, err := importer.InferFormat(header.Filename, strings.TrimSpace(r.FormValue("format")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reader, err := importer.ReaderForFormat(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	parsed, err := reader.Read(tmpPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	parsed.SourceName = filepath.Base(header.Filename)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.session.State() != session.StateUpload {
		s.session.Reset()
	}
	if err := s.session.LoadFile(parsed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPIRebind(w http.ResponseWriter, r *http.Request) {
	var body rebindRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	field, ok := panel.ParseField(body.Field)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown field: %q", body.Field), http.StatusBadRequest)
		return
	}
	var unit units.Unit
	if strings.TrimSpace(body.Unit) != "" {
		parsed, err := units.ParseUnit(body.Unit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		unit = parsed
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if err := s.session.Rebind(field, body.Header, unit); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.session.BuildPreview(s.store.LoadSnapshot); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPICommit(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.session.Commit(s.store, s.cfg.Import.DefaultSource); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if s.cfg.Flags.AutoResolveAfterImport {
		s.autoResolveFlags()
	}

	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPICancel(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.session.Cancel(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	s.session = newSession(s.cfg)
	writeJSON(w, http.StatusOK, buildSessionView(s.session))
}

func (s *Server) handleAPIFlagsList(w http.ResponseWriter, r *http.Request) {
	var status moderation.FlagStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := moderation.ParseFlagStatus(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status = parsed
	}

	flags, err := s.store.ListFlags(status)
	if err != nil {
		http.Error(w, fmt.Sprintf("list flags: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, buildFlagViews(flags))
}

func (s *Server) handleAPIFlagCreate(w http.ResponseWriter, r *http.Request) {
	var body flagCreateRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flagType, err := moderation.ParseFlagType(body.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fields := make([]panel.Field, 0, len(body.Fields))
	for _, name := range body.Fields {
		field, ok := panel.ParseField(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown field: %q", name), http.StatusBadRequest)
			return
		}
		fields = append(fields, field)
	}
	suggested := make(map[panel.Field]string, len(body.Suggested))
	for name, value := range body.Suggested {
		field, ok := panel.ParseField(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown field: %q", name), http.StatusBadRequest)
			return
		}
		suggested[field] = value
	}

	id, err := s.store.InsertFlag(moderation.Flag{
		PanelID:   body.PanelID,
		Type:      flagType,
		Fields:    fields,
		Suggested: suggested,
		Comment:   strings.TrimSpace(body.Comment),
	})
	if err != nil {
		if errors.Is(err, storage.ErrPanelNotFound) {
			http.Error(w, "panel not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("insert flag: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleAPIFlagApprove(w http.ResponseWriter, r *http.Request) {
	flag, found, err := s.store.GetFlagByID(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("get flag: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "flag not found", http.StatusNotFound)
		return
	}
	if flag.Status != moderation.StatusPending {
		http.Error(w, "flag is already resolved", http.StatusConflict)
		return
	}

	var body flagResolveRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.ApproveFlag(flag.ID, strings.TrimSpace(body.Note)); err != nil {
		http.Error(w, fmt.Sprintf("approve flag: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIFlagReject(w http.ResponseWriter, r *http.Request) {
	var body flagResolveRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.ResolveFlag(r.PathValue("id"), moderation.StatusRejected, strings.TrimSpace(body.Note)); err != nil {
		if errors.Is(err, storage.ErrFlagNotFound) {
			http.Error(w, "flag not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("resolve flag: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// autoResolveFlags closes pending missing-data flags whose fields were filled
// by an import or edit. Failures are ignored; the flags stay pending and
// resolve on a later pass.
func (s *Server) autoResolveFlags() {
	_, _ = s.store.AutoResolvePendingFlags()
}

func renderTemplate(w http.ResponseWriter, pageTemplate string, data any) error {
	tmpl, err := template.New("base.html").Funcs(template.FuncMap{
		"fmtNumber": func(value *float64) string {
			if value == nil {
				return "-"
			}
			return fmt.Sprintf("%.2f", *value)
		},
	}).ParseFS(templateFS, "templates/base.html", "templates/"+pageTemplate)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", pageTemplate, err)
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("render template %s: %w", pageTemplate, err)
	}
	return nil
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func tempUploadPattern(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." {
		return "upload-*"
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "upload"
	}
	if ext == "" {
		return stem + "-*"
	}
	return stem + "-*" + ext
}
