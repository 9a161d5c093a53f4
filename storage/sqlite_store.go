package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"panelbase/panel"
	"panelbase/reconcile"
)

type SQLiteStore struct {
	db *sql.DB
}

var ErrPanelNotFound = errors.New("panel not found")

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS panels (
	id TEXT PRIMARY KEY,
	asin TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	manufacturer TEXT NOT NULL,
	length_cm REAL,
	width_cm REAL,
	weight_kg REAL,
	wattage REAL,
	voltage REAL,
	price_usd REAL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	web_url TEXT NOT NULL DEFAULT '',
	favorite INTEGER NOT NULL DEFAULT 0,
	missing_fields TEXT NOT NULL DEFAULT '',
	manual_overrides TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_panels_asin ON panels(asin) WHERE asin <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_panels_identity ON panels(lower(name), lower(manufacturer));

CREATE TABLE IF NOT EXISTS flagged_panels (
	id TEXT PRIMARY KEY,
	panel_id TEXT NOT NULL,
	flag_type TEXT NOT NULL,
	fields TEXT NOT NULL DEFAULT '',
	suggested TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	admin_note TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	resolved_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_flagged_panels_status ON flagged_panels(status);

CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	panel_id TEXT NOT NULL,
	old_price REAL,
	new_price REAL NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS deleted_asins (
	asin TEXT PRIMARY KEY,
	panel_name TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	deleted_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const panelColumns = `
	id,
	asin,
	name,
	manufacturer,
	length_cm,
	width_cm,
	weight_kg,
	wattage,
	voltage,
	price_usd,
	description,
	image_url,
	web_url,
	favorite,
	missing_fields,
	manual_overrides,
	created_at,
	updated_at,
	(SELECT COUNT(*) FROM flagged_panels f WHERE f.panel_id = panels.id AND f.status = 'pending'),
	(SELECT COUNT(*) FROM flagged_panels f WHERE f.panel_id = panels.id AND f.status <> 'pending')`

// ListPanels returns the full catalog snapshot, including override sets and
// moderation counters, ordered by name.
func (s *SQLiteStore) ListPanels() ([]panel.Panel, error) {
	rows, err := s.db.Query(`SELECT ` + panelColumns + ` FROM panels ORDER BY lower(name), id;`)
	if err != nil {
		return nil, fmt.Errorf("query panels: %w", err)
	}
	defer rows.Close()

	panels := make([]panel.Panel, 0, 256)
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		panels = append(panels, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panels: %w", err)
	}

	return panels, nil
}

// GetPanelByID returns one panel; found is false for unknown ids.
func (s *SQLiteStore) GetPanelByID(id string) (panel.Panel, bool, error) {
	row := s.db.QueryRow(`SELECT `+panelColumns+` FROM panels WHERE id = ?;`, id)
	p, err := scanPanel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return panel.Panel{}, false, nil
		}
		return panel.Panel{}, false, fmt.Errorf("query panel %s: %w", id, err)
	}
	return p, true, nil
}

// GetPanelByASIN looks a panel up by its normalized marketplace identifier;
// found is false for unknown or empty ASINs.
func (s *SQLiteStore) GetPanelByASIN(asin string) (panel.Panel, bool, error) {
	normalized := strings.ToUpper(strings.TrimSpace(asin))
	if normalized == "" {
		return panel.Panel{}, false, nil
	}

	row := s.db.QueryRow(`SELECT `+panelColumns+` FROM panels WHERE asin = ?;`, normalized)
	p, err := scanPanel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return panel.Panel{}, false, nil
		}
		return panel.Panel{}, false, fmt.Errorf("query panel by asin %s: %w", normalized, err)
	}
	return p, true, nil
}

// InsertPanels bulk-inserts new catalog records, assigning ids. Inserts are
// OR IGNORE on the ASIN and name+manufacturer unique indexes so retrying a
// partially-failed commit cannot double-write.
func (s *SQLiteStore) InsertPanels(panels []panel.Panel) (int, error) {
	if len(panels) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	const insertStmt = `
INSERT OR IGNORE INTO panels (
	id, asin, name, manufacturer,
	length_cm, width_cm, weight_kg, wattage, voltage, price_usd,
	description, image_url, web_url, favorite,
	missing_fields, manual_overrides, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, p := range panels {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := stmt.Exec(
			id,
			p.ASIN,
			p.Name,
			p.Manufacturer,
			nullableFloat(p.LengthCm),
			nullableFloat(p.WidthCm),
			nullableFloat(p.WeightKg),
			nullableFloat(p.Wattage),
			nullableFloat(p.Voltage),
			nullableFloat(p.PriceUSD),
			p.Description,
			p.ImageURL,
			p.WebURL,
			boolToInt(p.Favorite),
			joinFields(p.MissingFields),
			strings.Join(p.ManualOverrides.Names(), ","),
			now,
			now,
		)
		if err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("insert panel %q: %w", p.Name, err)
		}

		rows, err := res.RowsAffected()
		if err == nil && rows > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit transaction: %w", err)
	}

	return inserted, nil
}

// ApplyChangeset updates the listed fields on one panel, touches updated_at,
// recomputes the missing-field bookkeeping, and records price history when
// the price changed. Overridden fields are skipped even if present in the
// changeset.
func (s *SQLiteStore) ApplyChangeset(panelID string, changes reconcile.Changeset, source string) error {
	if len(changes) == 0 {
		return nil
	}

	current, found, err := s.GetPanelByID(panelID)
	if err != nil {
		return err
	}
	if !found {
		return ErrPanelNotFound
	}

	assignments := make([]string, 0, len(changes)+2)
	args := make([]any, 0, len(changes)+4)
	for _, field := range panel.AllFields() {
		value, ok := changes[field]
		if !ok || current.ManualOverrides.Has(field) {
			continue
		}
		assignments = append(assignments, string(field)+" = ?")
		args = append(args, value)
	}
	if len(assignments) == 0 {
		return nil
	}

	applied := applyToPanel(current, changes)
	assignments = append(assignments, "missing_fields = ?", "updated_at = ?")
	args = append(args, joinFields(recomputeMissing(applied)), time.Now().UTC().Format(time.RFC3339), panelID)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	query := "UPDATE panels SET " + strings.Join(assignments, ", ") + " WHERE id = ?;"
	res, err := tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update panel %s: %w", panelID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read updated row count: %w", err)
	}
	if rowsAffected == 0 {
		_ = tx.Rollback()
		return ErrPanelNotFound
	}

	if newPrice, ok := changes[panel.FieldPriceUSD]; ok && !current.ManualOverrides.Has(panel.FieldPriceUSD) {
		if _, err := tx.Exec(
			`INSERT INTO price_history (panel_id, old_price, new_price, source) VALUES (?, ?, ?, ?);`,
			panelID, nullableFloat(current.PriceUSD), newPrice, source,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record price history for panel %s: %w", panelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}
	return nil
}

// UpdatePanel replaces all schema fields from an admin edit and merges the
// edited field names into the manual-override set so later imports leave
// them alone.
func (s *SQLiteStore) UpdatePanel(p panel.Panel, edited panel.FieldSet) error {
	if p.ID == "" {
		return fmt.Errorf("panel id is required")
	}

	current, found, err := s.GetPanelByID(p.ID)
	if err != nil {
		return err
	}
	if !found {
		return ErrPanelNotFound
	}

	overrides := current.ManualOverrides.Merge(edited)

	const updateStmt = `
UPDATE panels
SET asin = ?,
	name = ?,
	manufacturer = ?,
	length_cm = ?,
	width_cm = ?,
	weight_kg = ?,
	wattage = ?,
	voltage = ?,
	price_usd = ?,
	description = ?,
	image_url = ?,
	web_url = ?,
	missing_fields = ?,
	manual_overrides = ?,
	updated_at = ?
WHERE id = ?;`

	res, err := s.db.Exec(
		updateStmt,
		p.ASIN,
		p.Name,
		p.Manufacturer,
		nullableFloat(p.LengthCm),
		nullableFloat(p.WidthCm),
		nullableFloat(p.WeightKg),
		nullableFloat(p.Wattage),
		nullableFloat(p.Voltage),
		nullableFloat(p.PriceUSD),
		p.Description,
		p.ImageURL,
		p.WebURL,
		joinFields(recomputeMissing(p)),
		strings.Join(overrides.Names(), ","),
		time.Now().UTC().Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update panel %s: %w", p.ID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated row count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPanelNotFound
	}

	return nil
}

// SetFavorite toggles the favorite marker without touching updated_at.
func (s *SQLiteStore) SetFavorite(panelID string, favorite bool) error {
	res, err := s.db.Exec(`UPDATE panels SET favorite = ? WHERE id = ?;`, boolToInt(favorite), panelID)
	if err != nil {
		return fmt.Errorf("set favorite for panel %s: %w", panelID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated row count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPanelNotFound
	}
	return nil
}

// DeletePanel removes a panel with cascade cleanup of its flags and price
// history, and records the ASIN in the deletion audit so later imports of
// the same product are suppressed.
func (s *SQLiteStore) DeletePanel(id string, reason string) error {
	current, found, err := s.GetPanelByID(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrPanelNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM flagged_panels WHERE panel_id = ?;`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete flags for panel %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM price_history WHERE panel_id = ?;`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete price history for panel %s: %w", id, err)
	}
	if current.ASIN != "" {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO deleted_asins (asin, panel_name, reason) VALUES (?, ?, ?);`,
			current.ASIN, current.Name, reason,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record deleted asin %s: %w", current.ASIN, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM panels WHERE id = ?;`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete panel %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// ListDeletedASINs returns the re-ingestion suppression set.
func (s *SQLiteStore) ListDeletedASINs() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT asin FROM deleted_asins;`)
	if err != nil {
		return nil, fmt.Errorf("query deleted asins: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, 64)
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, fmt.Errorf("scan deleted asin: %w", err)
		}
		out[asin] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted asins: %w", err)
	}
	return out, nil
}

// LoadSnapshot builds the read-only view the diff engine matches against. A
// load failure yields an unavailable snapshot so the import pipeline can
// degrade to all-new classification instead of dropping rows.
func (s *SQLiteStore) LoadSnapshot() reconcile.Snapshot {
	panels, err := s.ListPanels()
	if err != nil {
		return reconcile.Snapshot{Unavailable: true}
	}
	deleted, err := s.ListDeletedASINs()
	if err != nil {
		return reconcile.Snapshot{Unavailable: true}
	}
	return reconcile.Snapshot{Panels: panels, DeletedASINs: deleted}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPanel(row rowScanner) (panel.Panel, error) {
	var (
		p                       panel.Panel
		length, width, weight   sql.NullFloat64
		wattage, voltage, price sql.NullFloat64
		favorite                int
		missingRaw              string
		overridesRaw            string
		createdRaw, updatedRaw  string
	)

	if err := row.Scan(
		&p.ID,
		&p.ASIN,
		&p.Name,
		&p.Manufacturer,
		&length,
		&width,
		&weight,
		&wattage,
		&voltage,
		&price,
		&p.Description,
		&p.ImageURL,
		&p.WebURL,
		&favorite,
		&missingRaw,
		&overridesRaw,
		&createdRaw,
		&updatedRaw,
		&p.PendingFlags,
		&p.ResolvedFlags,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return panel.Panel{}, err
		}
		return panel.Panel{}, fmt.Errorf("scan panel: %w", err)
	}

	p.LengthCm = floatPtr(length)
	p.WidthCm = floatPtr(width)
	p.WeightKg = floatPtr(weight)
	p.Wattage = floatPtr(wattage)
	p.Voltage = floatPtr(voltage)
	p.PriceUSD = floatPtr(price)
	p.Favorite = favorite != 0
	p.MissingFields = splitFields(missingRaw)
	p.ManualOverrides = panel.ParseFieldSet(strings.Split(overridesRaw, ","))
	p.CreatedAt = parseStoredTime(createdRaw)
	p.UpdatedAt = parseStoredTime(updatedRaw)

	return p, nil
}

func applyToPanel(p panel.Panel, changes reconcile.Changeset) panel.Panel {
	for field, value := range changes {
		if p.ManualOverrides.Has(field) {
			continue
		}
		if field.IsNumeric() {
			if number, ok := value.(float64); ok {
				v := number
				p.SetNumericValue(field, &v)
			}
			continue
		}
		if text, ok := value.(string); ok {
			p.SetTextValue(field, text)
		}
	}
	return p
}

func recomputeMissing(p panel.Panel) []panel.Field {
	missing := make([]panel.Field, 0, 4)
	for _, field := range panel.NumericFields() {
		if field == panel.FieldVoltage {
			continue
		}
		if p.NumericValue(field) == nil {
			missing = append(missing, field)
		}
	}
	return missing
}

func joinFields(fields []panel.Field) string {
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, string(field))
	}
	return strings.Join(names, ",")
}

func splitFields(raw string) []panel.Field {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]panel.Field, 0, len(parts))
	for _, part := range parts {
		if field, ok := panel.ParseField(part); ok {
			out = append(out, field)
		}
	}
	return out
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseStoredTime(raw string) time.Time {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed
	}
	// CURRENT_TIMESTAMP default rows
	if parsed, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return parsed
	}
	return time.Time{}
}
