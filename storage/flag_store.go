package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"panelbase/moderation"
	"panelbase/panel"
	"panelbase/units"
)

var ErrFlagNotFound = errors.New("flag not found")

// InsertFlag stores a new moderation flag and returns its assigned id.
func (s *SQLiteStore) InsertFlag(flag moderation.Flag) (string, error) {
	if flag.PanelID == "" {
		return "", fmt.Errorf("flag panel id is required")
	}
	if _, found, err := s.GetPanelByID(flag.PanelID); err != nil {
		return "", err
	} else if !found {
		return "", ErrPanelNotFound
	}

	id := flag.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := flag.Status
	if status == "" {
		status = moderation.StatusPending
	}

	suggested, err := encodeSuggested(flag.Suggested)
	if err != nil {
		return "", err
	}

	if _, err := s.db.Exec(
		`INSERT INTO flagged_panels (id, panel_id, flag_type, fields, suggested, comment, status, admin_note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		id,
		flag.PanelID,
		string(flag.Type),
		joinFields(flag.Fields),
		suggested,
		flag.Comment,
		string(status),
		flag.AdminNote,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("insert flag for panel %s: %w", flag.PanelID, err)
	}

	return id, nil
}

// ListFlags returns flags in creation order, optionally restricted to one
// status. An empty status returns everything.
func (s *SQLiteStore) ListFlags(status moderation.FlagStatus) ([]moderation.Flag, error) {
	query := `SELECT id, panel_id, flag_type, fields, suggested, comment, status, admin_note, created_at, resolved_at
FROM flagged_panels`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id;`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	flags := make([]moderation.Flag, 0, 32)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flags: %w", err)
	}
	return flags, nil
}

// GetFlagByID returns one flag; found is false for unknown ids.
func (s *SQLiteStore) GetFlagByID(id string) (moderation.Flag, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, panel_id, flag_type, fields, suggested, comment, status, admin_note, created_at, resolved_at
FROM flagged_panels WHERE id = ?;`, id)
	flag, err := scanFlag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return moderation.Flag{}, false, nil
		}
		return moderation.Flag{}, false, fmt.Errorf("query flag %s: %w", id, err)
	}
	return flag, true, nil
}

// ResolveFlag moves a flag to approved or rejected and stamps the resolution
// time. Resolving an already-resolved flag overwrites the prior resolution.
func (s *SQLiteStore) ResolveFlag(id string, status moderation.FlagStatus, adminNote string) error {
	if status != moderation.StatusApproved && status != moderation.StatusRejected {
		return fmt.Errorf("cannot resolve a flag to status %q", status)
	}

	res, err := s.db.Exec(
		`UPDATE flagged_panels SET status = ?, admin_note = ?, resolved_at = ? WHERE id = ?;`,
		string(status), adminNote, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("resolve flag %s: %w", id, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated row count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrFlagNotFound
	}
	return nil
}

// ApproveFlag resolves a pending flag as approved and performs the side
// effect the approval carries: suggested corrections are written through as
// manual overrides, a delete recommendation removes the panel. Missing-data
// and parse-failure flags resolve without side effects.
func (s *SQLiteStore) ApproveFlag(id, adminNote string) error {
	flag, found, err := s.GetFlagByID(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrFlagNotFound
	}
	if flag.Status != moderation.StatusPending {
		return fmt.Errorf("flag %s is already resolved", id)
	}

	switch flag.Type {
	case moderation.FlagUserSubmitted:
		if len(flag.Suggested) > 0 {
			corrections, edited, err := moderation.SuggestedCorrections(flag, units.ParseNumber)
			if err != nil {
				return err
			}
			p, found, err := s.GetPanelByID(flag.PanelID)
			if err != nil {
				return err
			}
			if !found {
				return ErrPanelNotFound
			}
			if err := s.UpdatePanel(applyCorrections(p, corrections), edited); err != nil {
				return err
			}
		}
	case moderation.FlagDeleteRecommended:
		if err := s.DeletePanel(flag.PanelID, "flag approved: "+flag.Comment); err != nil {
			return err
		}
	}

	return s.ResolveFlag(id, moderation.StatusApproved, adminNote)
}

// AutoResolvePendingFlags closes pending missing-data flags whose fields have
// since been populated, returning the number resolved.
func (s *SQLiteStore) AutoResolvePendingFlags() (int, error) {
	flags, err := s.ListFlags(moderation.StatusPending)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, flag := range flags {
		p, found, err := s.GetPanelByID(flag.PanelID)
		if err != nil {
			return resolved, err
		}
		if !found {
			continue
		}
		if !moderation.CanAutoResolve(flag, p) {
			continue
		}
		if err := s.ResolveFlag(flag.ID, moderation.StatusApproved, "auto-resolved: missing data filled"); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func applyCorrections(p panel.Panel, corrections map[panel.Field]any) panel.Panel {
	for field, value := range corrections {
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

// PriceChange is one recorded price movement for a panel.
type PriceChange struct {
	PanelID   string
	OldPrice  *float64
	NewPrice  float64
	Source    string
	CreatedAt time.Time
}

// ListPriceHistory returns a panel's price changes, newest first.
func (s *SQLiteStore) ListPriceHistory(panelID string) ([]PriceChange, error) {
	rows, err := s.db.Query(
		`SELECT panel_id, old_price, new_price, source, created_at
FROM price_history WHERE panel_id = ? ORDER BY id DESC;`, panelID)
	if err != nil {
		return nil, fmt.Errorf("query price history for panel %s: %w", panelID, err)
	}
	defer rows.Close()

	changes := make([]PriceChange, 0, 16)
	for rows.Next() {
		var (
			change     PriceChange
			oldPrice   sql.NullFloat64
			createdRaw string
		)
		if err := rows.Scan(&change.PanelID, &oldPrice, &change.NewPrice, &change.Source, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan price change: %w", err)
		}
		change.OldPrice = floatPtr(oldPrice)
		change.CreatedAt = parseStoredTime(createdRaw)
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}
	return changes, nil
}

func scanFlag(row rowScanner) (moderation.Flag, error) {
	var (
		flag                 moderation.Flag
		flagType, status     string
		fieldsRaw, suggested string
		createdRaw           string
		resolvedRaw          sql.NullString
	)

	if err := row.Scan(
		&flag.ID,
		&flag.PanelID,
		&flagType,
		&fieldsRaw,
		&suggested,
		&flag.Comment,
		&status,
		&flag.AdminNote,
		&createdRaw,
		&resolvedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return moderation.Flag{}, err
		}
		return moderation.Flag{}, fmt.Errorf("scan flag: %w", err)
	}

	flag.Type = moderation.FlagType(flagType)
	flag.Status = moderation.FlagStatus(status)
	flag.Fields = splitFields(fieldsRaw)
	flag.CreatedAt = parseStoredTime(createdRaw)
	if resolvedRaw.Valid {
		resolved := parseStoredTime(resolvedRaw.String)
		flag.ResolvedAt = &resolved
	}

	decoded, err := decodeSuggested(suggested)
	if err != nil {
		return moderation.Flag{}, err
	}
	flag.Suggested = decoded

	return flag, nil
}

func encodeSuggested(suggested map[panel.Field]string) (string, error) {
	if len(suggested) == 0 {
		return "", nil
	}
	byName := make(map[string]string, len(suggested))
	for field, value := range suggested {
		byName[string(field)] = value
	}
	raw, err := json.Marshal(byName)
	if err != nil {
		return "", fmt.Errorf("encode suggested values: %w", err)
	}
	return string(raw), nil
}

func decodeSuggested(raw string) (map[panel.Field]string, error) {
	if raw == "" {
		return nil, nil
	}
	byName := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("decode suggested values: %w", err)
	}
	out := make(map[panel.Field]string, len(byName))
	for name, value := range byName {
		if field, ok := panel.ParseField(name); ok {
			out[field] = value
		}
	}
	return out, nil
}
