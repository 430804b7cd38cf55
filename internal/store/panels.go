package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/alergo/internal/model"
)

// CloseResult describes what happened when a panel extract was closed.
type CloseResult struct {
	Closed      model.PanelExtract  `json:"closed"`
	Usage       model.UsageRecord   `json:"usage"`
	Replacement *model.PanelExtract `json:"replacement,omitempty"`
}

const panelExtractColumns = `e.id, e.name, e.type, e.lot_number, e.manufacturer,
	pe.start_date, pe.end_date, pe.panel_id, p.name`

const panelExtractFrom = ` FROM extract e
	JOIN panel_extract pe ON pe.id = e.id
	JOIN panel p ON p.id = pe.panel_id`

func scanPanelExtract(s scanner) (*model.PanelExtract, error) {
	x := &model.PanelExtract{}
	var start string
	var end sql.NullString
	if err := s.Scan(&x.ID, &x.Name, &x.Type, &x.LotNumber, &x.Manufacturer,
		&start, &end, &x.PanelID, &x.PanelName); err != nil {
		return nil, err
	}

	var err error
	if x.StartDate, err = model.ParseDate(start); err != nil {
		return nil, fmt.Errorf("panel extract %d start date: %w", x.ID, err)
	}
	if x.EndDate, err = parseNullDate(end); err != nil {
		return nil, fmt.Errorf("panel extract %d end date: %w", x.ID, err)
	}
	return x, nil
}

// CreatePanel creates a new panel. Panel names are unique.
func CreatePanel(ctx context.Context, db *sql.DB, name, description string) (*model.Panel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: panel name is required", model.ErrInvalid)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO panel (name, description) VALUES (?, ?)`,
		name, nullString(strings.TrimSpace(description)),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("panel %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("creating panel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting panel id: %w", err)
	}

	return GetPanel(ctx, db, id)
}

// GetPanel returns a panel with its active extracts, or nil if it does not exist.
func GetPanel(ctx context.Context, db *sql.DB, id int64) (*model.Panel, error) {
	return getPanel(ctx, db, id)
}

func getPanel(ctx context.Context, q querier, id int64) (*model.Panel, error) {
	p := &model.Panel{}
	var description sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description FROM panel WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting panel: %w", err)
	}
	p.Description = description.String

	rows, err := q.QueryContext(ctx,
		`SELECT `+panelExtractColumns+panelExtractFrom+`
		 WHERE pe.panel_id = ? AND pe.end_date IS NULL
		 ORDER BY e.name, e.id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing panel extracts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		x, err := scanPanelExtract(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning panel extract: %w", err)
		}
		p.Extracts = append(p.Extracts, *x)
	}
	return p, rows.Err()
}

// ListPanels returns all panels with their active extracts, ordered by name.
func ListPanels(ctx context.Context, db *sql.DB) ([]model.Panel, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description,
		        e.id, e.name, e.type, e.lot_number, e.manufacturer, pe.start_date
		 FROM panel p
		 LEFT JOIN panel_extract pe ON pe.panel_id = p.id AND pe.end_date IS NULL
		 LEFT JOIN extract e ON e.id = pe.id
		 ORDER BY p.name, p.id, e.name, e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing panels: %w", err)
	}
	defer rows.Close()

	var panels []model.Panel
	for rows.Next() {
		var (
			panelID                          int64
			panelName                        string
			description                      sql.NullString
			extractID                        sql.NullInt64
			name, typ, lot, maker, startDate sql.NullString
		)
		if err := rows.Scan(&panelID, &panelName, &description,
			&extractID, &name, &typ, &lot, &maker, &startDate); err != nil {
			return nil, fmt.Errorf("scanning panel: %w", err)
		}

		if len(panels) == 0 || panels[len(panels)-1].ID != panelID {
			panels = append(panels, model.Panel{
				ID:          panelID,
				Name:        panelName,
				Description: description.String,
			})
		}
		if !extractID.Valid {
			continue
		}

		start, err := model.ParseDate(startDate.String)
		if err != nil {
			return nil, fmt.Errorf("panel extract %d start date: %w", extractID.Int64, err)
		}
		p := &panels[len(panels)-1]
		p.Extracts = append(p.Extracts, model.PanelExtract{
			ID: extractID.Int64,
			ExtractBase: model.ExtractBase{
				Name:         name.String,
				Type:         typ.String,
				LotNumber:    lot.String,
				Manufacturer: maker.String,
			},
			StartDate: start,
			PanelID:   panelID,
			PanelName: panelName,
		})
	}
	return panels, rows.Err()
}

// DeletePanel removes a panel together with all its extracts. No usage
// history is written. It reports false if the panel did not exist.
func DeletePanel(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// panel_extract rows cascade from the panel, but their base extract rows don't.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM extract WHERE id IN (SELECT id FROM panel_extract WHERE panel_id = ?)`, id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting panel extracts: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM panel WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting panel: %w", err)
	}
	deleted, err := rowsAffected(result, "deleting panel")
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing panel deletion: %w", err)
	}
	return deleted, nil
}

// GetPanelExtract returns a panel extract (active or closed), or nil if it does not exist.
func GetPanelExtract(ctx context.Context, db *sql.DB, id int64) (*model.PanelExtract, error) {
	return getPanelExtract(ctx, db, id)
}

func getPanelExtract(ctx context.Context, q querier, id int64) (*model.PanelExtract, error) {
	x, err := scanPanelExtract(q.QueryRowContext(ctx,
		`SELECT `+panelExtractColumns+panelExtractFrom+` WHERE e.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting panel extract: %w", err)
	}
	return x, nil
}

// AssignToPanel moves an inventory extract onto a panel, starting today.
// The inventory row is deleted and the panel extract gets a new id.
func AssignToPanel(ctx context.Context, db *sql.DB, inventoryID, panelID int64, today time.Time) (*model.PanelExtract, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInventoryExtract(ctx, tx, inventoryID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory extract %d: %w", inventoryID, ErrNotFound)
	}

	pe, err := assign(ctx, tx, inv, panelID, today)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing assignment: %w", err)
	}
	return pe, nil
}

// assign consumes inv from inventory and recreates it on the panel.
func assign(ctx context.Context, q querier, inv *model.InventoryExtract, panelID int64, today time.Time) (*model.PanelExtract, error) {
	var panelName string
	err := q.QueryRowContext(ctx, `SELECT name FROM panel WHERE id = ?`, panelID).Scan(&panelName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("panel %d: %w", panelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting panel: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM extract WHERE id = ?`, inv.ID); err != nil {
		return nil, fmt.Errorf("removing inventory extract: %w", err)
	}

	id, err := insertExtract(ctx, q, inv.ExtractBase, model.StatePanel)
	if err != nil {
		return nil, err
	}

	start := model.Day(today)
	_, err = q.ExecContext(ctx,
		`INSERT INTO panel_extract (id, start_date, panel_id) VALUES (?, ?, ?)`,
		id, model.FormatDate(start), panelID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating panel extract: %w", err)
	}

	return &model.PanelExtract{
		ID:          id,
		ExtractBase: inv.ExtractBase,
		StartDate:   start,
		PanelID:     panelID,
		PanelName:   panelName,
	}, nil
}

// CloseExtract ends the use of a panel extract today and records it in the
// usage history. The soonest-expiring unexpired inventory extract with the
// same name, if any, takes its place on the panel.
func CloseExtract(ctx context.Context, db *sql.DB, id int64, today time.Time) (*CloseResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	pe, err := getPanelExtract(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if pe == nil {
		return nil, fmt.Errorf("panel extract %d: %w", id, ErrNotFound)
	}
	if !pe.Active() {
		return nil, fmt.Errorf("panel extract %d: %w", id, ErrAlreadyClosed)
	}

	end := model.Day(today)
	_, err = tx.ExecContext(ctx,
		`UPDATE panel_extract SET end_date = ? WHERE id = ?`, model.FormatDate(end), id,
	)
	if err != nil {
		return nil, fmt.Errorf("closing panel extract: %w", err)
	}
	pe.EndDate = &end

	usage, err := insertUsage(ctx, tx, pe)
	if err != nil {
		return nil, err
	}

	res := &CloseResult{Closed: *pe, Usage: *usage}

	inv, err := findReplacement(ctx, tx, pe.Name, today)
	if err != nil {
		return nil, err
	}
	if inv != nil {
		if res.Replacement, err = assign(ctx, tx, inv, pe.PanelID, today); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing close: %w", err)
	}
	return res, nil
}
