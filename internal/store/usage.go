package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/alergo/internal/model"
)

func insertUsage(ctx context.Context, q querier, pe *model.PanelExtract) (*model.UsageRecord, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO extract_usage_history
		     (name, type, lot_number, manufacturer, start_date, end_date, panel_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pe.Name, pe.Type, pe.LotNumber, pe.Manufacturer,
		model.FormatDate(pe.StartDate), dateArg(pe.EndDate), pe.PanelName,
	)
	if err != nil {
		return nil, fmt.Errorf("recording usage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting usage id: %w", err)
	}

	return &model.UsageRecord{
		ID:          id,
		ExtractBase: pe.ExtractBase,
		StartDate:   pe.StartDate,
		EndDate:     pe.EndDate,
		PanelName:   pe.PanelName,
	}, nil
}

// ListUsageByYear returns the usage history of extracts put into use during
// the given calendar year, ordered by start date.
func ListUsageByYear(ctx context.Context, db *sql.DB, year int) ([]model.UsageRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, type, lot_number, manufacturer, start_date, end_date, panel_name
		 FROM extract_usage_history
		 WHERE strftime('%Y', start_date) = ?
		 ORDER BY start_date, id`,
		fmt.Sprintf("%04d", year),
	)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		var start string
		var end sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.LotNumber, &r.Manufacturer,
			&start, &end, &r.PanelName); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		if r.StartDate, err = model.ParseDate(start); err != nil {
			return nil, fmt.Errorf("usage %d start date: %w", r.ID, err)
		}
		if r.EndDate, err = parseNullDate(end); err != nil {
			return nil, fmt.Errorf("usage %d end date: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
