package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/alergo/internal/model"
)

// Report defaults.
const (
	DefaultExpiryDays        = 30
	DefaultLowStockThreshold = 10
)

// NearingExpiry returns extracts whose expiry date is after today and no
// later than today plus days, soonest first. Extracts without an expiry
// date and those already expired are excluded.
func NearingExpiry(ctx context.Context, db *sql.DB, today time.Time, days int) ([]model.Extract, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days threshold cannot be negative", model.ErrInvalid)
	}

	from := model.Day(today)
	until := from.AddDate(0, 0, days)

	rows, err := db.QueryContext(ctx,
		`SELECT `+extractColumns+`
		 FROM allergenic_extracts e
		 WHERE e.expiry_date IS NOT NULL
		   AND e.expiry_date > ?
		   AND e.expiry_date <= ?
		 ORDER BY e.expiry_date ASC, e.name`,
		model.FormatDate(from), model.FormatDate(until),
	)
	if err != nil {
		return nil, fmt.Errorf("listing extracts nearing expiry: %w", err)
	}
	defer rows.Close()

	return scanExtracts(rows)
}

// LowStock returns extracts with a quantity on hand at or below threshold,
// lowest quantity first.
func LowStock(ctx context.Context, db *sql.DB, threshold int) ([]model.Extract, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: quantity threshold cannot be negative", model.ErrInvalid)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+extractColumns+`
		 FROM allergenic_extracts e
		 WHERE e.quantity_on_hand <= ?
		 ORDER BY e.quantity_on_hand ASC, e.name`,
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("listing low stock extracts: %w", err)
	}
	defer rows.Close()

	return scanExtracts(rows)
}

// GetDashboard returns the home page counters. Expiring soon counts
// inventory extracts expiring between today and today plus DefaultExpiryDays.
func GetDashboard(ctx context.Context, db *sql.DB, today time.Time) (*model.Dashboard, error) {
	from := model.Day(today)
	until := from.AddDate(0, 0, DefaultExpiryDays)

	d := &model.Dashboard{}
	err := db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM panel),
		   (SELECT COUNT(*) FROM panel_extract WHERE end_date IS NULL),
		   (SELECT COUNT(*) FROM inventory_extract),
		   (SELECT COUNT(*) FROM inventory_extract WHERE expiration_date >= ? AND expiration_date <= ?)`,
		model.FormatDate(from), model.FormatDate(until),
	).Scan(&d.Panels, &d.ActiveExtracts, &d.Inventory, &d.ExpiringSoon)
	if err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}
	return d, nil
}
