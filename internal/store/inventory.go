package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/alergo/internal/model"
)

// DefaultNotifyDays is the look-ahead window for expiry notifications.
const DefaultNotifyDays = 180

const inventoryColumns = `e.id, e.name, e.type, e.lot_number, e.manufacturer,
	i.expiration_date, i.loading_date, i.quantity`

const inventoryFrom = ` FROM extract e JOIN inventory_extract i ON i.id = e.id`

func scanInventoryExtract(s scanner) (*model.InventoryExtract, error) {
	x := &model.InventoryExtract{}
	var expiration, loading string
	if err := s.Scan(&x.ID, &x.Name, &x.Type, &x.LotNumber, &x.Manufacturer,
		&expiration, &loading, &x.Quantity); err != nil {
		return nil, err
	}

	var err error
	if x.ExpirationDate, err = model.ParseDate(expiration); err != nil {
		return nil, fmt.Errorf("inventory extract %d expiration: %w", x.ID, err)
	}
	if x.LoadingDate, err = model.ParseDate(loading); err != nil {
		return nil, fmt.Errorf("inventory extract %d loading date: %w", x.ID, err)
	}
	return x, nil
}

func scanInventoryExtracts(rows *sql.Rows) ([]model.InventoryExtract, error) {
	var items []model.InventoryExtract
	for rows.Next() {
		x, err := scanInventoryExtract(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning inventory extract: %w", err)
		}
		items = append(items, *x)
	}
	return items, rows.Err()
}

// insertExtract creates the shared extract row and returns its id.
func insertExtract(ctx context.Context, q querier, base model.ExtractBase, state model.ExtractState) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO extract (name, type, lot_number, manufacturer, kind) VALUES (?, ?, ?, ?, ?)`,
		base.Name, base.Type, base.LotNumber, base.Manufacturer, string(state),
	)
	if err != nil {
		return 0, fmt.Errorf("creating extract: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting extract id: %w", err)
	}
	return id, nil
}

// AddInventory loads count physical extracts of the same lot into inventory,
// one row each. A count below one is treated as one.
func AddInventory(ctx context.Context, db *sql.DB, base model.ExtractBase, expiration, loading time.Time, count int) ([]model.InventoryExtract, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if expiration.IsZero() {
		return nil, fmt.Errorf("%w: expiration date is required", model.ErrInvalid)
	}
	if count < 1 {
		count = 1
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	added := make([]model.InventoryExtract, 0, count)
	for range count {
		id, err := insertExtract(ctx, tx, base, model.StateInventory)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inventory_extract (id, expiration_date, loading_date, quantity) VALUES (?, ?, ?, 1)`,
			id, model.FormatDate(expiration), model.FormatDate(loading),
		)
		if err != nil {
			return nil, fmt.Errorf("adding inventory extract: %w", err)
		}
		added = append(added, model.InventoryExtract{
			ID:             id,
			ExtractBase:    base,
			ExpirationDate: model.Day(expiration),
			LoadingDate:    model.Day(loading),
			Quantity:       1,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing inventory addition: %w", err)
	}
	return added, nil
}

// GetInventoryExtract returns an inventory extract by ID, or nil if it does not exist.
func GetInventoryExtract(ctx context.Context, db *sql.DB, id int64) (*model.InventoryExtract, error) {
	return getInventoryExtract(ctx, db, id)
}

func getInventoryExtract(ctx context.Context, q querier, id int64) (*model.InventoryExtract, error) {
	x, err := scanInventoryExtract(q.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+inventoryFrom+` WHERE e.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory extract: %w", err)
	}
	return x, nil
}

// ListInventory returns all inventory extracts, soonest expiry first.
func ListInventory(ctx context.Context, db *sql.DB) ([]model.InventoryExtract, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+inventoryColumns+inventoryFrom+` ORDER BY i.expiration_date, e.name, e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing inventory: %w", err)
	}
	defer rows.Close()

	return scanInventoryExtracts(rows)
}

// DeleteInventoryExtract removes an extract from inventory. It reports false
// if no inventory extract matched.
func DeleteInventoryExtract(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM extract WHERE id = ? AND kind = ?`, id, string(model.StateInventory),
	)
	if err != nil {
		return false, fmt.Errorf("deleting inventory extract: %w", err)
	}
	return rowsAffected(result, "deleting inventory extract")
}

// FindReplacement returns the unexpired inventory extract with the given
// name that expires soonest, or nil if there is none.
func FindReplacement(ctx context.Context, db *sql.DB, name string, today time.Time) (*model.InventoryExtract, error) {
	return findReplacement(ctx, db, name, today)
}

func findReplacement(ctx context.Context, q querier, name string, today time.Time) (*model.InventoryExtract, error) {
	x, err := scanInventoryExtract(q.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+inventoryFrom+`
		 WHERE e.name = ? AND i.expiration_date >= ?
		 ORDER BY i.expiration_date, e.id
		 LIMIT 1`,
		name, model.FormatDate(model.Day(today)),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding replacement: %w", err)
	}
	return x, nil
}

// ExpiringInventory returns inventory extracts expiring on or before today
// plus days, including extracts that have already expired.
func ExpiringInventory(ctx context.Context, db *sql.DB, today time.Time, days int) ([]model.InventoryExtract, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days threshold cannot be negative", model.ErrInvalid)
	}
	until := model.Day(today).AddDate(0, 0, days)

	rows, err := db.QueryContext(ctx,
		`SELECT `+inventoryColumns+inventoryFrom+`
		 WHERE i.expiration_date <= ?
		 ORDER BY i.expiration_date, e.name, e.id`,
		model.FormatDate(until),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expiring inventory: %w", err)
	}
	defer rows.Close()

	return scanInventoryExtracts(rows)
}
