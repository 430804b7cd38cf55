package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/alergo/internal/model"
)

// UpdateResult distinguishes the outcomes of a full extract update.
type UpdateResult int

// Update outcomes.
const (
	UpdateNotFound UpdateResult = iota
	UpdateNoChange
	Updated
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateNotFound:
		return "not found"
	case UpdateNoChange:
		return "no change"
	case Updated:
		return "updated"
	default:
		return fmt.Sprintf("UpdateResult(%d)", int(r))
	}
}

const extractColumns = `e.id, e.name, e.batch_number, e.expiry_date, e.quantity_on_hand,
	e.storage_location, e.supplier_details, e.date_received, e.notes,
	e.created_at, e.updated_at,
	EXISTS (SELECT 1 FROM extract_labels l WHERE l.extract_id = e.id)`

func scanExtract(s scanner) (*model.Extract, error) {
	e := &model.Extract{}
	var batch, expiry, location, supplier, received, notes sql.NullString
	if err := s.Scan(&e.ID, &e.Name, &batch, &expiry, &e.QuantityOnHand,
		&location, &supplier, &received, &notes,
		&e.CreatedAt, &e.UpdatedAt, &e.HasLabel); err != nil {
		return nil, err
	}
	e.BatchNumber = batch.String
	e.StorageLocation = location.String
	e.SupplierDetails = supplier.String
	e.Notes = notes.String

	var err error
	if e.ExpiryDate, err = parseNullDate(expiry); err != nil {
		return nil, fmt.Errorf("extract %d expiry date: %w", e.ID, err)
	}
	if e.DateReceived, err = parseNullDate(received); err != nil {
		return nil, fmt.Errorf("extract %d date received: %w", e.ID, err)
	}
	return e, nil
}

func scanExtracts(rows *sql.Rows) ([]model.Extract, error) {
	var extracts []model.Extract
	for rows.Next() {
		e, err := scanExtract(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning extract: %w", err)
		}
		extracts = append(extracts, *e)
	}
	return extracts, rows.Err()
}

// CreateExtract validates in and inserts a new extract.
func CreateExtract(ctx context.Context, db *sql.DB, in model.ExtractInput) (*model.Extract, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO allergenic_extracts
		 (name, batch_number, expiry_date, quantity_on_hand, storage_location, supplier_details, date_received, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, nullString(in.BatchNumber), dateArg(in.ExpiryDate), in.QuantityOnHand,
		nullString(in.StorageLocation), nullString(in.SupplierDetails), dateArg(in.DateReceived), nullString(in.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating extract: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting extract id: %w", err)
	}

	return GetExtract(ctx, db, id)
}

// GetExtract returns an extract by ID, or nil if it does not exist.
func GetExtract(ctx context.Context, db *sql.DB, id int64) (*model.Extract, error) {
	return getExtract(ctx, db, id)
}

func getExtract(ctx context.Context, q querier, id int64) (*model.Extract, error) {
	e, err := scanExtract(q.QueryRowContext(ctx,
		`SELECT `+extractColumns+` FROM allergenic_extracts e WHERE e.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting extract: %w", err)
	}
	return e, nil
}

// ListExtracts returns all extracts ordered by name.
func ListExtracts(ctx context.Context, db *sql.DB) ([]model.Extract, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+extractColumns+` FROM allergenic_extracts e ORDER BY e.name, e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing extracts: %w", err)
	}
	defer rows.Close()

	return scanExtracts(rows)
}

// UpdateExtract replaces all mutable fields of an extract. The current row
// is compared first so that a missing extract and an identical update are
// reported separately.
func UpdateExtract(ctx context.Context, db *sql.DB, id int64, in model.ExtractInput) (UpdateResult, error) {
	if err := in.Validate(); err != nil {
		return UpdateNotFound, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateNotFound, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getExtract(ctx, tx, id)
	if err != nil {
		return UpdateNotFound, err
	}
	if current == nil {
		return UpdateNotFound, nil
	}
	if current.Input().Equal(in) {
		return UpdateNoChange, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE allergenic_extracts SET
		 name = ?, batch_number = ?, expiry_date = ?, quantity_on_hand = ?,
		 storage_location = ?, supplier_details = ?, date_received = ?, notes = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, nullString(in.BatchNumber), dateArg(in.ExpiryDate), in.QuantityOnHand,
		nullString(in.StorageLocation), nullString(in.SupplierDetails), dateArg(in.DateReceived), nullString(in.Notes),
		id,
	)
	if err != nil {
		return UpdateNotFound, fmt.Errorf("updating extract: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UpdateNotFound, fmt.Errorf("committing extract update: %w", err)
	}
	return Updated, nil
}

// DeleteExtract removes an extract. It reports false if no row matched.
func DeleteExtract(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM allergenic_extracts WHERE id = ?`, id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting extract: %w", err)
	}
	return rowsAffected(result, "deleting extract")
}

// UpdateStock applies delta to an extract's quantity on hand in a single
// conditional statement and returns the new quantity.
//
// If the extract does not exist it returns 0 and ErrNotFound; the zero is
// not a quantity. If the result would be negative nothing is written and it
// returns the unchanged quantity with ErrInsufficientStock.
func UpdateStock(ctx context.Context, db *sql.DB, id int64, delta int) (int, error) {
	var qty int
	err := db.QueryRowContext(ctx,
		`UPDATE allergenic_extracts
		 SET quantity_on_hand = quantity_on_hand + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity_on_hand + ? >= 0
		 RETURNING quantity_on_hand`,
		delta, id, delta,
	).Scan(&qty)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("updating stock: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx,
		`SELECT quantity_on_hand FROM allergenic_extracts WHERE id = ?`, id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("checking current stock: %w", err)
	}
	return current, fmt.Errorf("%w: have %d, change %d", ErrInsufficientStock, current, delta)
}

// SetExtractLabel stores the label photo of an extract, replacing any previous one.
func SetExtractLabel(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO extract_labels (extract_id, image, image_mime)
		 SELECT id, ?, ? FROM allergenic_extracts WHERE id = ?
		 ON CONFLICT (extract_id) DO UPDATE SET image = excluded.image, image_mime = excluded.image_mime`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting extract label: %w", err)
	}
	ok, err := rowsAffected(result, "setting extract label")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// GetExtractLabel returns an extract's label photo and MIME type, or nil if none is stored.
func GetExtractLabel(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM extract_labels WHERE extract_id = ?`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting extract label: %w", err)
	}
	return image, mime, nil
}
