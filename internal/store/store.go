// Package store is the persistence layer. Every function executes
// parameter-bound statements against the database handle it is given.
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

var (
	// ErrNotFound is returned when an operation references a missing row.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a stock change would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrAlreadyClosed is returned when closing a panel extract twice.
	ErrAlreadyClosed = errors.New("already closed")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dateArg converts an optional date into a statement argument.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return model.FormatDate(*t)
}

func parseNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := model.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowsAffected reports whether the statement touched at least one row.
func rowsAffected(result sql.Result, what string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: reading affected rows: %w", what, err)
	}
	return n > 0, nil
}
