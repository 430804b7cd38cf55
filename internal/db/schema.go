package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Dates are stored as ISO-8601 TEXT (YYYY-MM-DD) so that lexical comparison
// in SQL matches calendar order. Tables whose rows are deleted use
// AUTOINCREMENT so an id is never handed out twice.
const schema = `
CREATE TABLE IF NOT EXISTS allergenic_extracts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL CHECK (name <> ''),
    batch_number     TEXT,
    expiry_date      TEXT,
    quantity_on_hand INTEGER NOT NULL DEFAULT 0 CHECK (quantity_on_hand >= 0),
    storage_location TEXT,
    supplier_details TEXT,
    date_received    TEXT,
    notes            TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_allergenic_extracts_expiry
    ON allergenic_extracts(expiry_date);

CREATE TABLE IF NOT EXISTS extract (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    type         TEXT NOT NULL CHECK (type IN ('inhalant', 'food', 'control')),
    lot_number   TEXT NOT NULL,
    manufacturer TEXT NOT NULL,
    kind         TEXT NOT NULL CHECK (kind IN ('inventory', 'panel'))
);

CREATE TABLE IF NOT EXISTS inventory_extract (
    id              INTEGER PRIMARY KEY REFERENCES extract(id) ON DELETE CASCADE,
    expiration_date TEXT NOT NULL,
    loading_date    TEXT NOT NULL,
    quantity        INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0)
);

CREATE INDEX IF NOT EXISTS idx_inventory_extract_expiration
    ON inventory_extract(expiration_date);

CREATE TABLE IF NOT EXISTS panel (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE CHECK (name <> ''),
    description TEXT
);

CREATE TABLE IF NOT EXISTS panel_extract (
    id         INTEGER PRIMARY KEY REFERENCES extract(id) ON DELETE CASCADE,
    start_date TEXT NOT NULL,
    end_date   TEXT,
    panel_id   INTEGER NOT NULL REFERENCES panel(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_panel_extract_panel
    ON panel_extract(panel_id);

CREATE TABLE IF NOT EXISTS extract_usage_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    type         TEXT NOT NULL,
    lot_number   TEXT NOT NULL,
    manufacturer TEXT NOT NULL,
    start_date   TEXT NOT NULL,
    end_date     TEXT,
    panel_name   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_start
    ON extract_usage_history(start_date);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'staff', 'viewer')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: label photos live in their own table so that listing
	// extracts never drags image bytes along.
	`CREATE TABLE IF NOT EXISTS extract_labels (
	     extract_id INTEGER PRIMARY KEY REFERENCES allergenic_extracts(id) ON DELETE CASCADE,
	     image      BLOB NOT NULL,
	     image_mime TEXT NOT NULL
	 )`,
	// Migration 2: logout revokes tokens by jti until they would have expired anyway.
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
	     jti        TEXT PRIMARY KEY,
	     expires_at DATETIME NOT NULL
	 )`,
}

// EnsureSchema creates all tables and indexes if they don't already exist
// and applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
