package model

import (
	"fmt"
	"strings"
	"time"
)

// Extract types.
const (
	ExtractTypeInhalant = "inhalant"
	ExtractTypeFood     = "food"
	ExtractTypeControl  = "control"
)

// ExtractTypes lists the accepted extract types in display order.
var ExtractTypes = []string{ExtractTypeInhalant, ExtractTypeFood, ExtractTypeControl}

// ExtractState is the discriminator stored on every physical extract row.
type ExtractState string

// Extract states. Moving an extract between states deletes the row and
// recreates it under a new id.
const (
	StateInventory ExtractState = "inventory"
	StatePanel     ExtractState = "panel"
)

// ExtractBase holds the descriptive fields shared by inventory and panel extracts.
type ExtractBase struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LotNumber    string `json:"lot_number"`
	Manufacturer string `json:"manufacturer"`
}

// Validate trims and checks the descriptive fields.
func (b *ExtractBase) Validate() error {
	b.Name = strings.TrimSpace(b.Name)
	b.Type = strings.TrimSpace(b.Type)
	b.LotNumber = strings.TrimSpace(b.LotNumber)
	b.Manufacturer = strings.TrimSpace(b.Manufacturer)

	if b.Name == "" || b.Type == "" || b.LotNumber == "" || b.Manufacturer == "" {
		return fmt.Errorf("%w: name, type, lot number and manufacturer are required", ErrInvalid)
	}
	if !ValidExtractType(b.Type) {
		return fmt.Errorf("%w: unknown extract type %q", ErrInvalid, b.Type)
	}
	return nil
}

// ValidExtractType reports whether t is one of ExtractTypes.
func ValidExtractType(t string) bool {
	for _, v := range ExtractTypes {
		if v == t {
			return true
		}
	}
	return false
}

// InventoryExtract is a physical extract waiting in storage.
type InventoryExtract struct {
	ID int64 `json:"id"`
	ExtractBase
	ExpirationDate time.Time `json:"expiration_date"`
	LoadingDate    time.Time `json:"loading_date"`
	Quantity       int       `json:"quantity"`
}

// PanelExtract is a physical extract assigned to a panel. EndDate is nil
// while the extract is in use.
type PanelExtract struct {
	ID int64 `json:"id"`
	ExtractBase
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	PanelID   int64      `json:"panel_id"`
	PanelName string     `json:"panel_name,omitempty"`
}

// Active reports whether the extract is still in use on its panel.
func (p *PanelExtract) Active() bool {
	return p.EndDate == nil
}

// Panel is a named group of extracts in clinical use.
type Panel struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Extracts    []PanelExtract `json:"extracts"`
}

// UsageRecord is the append-only audit entry written when a panel extract is closed.
type UsageRecord struct {
	ID int64 `json:"id"`
	ExtractBase
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	PanelName string     `json:"panel_name"`
}

// Dashboard holds the home page counters.
type Dashboard struct {
	Panels         int `json:"panels"`
	ActiveExtracts int `json:"active_extracts"`
	Inventory      int `json:"inventory"`
	ExpiringSoon   int `json:"expiring_soon"`
}
