package model

import (
	"fmt"
	"strings"
	"time"
)

// Extract is an allergenic extract tracked as a stock line with a quantity on hand.
type Extract struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	BatchNumber     string     `json:"batch_number,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	QuantityOnHand  int        `json:"quantity_on_hand"`
	StorageLocation string     `json:"storage_location,omitempty"`
	SupplierDetails string     `json:"supplier_details,omitempty"`
	DateReceived    *time.Time `json:"date_received,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	HasLabel        bool       `json:"has_label"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Input returns the mutable fields of e.
func (e *Extract) Input() ExtractInput {
	return ExtractInput{
		Name:            e.Name,
		BatchNumber:     e.BatchNumber,
		ExpiryDate:      e.ExpiryDate,
		QuantityOnHand:  e.QuantityOnHand,
		StorageLocation: e.StorageLocation,
		SupplierDetails: e.SupplierDetails,
		DateReceived:    e.DateReceived,
		Notes:           e.Notes,
	}
}

// ExtractInput holds the fields supplied on create and full update.
type ExtractInput struct {
	Name            string     `json:"name"`
	BatchNumber     string     `json:"batch_number"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	QuantityOnHand  int        `json:"quantity_on_hand"`
	StorageLocation string     `json:"storage_location"`
	SupplierDetails string     `json:"supplier_details"`
	DateReceived    *time.Time `json:"date_received"`
	Notes           string     `json:"notes"`
}

// Validate trims string fields and checks required fields and the stock invariant.
func (in *ExtractInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.BatchNumber = strings.TrimSpace(in.BatchNumber)
	in.StorageLocation = strings.TrimSpace(in.StorageLocation)
	in.SupplierDetails = strings.TrimSpace(in.SupplierDetails)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.QuantityOnHand < 0 {
		return fmt.Errorf("%w: quantity on hand cannot be negative", ErrInvalid)
	}
	return nil
}

// Equal reports whether two inputs describe the same stored values.
func (in ExtractInput) Equal(other ExtractInput) bool {
	return in.Name == other.Name &&
		in.BatchNumber == other.BatchNumber &&
		FormatOptionalDate(in.ExpiryDate) == FormatOptionalDate(other.ExpiryDate) &&
		in.QuantityOnHand == other.QuantityOnHand &&
		in.StorageLocation == other.StorageLocation &&
		in.SupplierDetails == other.SupplierDetails &&
		FormatOptionalDate(in.DateReceived) == FormatOptionalDate(other.DateReceived) &&
		in.Notes == other.Notes
}
