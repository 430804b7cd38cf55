package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/report"
)

func dateOrNA(t *time.Time) string {
	return orNA(model.FormatOptionalDate(t))
}

// PrintExtracts writes the stock list as a table.
func PrintExtracts(w io.Writer, extracts []model.Extract) {
	if len(extracts) == 0 {
		fmt.Fprintln(w, "No allergenic extracts found in the database.")
		return
	}

	fmt.Fprintf(w, "%-5s | %-30s | %-15s | %-12s | %-5s | %-20s\n",
		"ID", "Name", "Batch No.", "Expiry Date", "Qty", "Location")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for _, e := range extracts {
		fmt.Fprintf(w, "%-5d | %-30s | %-15s | %-12s | %-5d | %-20s\n",
			e.ID, e.Name, orNA(e.BatchNumber), dateOrNA(e.ExpiryDate), e.QuantityOnHand, orNA(e.StorageLocation))
	}
	fmt.Fprintln(w, strings.Repeat("-", 95))
	fmt.Fprintf(w, "Total: %d extracts.\n", len(extracts))
}

// PrintExtract writes all fields of one extract.
func PrintExtract(w io.Writer, e *model.Extract) {
	fmt.Fprintf(w, "ID:                 %d\n", e.ID)
	fmt.Fprintf(w, "Name:               %s\n", e.Name)
	fmt.Fprintf(w, "Batch Number:       %s\n", orNA(e.BatchNumber))
	fmt.Fprintf(w, "Expiry Date:        %s\n", dateOrNA(e.ExpiryDate))
	fmt.Fprintf(w, "Quantity on Hand:   %d\n", e.QuantityOnHand)
	fmt.Fprintf(w, "Storage Location:   %s\n", orNA(e.StorageLocation))
	fmt.Fprintf(w, "Supplier Details:   %s\n", orNA(e.SupplierDetails))
	fmt.Fprintf(w, "Date Received:      %s\n", dateOrNA(e.DateReceived))
	fmt.Fprintf(w, "Notes:              %s\n", orNA(e.Notes))
}

// PrintNearingExpiry writes the nearing-expiry report with days left.
func PrintNearingExpiry(w io.Writer, today time.Time, days int, extracts []model.Extract) {
	if len(extracts) == 0 {
		fmt.Fprintf(w, "No extracts found nearing expiry within the next %d days.\n", days)
		return
	}

	fmt.Fprintf(w, "%-5s | %-30s | %-12s | %-5s | %-10s\n", "ID", "Name", "Expiry Date", "Qty", "Days Left")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, e := range extracts {
		left := "Expired"
		if n := report.DaysLeft(today, *e.ExpiryDate); n >= 0 {
			left = fmt.Sprint(n)
		}
		fmt.Fprintf(w, "%-5d | %-30s | %-12s | %-5d | %-10s\n",
			e.ID, e.Name, model.FormatDate(*e.ExpiryDate), e.QuantityOnHand, left)
	}
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total: %d extracts nearing expiry.\n", len(extracts))
}

// PrintLowStock writes the low-stock report.
func PrintLowStock(w io.Writer, threshold int, extracts []model.Extract) {
	if len(extracts) == 0 {
		fmt.Fprintf(w, "No extracts found with stock at or below %d units.\n", threshold)
		return
	}

	fmt.Fprintf(w, "%-5s | %-30s | %-20s\n", "ID", "Name", "Quantity on Hand")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, e := range extracts {
		fmt.Fprintf(w, "%-5d | %-30s | %-20d\n", e.ID, e.Name, e.QuantityOnHand)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Total: %d extracts with low stock.\n", len(extracts))
}
