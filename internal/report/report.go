// Package report formats usage history and expiry data for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/erazemk/alergo/internal/model"
)

// InUse is written in place of the end date of a record that is still open.
const InUse = "in use"

// UsageHeader is the header row of the yearly usage CSV.
var UsageHeader = []string{"Name", "Type", "Lot Number", "Manufacturer", "Start Date", "End Date", "Panel"}

// UsageFilename returns the download filename of the usage report for year.
func UsageFilename(year int) string {
	return fmt.Sprintf("usage_report_%d.csv", year)
}

// WriteUsageCSV writes records as CSV, one row per record, after a header row.
func WriteUsageCSV(w io.Writer, records []model.UsageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UsageHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range records {
		end := InUse
		if r.EndDate != nil {
			end = model.FormatDate(*r.EndDate)
		}
		row := []string{
			r.Name, r.Type, r.LotNumber, r.Manufacturer,
			model.FormatDate(r.StartDate), end, r.PanelName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing usage %d: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DaysLeft returns the number of calendar days from today until expiry.
// It is negative for expired extracts.
func DaysLeft(today, expiry time.Time) int {
	return model.DaysBetween(today, expiry)
}

// ExpiryStatus classifies an expiry date relative to today for display:
// "expired", "soon" within warnDays, or "ok".
func ExpiryStatus(today time.Time, expiry *time.Time, warnDays int) string {
	if expiry == nil {
		return ""
	}
	switch left := DaysLeft(today, *expiry); {
	case left <= 0:
		return "expired"
	case left <= warnDays:
		return "soon"
	default:
		return "ok"
	}
}
