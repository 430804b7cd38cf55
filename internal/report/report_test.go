package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/alergo/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWriteUsageCSV(t *testing.T) {
	end := day(2026, time.March, 2)
	records := []model.UsageRecord{
		{
			ExtractBase: model.ExtractBase{Name: "Birch", Type: "inhalant", LotNumber: "L1", Manufacturer: "ALK"},
			StartDate:   day(2026, time.January, 5),
			EndDate:     &end,
			PanelName:   "Standard",
		},
		{
			ExtractBase: model.ExtractBase{Name: "Peanut, roasted", Type: "food", LotNumber: "F7", Manufacturer: "HAL"},
			StartDate:   day(2026, time.February, 1),
			PanelName:   "Food",
		},
	}

	var buf bytes.Buffer
	if err := WriteUsageCSV(&buf, records); err != nil {
		t.Fatalf("WriteUsageCSV: %v", err)
	}

	want := "Name,Type,Lot Number,Manufacturer,Start Date,End Date,Panel\n" +
		"Birch,inhalant,L1,ALK,2026-01-05,2026-03-02,Standard\n" +
		"\"Peanut, roasted\",food,F7,HAL,2026-02-01,in use,Food\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteUsageCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUsageCSV(&buf, nil); err != nil {
		t.Fatalf("WriteUsageCSV: %v", err)
	}
	if buf.String() != "Name,Type,Lot Number,Manufacturer,Start Date,End Date,Panel\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestUsageFilename(t *testing.T) {
	if got := UsageFilename(2026); got != "usage_report_2026.csv" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestDaysLeftAndStatus(t *testing.T) {
	today := day(2026, time.October, 19)

	tests := []struct {
		name   string
		expiry time.Time
		left   int
		status string
	}{
		{"yesterday", day(2026, time.October, 18), -1, "expired"},
		{"today", today, 0, "expired"},
		{"in a week", day(2026, time.October, 26), 7, "soon"},
		{"at warning edge", day(2026, time.November, 18), 30, "soon"},
		{"next year", day(2027, time.October, 19), 365, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysLeft(today, tt.expiry); got != tt.left {
				t.Errorf("DaysLeft: expected %d, got %d", tt.left, got)
			}
			if got := ExpiryStatus(today, &tt.expiry, 30); got != tt.status {
				t.Errorf("ExpiryStatus: expected %q, got %q", tt.status, got)
			}
		})
	}

	if got := ExpiryStatus(today, nil, 30); got != "" {
		t.Errorf("expected empty status without expiry, got %q", got)
	}
}
