package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/alergo/internal/db"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

var testToday = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// runMenu feeds the given answers, one per line, to a fresh menu.
func runMenu(t *testing.T, m *Menu, answers ...string) string {
	t.Helper()
	var out bytes.Buffer
	m.in.Reset(strings.NewReader(strings.Join(answers, "\n") + "\n"))
	m.out = &out
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func newTestMenu(t *testing.T) *Menu {
	t.Helper()
	m := NewMenu(db.NewTestDB(t), strings.NewReader(""), &bytes.Buffer{})
	m.Now = func() time.Time { return testToday }
	return m
}

func TestMenuExitAndEOF(t *testing.T) {
	m := newTestMenu(t)

	out := runMenu(t, m, "9")
	if !strings.Contains(out, "Exiting application. Goodbye!") {
		t.Errorf("expected goodbye, got:\n%s", out)
	}

	out = runMenu(t, m, "42", "")
	if !strings.Contains(out, "Invalid choice. Please enter a number between 1 and 9.") {
		t.Errorf("expected invalid choice message, got:\n%s", out)
	}
}

func TestMenuAddExtractValidationLoops(t *testing.T) {
	m := newTestMenu(t)

	out := runMenu(t, m,
		"1",
		"", "Birch pollen", // empty name is asked again
		"B-1",
		"2027-13-01", "2027-03-01", // invalid date is asked again
		"", "lots", "-2", "6", // required, not a number, negative
		"Fridge 1",
		"ALK",
		"", // date received skipped
		"",
		"", "9",
	)

	for _, want := range []string{
		"Name cannot be empty.",
		"Invalid date format.",
		"This field is required.",
		"Invalid input. Please enter a whole number.",
		"Quantity cannot be negative.",
		"Extract 'Birch pollen' added successfully with ID: 1.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}

	got, err := store.GetExtract(context.Background(), m.DB, 1)
	if err != nil || got == nil {
		t.Fatalf("GetExtract: %v", err)
	}
	want := model.ExtractInput{
		Name:            "Birch pollen",
		BatchNumber:     "B-1",
		ExpiryDate:      date(2027, time.March, 1),
		QuantityOnHand:  6,
		StorageLocation: "Fridge 1",
		SupplierDetails: "ALK",
	}
	if diff := cmp.Diff(want, got.Input()); diff != "" {
		t.Errorf("stored extract mismatch (-want +got):\n%s", diff)
	}
}

func TestMenuUpdateKeepsCurrentValues(t *testing.T) {
	m := newTestMenu(t)
	ctx := context.Background()

	e, _ := store.CreateExtract(ctx, m.DB, model.ExtractInput{
		Name:           "Cat dander",
		BatchNumber:    "C-9",
		ExpiryDate:     date(2027, time.January, 10),
		QuantityOnHand: 3,
		Notes:          "top shelf",
	})

	out := runMenu(t, m,
		"4", "1",
		"",           // name
		"",           // batch
		"2027-02-10", // expiry
		"",           // quantity
		"Fridge 2",   // location
		"",           // supplier
		"",           // date received
		"",           // notes
		"", "9",
	)
	if !strings.Contains(out, "Extract ID 1 updated successfully.") {
		t.Errorf("expected success, got:\n%s", out)
	}

	got, _ := store.GetExtract(ctx, m.DB, e.ID)
	want := model.ExtractInput{
		Name:            "Cat dander",
		BatchNumber:     "C-9",
		ExpiryDate:      date(2027, time.February, 10),
		QuantityOnHand:  3,
		StorageLocation: "Fridge 2",
		Notes:           "top shelf",
	}
	if diff := cmp.Diff(want, got.Input()); diff != "" {
		t.Errorf("stored extract mismatch (-want +got):\n%s", diff)
	}

	out = runMenu(t, m, "4", "1", "", "", "", "", "", "", "", "", "", "9")
	if !strings.Contains(out, "Extract ID 1 was not changed.") {
		t.Errorf("expected no-change message, got:\n%s", out)
	}

	out = runMenu(t, m, "4", "77", "", "9")
	if !strings.Contains(out, "No extract found with ID 77.") {
		t.Errorf("expected not found, got:\n%s", out)
	}
}

func TestMenuStockAndDelete(t *testing.T) {
	m := newTestMenu(t)
	ctx := context.Background()

	e, _ := store.CreateExtract(ctx, m.DB, model.ExtractInput{Name: "Peanut", QuantityOnHand: 5})

	out := runMenu(t, m, "6", "1", "-6", "", "6", "1", "+3", "", "9")
	for _, want := range []string{
		"Current Quantity on Hand: 5",
		"Failed to update stock quantity. Current quantity remains: 5.",
		"Stock quantity updated successfully. New quantity on hand: 8",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}

	out = runMenu(t, m, "5", "1", "n", "", "5", "one", "", "5", "1", "y", "", "9")
	for _, want := range []string{
		"Deletion cancelled.",
		"Invalid ID format. Please enter a number.",
		"Extract ID 1 deleted successfully.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}

	if got, _ := store.GetExtract(ctx, m.DB, e.ID); got != nil {
		t.Error("expected extract to be deleted")
	}
}

func TestMenuReports(t *testing.T) {
	m := newTestMenu(t)
	ctx := context.Background()

	store.CreateExtract(ctx, m.DB, model.ExtractInput{Name: "Ragweed", ExpiryDate: date(2026, time.November, 3), QuantityOnHand: 20})
	store.CreateExtract(ctx, m.DB, model.ExtractInput{Name: "Mold mix", ExpiryDate: date(2027, time.May, 1), QuantityOnHand: 1})

	tests := []struct {
		name     string
		answers  []string
		contains []string
		excludes []string
	}{
		{
			name:     "expiry default",
			answers:  []string{"7", ""},
			contains: []string{"expiring in the next 30 days", "Ragweed", "| 15 "},
			excludes: []string{"Mold mix"},
		},
		{
			name:     "expiry not a number",
			answers:  []string{"7", "soon"},
			contains: []string{"Invalid input. Using default (30).", "Ragweed"},
		},
		{
			name:     "expiry zero",
			answers:  []string{"7", "0"},
			contains: []string{"Days threshold must be a positive number."},
			excludes: []string{"Searching"},
		},
		{
			name:     "low stock default",
			answers:  []string{"8", ""},
			contains: []string{"at or below 10 units", "Mold mix", "Total: 1 extracts with low stock."},
			excludes: []string{"Ragweed"},
		},
		{
			name:     "low stock none",
			answers:  []string{"8", "0"},
			contains: []string{"No extracts found with stock at or below 0 units."},
		},
		{
			name:     "low stock negative",
			answers:  []string{"8", "-1"},
			contains: []string{"Quantity threshold cannot be negative."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runMenu(t, m, append(tt.answers, "", "9")...)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("expected output not to contain %q", unwanted)
				}
			}
		})
	}
}

func TestPrintExtractsEmpty(t *testing.T) {
	var out bytes.Buffer
	PrintExtracts(&out, nil)
	if got := out.String(); got != "No allergenic extracts found in the database.\n" {
		t.Errorf("unexpected output %q", got)
	}
}
