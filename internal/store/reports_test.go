package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/alergo/internal/db"
	"github.com/erazemk/alergo/internal/model"
)

var today = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func inDays(n int) *time.Time {
	d := today.AddDate(0, 0, n)
	return &d
}

func names[T any](items []T, name func(T) string) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, name(it))
	}
	return out
}

func extractName(e model.Extract) string { return e.Name }

func TestNearingExpiryScenario(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateExtract(t, database, model.ExtractInput{Name: "expired", ExpiryDate: inDays(-10)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "in 45", ExpiryDate: inDays(45)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "in 30", ExpiryDate: inDays(30)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "in 15", ExpiryDate: inDays(15)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "no expiry"})

	got, err := NearingExpiry(ctx, database, today, DefaultExpiryDays)
	if err != nil {
		t.Fatalf("NearingExpiry: %v", err)
	}
	if diff := cmp.Diff([]string{"in 15", "in 30"}, names(got, extractName)); diff != "" {
		t.Errorf("nearing expiry mismatch (-want +got):\n%s", diff)
	}
}

func TestNearingExpiryBoundaries(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateExtract(t, database, model.ExtractInput{Name: "today", ExpiryDate: inDays(0)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "tomorrow", ExpiryDate: inDays(1)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "day 30", ExpiryDate: inDays(30)})
	mustCreateExtract(t, database, model.ExtractInput{Name: "day 31", ExpiryDate: inDays(31)})

	// A late-evening clock reading is still the same calendar day.
	now := today.Add(23 * time.Hour)

	got, err := NearingExpiry(ctx, database, now, 30)
	if err != nil {
		t.Fatalf("NearingExpiry: %v", err)
	}
	if diff := cmp.Diff([]string{"tomorrow", "day 30"}, names(got, extractName)); diff != "" {
		t.Errorf("boundary mismatch (-want +got):\n%s", diff)
	}

	if _, err := NearingExpiry(ctx, database, now, -1); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("expected ErrInvalid for negative days, got %v", err)
	}
}

func TestLowStockScenario(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for _, q := range []int{25, 10, 2, 5} {
		mustCreateExtract(t, database, model.ExtractInput{Name: "qty", QuantityOnHand: q})
	}

	got, err := LowStock(ctx, database, DefaultLowStockThreshold)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}

	var qty []int
	for _, e := range got {
		qty = append(qty, e.QuantityOnHand)
	}
	if diff := cmp.Diff([]int{2, 5, 10}, qty); diff != "" {
		t.Errorf("low stock mismatch (-want +got):\n%s", diff)
	}
}

func TestLowStockBoundary(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateExtract(t, database, model.ExtractInput{Name: "ten", QuantityOnHand: 10})
	mustCreateExtract(t, database, model.ExtractInput{Name: "eleven", QuantityOnHand: 11})

	got, err := LowStock(ctx, database, 10)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if diff := cmp.Diff([]string{"ten"}, names(got, extractName)); diff != "" {
		t.Errorf("boundary mismatch (-want +got):\n%s", diff)
	}

	if _, err := LowStock(ctx, database, -5); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("expected ErrInvalid for negative threshold, got %v", err)
	}
}

func TestGetDashboard(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreatePanel(ctx, database, "Standard", "")
	if err != nil {
		t.Fatalf("CreatePanel: %v", err)
	}
	CreatePanel(ctx, database, "Food", "")

	inv := addInventory(t, database, "Birch", today.AddDate(0, 0, 10), 3)
	addInventory(t, database, "Oak", today.AddDate(0, 0, 90), 1)
	addInventory(t, database, "Stale", today.AddDate(0, 0, -1), 1)

	if _, err := AssignToPanel(ctx, database, inv[0].ID, p.ID, today); err != nil {
		t.Fatalf("AssignToPanel: %v", err)
	}

	got, err := GetDashboard(ctx, database, today)
	if err != nil {
		t.Fatalf("GetDashboard: %v", err)
	}
	want := &model.Dashboard{Panels: 2, ActiveExtracts: 1, Inventory: 4, ExpiringSoon: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dashboard mismatch (-want +got):\n%s", diff)
	}
}
