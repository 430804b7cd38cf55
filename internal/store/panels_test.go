package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/alergo/internal/db"
	"github.com/erazemk/alergo/internal/model"
)

func addInventory(t *testing.T, database *sql.DB, name string, expiration time.Time, count int) []model.InventoryExtract {
	t.Helper()
	base := model.ExtractBase{
		Name:         name,
		Type:         model.ExtractTypeInhalant,
		LotNumber:    "L-" + name,
		Manufacturer: "Stallergenes",
	}
	added, err := AddInventory(context.Background(), database, base, expiration, today, count)
	if err != nil {
		t.Fatalf("AddInventory(%q): %v", name, err)
	}
	return added
}

func inventoryName(x model.InventoryExtract) string { return x.Name }

func TestAddInventory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	added := addInventory(t, database, "Timothy", today.AddDate(1, 0, 0), 3)
	if len(added) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(added))
	}

	got, err := GetInventoryExtract(ctx, database, added[1].ID)
	if err != nil {
		t.Fatalf("GetInventoryExtract: %v", err)
	}
	if diff := cmp.Diff(&added[1], got); diff != "" {
		t.Errorf("inventory mismatch (-want +got):\n%s", diff)
	}

	// Count below one still loads a single extract.
	if one := addInventory(t, database, "Mugwort", today.AddDate(0, 6, 0), 0); len(one) != 1 {
		t.Errorf("expected count 0 to add 1 row, got %d", len(one))
	}

	bad := model.ExtractBase{Name: "Latex", Type: "drug", LotNumber: "1", Manufacturer: "X"}
	if _, err := AddInventory(ctx, database, bad, today, today, 1); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown type, got %v", err)
	}
}

func TestListAndDeleteInventory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	addInventory(t, database, "Late", today.AddDate(0, 0, 200), 1)
	early := addInventory(t, database, "Early", today.AddDate(0, 0, 5), 1)

	all, err := ListInventory(ctx, database)
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if diff := cmp.Diff([]string{"Early", "Late"}, names(all, inventoryName)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	ok, err := DeleteInventoryExtract(ctx, database, early[0].ID)
	if err != nil || !ok {
		t.Fatalf("DeleteInventoryExtract: ok=%v err=%v", ok, err)
	}
	ok, _ = DeleteInventoryExtract(ctx, database, early[0].ID)
	if ok {
		t.Error("expected second delete to report no row")
	}
}

func TestFindReplacement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	addInventory(t, database, "Alder", today.AddDate(0, 0, -1), 1)
	addInventory(t, database, "Alder", today.AddDate(0, 2, 0), 1)
	sooner := addInventory(t, database, "Alder", today, 2)
	addInventory(t, database, "Hazel", today.AddDate(0, 0, 1), 1)

	got, err := FindReplacement(ctx, database, "Alder", today)
	if err != nil {
		t.Fatalf("FindReplacement: %v", err)
	}
	if got == nil || got.ID != sooner[0].ID {
		t.Fatalf("expected soonest unexpired Alder %d, got %+v", sooner[0].ID, got)
	}

	none, err := FindReplacement(ctx, database, "Cypress", today)
	if err != nil {
		t.Fatalf("FindReplacement: %v", err)
	}
	if none != nil {
		t.Errorf("expected no replacement, got %+v", none)
	}
}

func TestExpiringInventory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	addInventory(t, database, "Expired", today.AddDate(0, 0, -3), 1)
	addInventory(t, database, "Edge", today.AddDate(0, 0, DefaultNotifyDays), 1)
	addInventory(t, database, "Beyond", today.AddDate(0, 0, DefaultNotifyDays+1), 1)

	got, err := ExpiringInventory(ctx, database, today, DefaultNotifyDays)
	if err != nil {
		t.Fatalf("ExpiringInventory: %v", err)
	}
	if diff := cmp.Diff([]string{"Expired", "Edge"}, names(got, inventoryName)); diff != "" {
		t.Errorf("expiring mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatePanel(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreatePanel(ctx, database, " Inhalants ", "adult panel")
	if err != nil {
		t.Fatalf("CreatePanel: %v", err)
	}
	if p.Name != "Inhalants" || p.Description != "adult panel" {
		t.Errorf("unexpected panel %+v", p)
	}

	if _, err := CreatePanel(ctx, database, "Inhalants", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := CreatePanel(ctx, database, "", ""); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	missing, err := GetPanel(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil panel, got %+v, %v", missing, err)
	}
}

func TestAssignToPanel(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreatePanel(ctx, database, "Standard", "")
	inv := addInventory(t, database, "Birch", today.AddDate(0, 3, 0), 1)[0]

	pe, err := AssignToPanel(ctx, database, inv.ID, p.ID, today)
	if err != nil {
		t.Fatalf("AssignToPanel: %v", err)
	}
	if pe.ID == inv.ID {
		t.Error("expected assignment to create a new id")
	}
	if !pe.StartDate.Equal(today) || !pe.Active() || pe.PanelName != "Standard" {
		t.Errorf("unexpected panel extract %+v", pe)
	}

	gone, _ := GetInventoryExtract(ctx, database, inv.ID)
	if gone != nil {
		t.Error("expected inventory row to be consumed")
	}

	panel, _ := GetPanel(ctx, database, p.ID)
	if diff := cmp.Diff([]model.PanelExtract{*pe}, panel.Extracts); diff != "" {
		t.Errorf("panel extracts mismatch (-want +got):\n%s", diff)
	}

	if _, err := AssignToPanel(ctx, database, inv.ID, p.ID, today); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for consumed inventory, got %v", err)
	}

	other := addInventory(t, database, "Oak", today.AddDate(0, 3, 0), 1)[0]
	if _, err := AssignToPanel(ctx, database, other.ID, 999, today); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing panel, got %v", err)
	}
	// The failed assignment left the inventory row in place.
	if still, _ := GetInventoryExtract(ctx, database, other.ID); still == nil {
		t.Error("expected inventory row to survive failed assignment")
	}
}

func TestCloseExtractWithReplacement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreatePanel(ctx, database, "Standard", "")
	first := addInventory(t, database, "X", today.AddDate(0, 1, 0), 1)[0]
	pe, _ := AssignToPanel(ctx, database, first.ID, p.ID, today.AddDate(0, 0, -20))
	spare := addInventory(t, database, "X", today.AddDate(0, 4, 0), 1)[0]

	res, err := CloseExtract(ctx, database, pe.ID, today)
	if err != nil {
		t.Fatalf("CloseExtract: %v", err)
	}

	if res.Closed.EndDate == nil || !res.Closed.EndDate.Equal(today) {
		t.Errorf("expected end date %v, got %v", today, res.Closed.EndDate)
	}
	if res.Usage.PanelName != "Standard" || res.Usage.Name != "X" {
		t.Errorf("unexpected usage record %+v", res.Usage)
	}
	if res.Replacement == nil {
		t.Fatal("expected a replacement")
	}
	if res.Replacement.PanelID != p.ID || res.Replacement.Name != "X" {
		t.Errorf("unexpected replacement %+v", res.Replacement)
	}
	if res.Replacement.ID == spare.ID || res.Replacement.ID == pe.ID {
		t.Errorf("expected the replacement to get a new id, got %d (inventory %d, closed %d)",
			res.Replacement.ID, spare.ID, pe.ID)
	}

	if inv, _ := GetInventoryExtract(ctx, database, spare.ID); inv != nil {
		t.Error("expected replacement to be removed from inventory")
	}

	panel, _ := GetPanel(ctx, database, p.ID)
	if len(panel.Extracts) != 1 || panel.Extracts[0].ID != res.Replacement.ID {
		t.Errorf("expected only the replacement on the panel, got %+v", panel.Extracts)
	}

	if _, err := CloseExtract(ctx, database, pe.ID, today); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
	if _, err := CloseExtract(ctx, database, 999, today); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseExtractWithoutReplacement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreatePanel(ctx, database, "Food", "")
	inv := addInventory(t, database, "X", today.AddDate(0, 1, 0), 1)[0]
	pe, _ := AssignToPanel(ctx, database, inv.ID, p.ID, today)
	// Expired and differently named stock does not qualify.
	addInventory(t, database, "X", today.AddDate(0, 0, -1), 1)
	addInventory(t, database, "Y", today.AddDate(0, 1, 0), 1)

	res, err := CloseExtract(ctx, database, pe.ID, today)
	if err != nil {
		t.Fatalf("CloseExtract: %v", err)
	}
	if res.Replacement != nil {
		t.Errorf("expected no replacement, got %+v", res.Replacement)
	}

	panel, _ := GetPanel(ctx, database, p.ID)
	if len(panel.Extracts) != 0 {
		t.Errorf("expected empty panel slot, got %d extracts", len(panel.Extracts))
	}

	usage, err := ListUsageByYear(ctx, database, today.Year())
	if err != nil {
		t.Fatalf("ListUsageByYear: %v", err)
	}
	if len(usage) != 1 || usage[0].Name != "X" || usage[0].PanelName != "Food" {
		t.Errorf("expected one usage record for X on Food, got %+v", usage)
	}
}

func TestDeletePanelCascades(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreatePanel(ctx, database, "Doomed", "")
	inv := addInventory(t, database, "Z", today.AddDate(0, 1, 0), 2)
	pe, _ := AssignToPanel(ctx, database, inv[0].ID, p.ID, today)

	ok, err := DeletePanel(ctx, database, p.ID)
	if err != nil || !ok {
		t.Fatalf("DeletePanel: ok=%v err=%v", ok, err)
	}

	if got, _ := GetPanelExtract(ctx, database, pe.ID); got != nil {
		t.Error("expected panel extract to be deleted")
	}

	var leftover int
	database.QueryRow(`SELECT COUNT(*) FROM extract WHERE kind = 'panel'`).Scan(&leftover)
	if leftover != 0 {
		t.Errorf("expected no orphaned panel extract rows, got %d", leftover)
	}

	usage, _ := ListUsageByYear(ctx, database, today.Year())
	if len(usage) != 0 {
		t.Errorf("expected no usage history from deletion, got %d", len(usage))
	}

	if remaining, _ := GetInventoryExtract(ctx, database, inv[1].ID); remaining == nil {
		t.Error("expected unrelated inventory to survive")
	}

	ok, _ = DeletePanel(ctx, database, p.ID)
	if ok {
		t.Error("expected second delete to report no panel")
	}
}

func TestListPanels(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, _ := CreatePanel(ctx, database, "B panel", "")
	CreatePanel(ctx, database, "A panel", "")
	for _, inv := range addInventory(t, database, "Cat", today.AddDate(0, 1, 0), 2) {
		AssignToPanel(ctx, database, inv.ID, b.ID, today)
	}

	panels, err := ListPanels(ctx, database)
	if err != nil {
		t.Fatalf("ListPanels: %v", err)
	}
	if len(panels) != 2 {
		t.Fatalf("expected 2 panels, got %d", len(panels))
	}
	if panels[0].Name != "A panel" || len(panels[0].Extracts) != 0 {
		t.Errorf("unexpected first panel %+v", panels[0])
	}
	if panels[1].Name != "B panel" || len(panels[1].Extracts) != 2 {
		t.Errorf("unexpected second panel %+v", panels[1])
	}
}

func TestListUsageByYearFiltersOnStartDate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreatePanel(ctx, database, "Standard", "")
	newYear := time.Date(2027, time.January, 10, 0, 0, 0, 0, time.UTC)

	// Started in 2026, closed in 2027.
	inv := addInventory(t, database, "Spans", newYear.AddDate(1, 0, 0), 1)[0]
	pe, _ := AssignToPanel(ctx, database, inv.ID, p.ID, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC))
	if _, err := CloseExtract(ctx, database, pe.ID, newYear); err != nil {
		t.Fatalf("CloseExtract: %v", err)
	}

	got2026, _ := ListUsageByYear(ctx, database, 2026)
	got2027, _ := ListUsageByYear(ctx, database, 2027)
	if len(got2026) != 1 || len(got2027) != 0 {
		t.Errorf("expected record in 2026 only, got %d in 2026 and %d in 2027", len(got2026), len(got2027))
	}
}
