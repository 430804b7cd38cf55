// Package cli implements the interactive stock menu of alergoctl.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// Menu is the numbered stock menu. It reads answers line by line from in.
type Menu struct {
	DB  *sql.DB
	Now func() time.Time

	in  *bufio.Reader
	out io.Writer
}

// NewMenu returns a menu over db reading from in and writing to out.
func NewMenu(db *sql.DB, in io.Reader, out io.Writer) *Menu {
	return &Menu{DB: db, Now: time.Now, in: bufio.NewReader(in), out: out}
}

type action struct {
	label string
	run   func(context.Context) error
}

func (m *Menu) actions() []action {
	return []action{
		{"Add Extract", m.addExtract},
		{"View All Extracts", m.viewAll},
		{"View Extract Details", m.viewDetails},
		{"Update Extract Details", m.updateExtract},
		{"Delete Extract", m.deleteExtract},
		{"Update Stock Quantity", m.updateStock},
		{"View Extracts Nearing Expiry", m.nearingExpiry},
		{"View Low Stock Extracts", m.lowStock},
	}
}

// Run shows the menu until the user picks Exit or input ends.
func (m *Menu) Run(ctx context.Context) error {
	actions := m.actions()
	exit := len(actions) + 1

	for {
		m.println("\n--- Allergenic Extract Management ---")
		for i, a := range actions {
			if i == 5 {
				m.println("--- Inventory ---")
			}
			m.printf("%d. %s\n", i+1, a.label)
		}
		m.printf("%d. Exit\n", exit)

		choice, err := m.ask(fmt.Sprintf("Enter your choice (1-%d): ", exit))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		n, convErr := strconv.Atoi(choice)
		switch {
		case convErr == nil && n == exit:
			m.println("Exiting application. Goodbye!")
			return nil
		case convErr == nil && n >= 1 && n <= len(actions):
			err = actions[n-1].run(ctx)
		default:
			m.printf("Invalid choice. Please enter a number between 1 and %d.\n", exit)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := m.ask("\nPress Enter to continue..."); errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (m *Menu) today() time.Time {
	return model.Day(m.Now())
}

func (m *Menu) addExtract(ctx context.Context) error {
	m.println("\n--- Add New Allergenic Extract ---")

	var in model.ExtractInput
	var err error
	if in.Name, err = m.askRequired("Name (required): ", "Name"); err != nil {
		return err
	}
	if in.BatchNumber, err = m.ask("Batch Number: "); err != nil {
		return err
	}
	if in.ExpiryDate, err = m.askDate("Expiry Date", nil); err != nil {
		return err
	}
	for {
		qty, err := m.askInt("Quantity on Hand (required, integer)", nil, true)
		if err != nil {
			return err
		}
		if *qty >= 0 {
			in.QuantityOnHand = *qty
			break
		}
		m.println("Quantity cannot be negative.")
	}
	if in.StorageLocation, err = m.ask("Storage Location: "); err != nil {
		return err
	}
	if in.SupplierDetails, err = m.ask("Supplier Details: "); err != nil {
		return err
	}
	if in.DateReceived, err = m.askDate("Date Received", nil); err != nil {
		return err
	}
	if in.Notes, err = m.ask("Notes: "); err != nil {
		return err
	}

	e, err := store.CreateExtract(ctx, m.DB, in)
	if err != nil {
		slog.Error("failed to add extract", "error", err)
		m.printf("Failed to add extract '%s': %v\n", in.Name, err)
		return nil
	}
	m.printf("Extract '%s' added successfully with ID: %d.\n", e.Name, e.ID)
	return nil
}

func (m *Menu) viewAll(ctx context.Context) error {
	m.println("\n--- All Allergenic Extracts ---")
	extracts, err := store.ListExtracts(ctx, m.DB)
	if err != nil {
		slog.Error("failed to list extracts", "error", err)
		m.println("Failed to load extracts. Check logs.")
		return nil
	}
	PrintExtracts(m.out, extracts)
	return nil
}

// lookup reads an id and loads the extract, printing why when there is none.
func (m *Menu) lookup(ctx context.Context, prompt string) (*model.Extract, error) {
	id, ok, err := m.askID(prompt)
	if err != nil || !ok {
		return nil, err
	}
	e, err := store.GetExtract(ctx, m.DB, id)
	if err != nil {
		slog.Error("failed to get extract", "error", err, "extract", id)
		m.println("Failed to load the extract. Check logs.")
		return nil, nil
	}
	if e == nil {
		m.printf("No extract found with ID %d.\n", id)
	}
	return e, nil
}

func (m *Menu) viewDetails(ctx context.Context) error {
	m.println("\n--- View Extract Details ---")
	e, err := m.lookup(ctx, "Enter ID of the extract to view: ")
	if err != nil || e == nil {
		return err
	}
	m.println("\n--- Extract Details ---")
	PrintExtract(m.out, e)
	m.println("-------------------------")
	return nil
}

func (m *Menu) updateExtract(ctx context.Context) error {
	m.println("\n--- Update Allergenic Extract ---")
	e, err := m.lookup(ctx, "Enter ID of the extract to update: ")
	if err != nil || e == nil {
		return err
	}

	m.println("\n--- Current Extract Details (press Enter to keep current value) ---")
	m.printf("ID: %d\n", e.ID)

	in := e.Input()
	if in.Name, err = m.askKeep("Name", in.Name); err != nil {
		return err
	}
	if in.BatchNumber, err = m.askKeep("Batch Number", in.BatchNumber); err != nil {
		return err
	}
	if in.ExpiryDate, err = m.askDate("Expiry Date", in.ExpiryDate); err != nil {
		return err
	}
	qty, err := m.askInt("Quantity on Hand", &in.QuantityOnHand, false)
	if err != nil {
		return err
	}
	in.QuantityOnHand = *qty
	if in.StorageLocation, err = m.askKeep("Storage Location", in.StorageLocation); err != nil {
		return err
	}
	if in.SupplierDetails, err = m.askKeep("Supplier Details", in.SupplierDetails); err != nil {
		return err
	}
	if in.DateReceived, err = m.askDate("Date Received", in.DateReceived); err != nil {
		return err
	}
	if in.Notes, err = m.askKeep("Notes", in.Notes); err != nil {
		return err
	}

	res, err := store.UpdateExtract(ctx, m.DB, e.ID, in)
	switch {
	case errors.Is(err, model.ErrInvalid):
		m.printf("Update rejected: %v\n", err)
	case err != nil:
		slog.Error("failed to update extract", "error", err, "extract", e.ID)
		m.printf("Failed to update extract ID %d. Check logs.\n", e.ID)
	case res == store.UpdateNotFound:
		m.printf("Extract ID %d no longer exists.\n", e.ID)
	case res == store.UpdateNoChange:
		m.printf("Extract ID %d was not changed.\n", e.ID)
	default:
		m.printf("Extract ID %d updated successfully.\n", e.ID)
	}
	return nil
}

func (m *Menu) deleteExtract(ctx context.Context) error {
	m.println("\n--- Delete Allergenic Extract ---")
	e, err := m.lookup(ctx, "Enter ID of the extract to delete: ")
	if err != nil || e == nil {
		return err
	}

	m.println("\n--- Extract to be Deleted ---")
	m.printf("ID:           %d\n", e.ID)
	m.printf("Name:         %s\n", e.Name)
	m.printf("Batch Number: %s\n", orNA(e.BatchNumber))
	m.println("-----------------------------")

	confirm, err := m.ask("Are you sure you want to delete this extract? (y/n): ")
	if err != nil {
		return err
	}
	if strings.ToLower(confirm) != "y" {
		m.println("Deletion cancelled.")
		return nil
	}

	deleted, err := store.DeleteExtract(ctx, m.DB, e.ID)
	switch {
	case err != nil:
		slog.Error("failed to delete extract", "error", err, "extract", e.ID)
		m.printf("Failed to delete extract ID %d. Check logs.\n", e.ID)
	case !deleted:
		m.printf("Extract ID %d no longer exists.\n", e.ID)
	default:
		m.printf("Extract ID %d deleted successfully.\n", e.ID)
	}
	return nil
}

func (m *Menu) updateStock(ctx context.Context) error {
	m.println("\n--- Update Stock Quantity ---")
	id, err := m.askInt("Enter ID of the extract to update stock for", nil, true)
	if err != nil {
		return err
	}

	e, err := store.GetExtract(ctx, m.DB, int64(*id))
	if err != nil {
		slog.Error("failed to get extract", "error", err, "extract", *id)
		m.println("Failed to load the extract. Check logs.")
		return nil
	}
	if e == nil {
		m.printf("No extract found with ID %d.\n", *id)
		return nil
	}

	m.printf("\nCurrent details for '%s' (ID: %d):\n", e.Name, e.ID)
	m.printf("Current Quantity on Hand: %d\n", e.QuantityOnHand)

	delta, err := m.askInt("Enter change in quantity (e.g., 20 to receive, -5 to dispense)", nil, true)
	if err != nil {
		return err
	}

	qty, err := store.UpdateStock(ctx, m.DB, e.ID, *delta)
	switch {
	case err == nil:
		m.printf("Stock quantity updated successfully. New quantity on hand: %d\n", qty)
	case errors.Is(err, store.ErrInsufficientStock):
		m.printf("Failed to update stock quantity. Current quantity remains: %d.\n", qty)
		m.println("The change would result in a negative stock level.")
	case errors.Is(err, store.ErrNotFound):
		m.printf("Extract ID %d no longer exists.\n", e.ID)
	default:
		slog.Error("failed to update stock", "error", err, "extract", e.ID)
		m.println("Failed to update stock quantity. Check logs.")
	}
	return nil
}

// askThreshold reads an optional report threshold. Input that is not a
// number falls back to the default; out of range input cancels the report.
func (m *Menu) askThreshold(prompt string, fallback, minimum int, rangeMsg string) (int, bool, error) {
	v, err := m.ask(prompt)
	if err != nil {
		return 0, false, err
	}
	if v == "" {
		return fallback, true, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		m.printf("Invalid input. Using default (%d).\n", fallback)
		return fallback, true, nil
	}
	if n < minimum {
		m.println(rangeMsg)
		return 0, false, nil
	}
	return n, true, nil
}

func (m *Menu) nearingExpiry(ctx context.Context) error {
	m.println("\n--- View Extracts Nearing Expiry ---")
	days, ok, err := m.askThreshold(
		fmt.Sprintf("Show items expiring in how many days? (default %d, press Enter for default): ", store.DefaultExpiryDays),
		store.DefaultExpiryDays, 1, "Days threshold must be a positive number.")
	if err != nil || !ok {
		return err
	}

	m.printf("Searching for extracts expiring in the next %d days...\n", days)
	today := m.today()
	extracts, err := store.NearingExpiry(ctx, m.DB, today, days)
	if err != nil {
		slog.Error("failed to list extracts nearing expiry", "error", err)
		m.println("Failed to run the report. Check logs.")
		return nil
	}
	if len(extracts) > 0 {
		m.printf("\n--- Extracts Nearing Expiry (within %d days) ---\n", days)
	}
	PrintNearingExpiry(m.out, today, days, extracts)
	return nil
}

func (m *Menu) lowStock(ctx context.Context) error {
	m.println("\n--- View Low Stock Extracts ---")
	threshold, ok, err := m.askThreshold(
		fmt.Sprintf("Show items with stock at or below what quantity? (default %d, press Enter for default): ", store.DefaultLowStockThreshold),
		store.DefaultLowStockThreshold, 0, "Quantity threshold cannot be negative.")
	if err != nil || !ok {
		return err
	}

	m.printf("Searching for extracts with stock at or below %d units...\n", threshold)
	extracts, err := store.LowStock(ctx, m.DB, threshold)
	if err != nil {
		slog.Error("failed to list low stock extracts", "error", err)
		m.println("Failed to run the report. Check logs.")
		return nil
	}
	if len(extracts) > 0 {
		m.printf("\n--- Low Stock Extracts (<= %d units) ---\n", threshold)
	}
	PrintLowStock(m.out, threshold, extracts)
	return nil
}
