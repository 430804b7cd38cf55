// Command alergoctl manages the extract stock from a terminal, either
// through the interactive menu or one subcommand at a time.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/alergo/internal/cli"
	"github.com/erazemk/alergo/internal/config"
	"github.com/erazemk/alergo/internal/db"
	"github.com/erazemk/alergo/internal/report"
	"github.com/erazemk/alergo/internal/store"
)

// app carries the state shared by all subcommands.
type app struct {
	dbPath string
	db     *sql.DB
	now    func() time.Time
}

func newRootCmd(now func() time.Time) *cobra.Command {
	a := &app{now: now}

	defaultDB := config.DefaultDB
	if cfg, err := config.Load(""); err == nil {
		defaultDB = cfg.DB
	}

	root := &cobra.Command{
		Use:   "alergoctl",
		Short: "Manage the allergenic extract stock from the terminal",
		Long: `alergoctl works on the same SQLite database as the alergo server.

Run without a subcommand to open the interactive menu.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))

			database, err := db.Open(a.dbPath)
			if err != nil {
				return err
			}
			if err := db.EnsureSchema(database); err != nil {
				database.Close()
				return err
			}
			a.db = database
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.db != nil {
				a.db.Close()
			}
		},
		RunE: a.runMenu,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "SQLite database path (or set ALERGO_DB)")

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu",
		Args:  cobra.NoArgs,
		RunE:  a.runMenu,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all extracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extracts, err := store.ListExtracts(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			cli.PrintExtracts(cmd.OutOrStdout(), extracts)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show all details of one extract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extract id %q", args[0])
			}
			e, err := store.GetExtract(cmd.Context(), a.db, id)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("no extract found with ID %d", id)
			}
			cli.PrintExtract(cmd.OutOrStdout(), e)
			return nil
		},
	}

	stockCmd := &cobra.Command{
		Use:   "stock ID DELTA",
		Short: "Receive (positive DELTA) or dispense (negative DELTA) vials",
		Example: `  alergoctl stock 4 20
  alergoctl --db clinic.db stock 4 -5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extract id %q", args[0])
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity change %q", args[1])
			}
			qty, err := store.UpdateStock(cmd.Context(), a.db, id, delta)
			if errors.Is(err, store.ErrInsufficientStock) {
				return fmt.Errorf("%w (only %d on hand)", store.ErrInsufficientStock, qty)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New quantity on hand: %d\n", qty)
			return nil
		},
	}
	// Stop flag parsing at ID so a negative DELTA is read as an argument.
	stockCmd.Flags().SetInterspersed(false)

	var days int
	expiringCmd := &cobra.Command{
		Use:   "expiring",
		Short: "List extracts expiring within a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := a.now()
			extracts, err := store.NearingExpiry(cmd.Context(), a.db, today, days)
			if err != nil {
				return err
			}
			cli.PrintNearingExpiry(cmd.OutOrStdout(), today, days, extracts)
			return nil
		},
	}
	expiringCmd.Flags().IntVar(&days, "days", store.DefaultExpiryDays, "days ahead to look")

	var threshold int
	lowStockCmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List extracts at or below a quantity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extracts, err := store.LowStock(cmd.Context(), a.db, threshold)
			if err != nil {
				return err
			}
			cli.PrintLowStock(cmd.OutOrStdout(), threshold, extracts)
			return nil
		},
	}
	lowStockCmd.Flags().IntVar(&threshold, "threshold", store.DefaultLowStockThreshold, "quantity threshold")

	var year int
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Write the panel usage history of a year as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("year") {
				year = a.now().Year()
			}
			records, err := store.ListUsageByYear(cmd.Context(), a.db, year)
			if err != nil {
				return err
			}
			return report.WriteUsageCSV(cmd.OutOrStdout(), records)
		},
	}
	usageCmd.Flags().IntVar(&year, "year", 0, "calendar year (default: current year)")

	root.AddCommand(menuCmd, listCmd, showCmd, stockCmd, expiringCmd, lowStockCmd, usageCmd)
	return root
}

func (a *app) runMenu(cmd *cobra.Command, args []string) error {
	m := cli.NewMenu(a.db, cmd.InOrStdin(), cmd.OutOrStdout())
	m.Now = a.now
	return m.Run(cmd.Context())
}

func main() {
	if err := newRootCmd(time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}
