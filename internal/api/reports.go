package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/report"
	"github.com/erazemk/alergo/internal/store"
)

// ReportsHandler handles the read-only report endpoints.
type ReportsHandler struct {
	DB  *sql.DB
	Now func() time.Time
}

// expiringExtract adds the days left to an extract nearing expiry.
type expiringExtract struct {
	model.Extract
	DaysLeft int `json:"days_left"`
}

// NearingExpiry handles GET /api/reports/nearing-expiry?days=N.
func (h *ReportsHandler) NearingExpiry(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", store.DefaultExpiryDays)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	today := h.Now()
	extracts, err := store.NearingExpiry(r.Context(), h.DB, today, days)
	if err != nil {
		storeError(w, err, "list extracts nearing expiry")
		return
	}

	out := make([]expiringExtract, 0, len(extracts))
	for _, e := range extracts {
		out = append(out, expiringExtract{Extract: e, DaysLeft: report.DaysLeft(today, *e.ExpiryDate)})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"days": days, "extracts": out})
}

// LowStock handles GET /api/reports/low-stock?threshold=N.
func (h *ReportsHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", store.DefaultLowStockThreshold)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	extracts, err := store.LowStock(r.Context(), h.DB, threshold)
	if err != nil {
		storeError(w, err, "list low stock extracts")
		return
	}
	if extracts == nil {
		extracts = []model.Extract{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"threshold": threshold, "extracts": extracts})
}

// Usage handles GET /api/reports/usage?year=Y&format=csv|json. The year
// defaults to the current one.
func (h *ReportsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	year := h.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			jsonError(w, http.StatusBadRequest, "year must be a four digit number")
			return
		}
		year = y
	}

	records, err := store.ListUsageByYear(r.Context(), h.DB, year)
	if err != nil {
		storeError(w, err, "list usage")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		if records == nil {
			records = []model.UsageRecord{}
		}
		jsonResponse(w, http.StatusOK, map[string]any{"year": year, "records": records})
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.UsageFilename(year)))
		if err := report.WriteUsageCSV(w, records); err != nil {
			slog.Error("failed to write usage csv", "error", err, "year", year)
		}
	default:
		jsonError(w, http.StatusBadRequest, "format must be csv or json")
	}
}
