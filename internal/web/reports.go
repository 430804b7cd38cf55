package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/report"
	"github.com/erazemk/alergo/internal/store"
)

type expiryRow struct {
	model.Extract
	DaysLeft int
}

// formThreshold reads a non-negative integer form field. An absent field
// (including every GET) yields the fallback; a bad value yields the
// fallback and a message for the page.
func formThreshold(r *http.Request, key string, fallback int) (int, string) {
	if r.Method != http.MethodPost {
		return fallback, ""
	}
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback, ""
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback, fmt.Sprintf("Enter a whole number of zero or more. Showing the default of %d.", fallback)
	}
	return n, ""
}

// NearingExpiryPage handles GET and POST /reports/nearing-expiry.
func (s *Server) NearingExpiryPage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Nearing expiry")
	days, msg := formThreshold(r, "days", store.DefaultExpiryDays)
	if msg != "" {
		pd.Error = msg
	}

	today := s.today()
	extracts, err := store.NearingExpiry(r.Context(), s.DB, today, days)
	if err != nil {
		slog.Error("failed to list extracts nearing expiry", "error", err)
		pd.Error = "Could not load the report."
	}

	rows := make([]expiryRow, 0, len(extracts))
	for _, e := range extracts {
		rows = append(rows, expiryRow{Extract: e, DaysLeft: report.DaysLeft(today, *e.ExpiryDate)})
	}

	s.Templates.Render(w, "nearing_expiry.html", &struct {
		PageData
		Days     int
		Extracts []expiryRow
		CanSend  bool
	}{
		PageData: pd,
		Days:     days,
		Extracts: rows,
		CanSend:  s.Notifier != nil && model.RoleAtLeast(pd.User.Role, model.RoleStaff),
	})
}

// LowStockPage handles GET and POST /reports/low-stock.
func (s *Server) LowStockPage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Low stock")
	threshold, msg := formThreshold(r, "threshold", store.DefaultLowStockThreshold)
	if msg != "" {
		pd.Error = msg
	}

	extracts, err := store.LowStock(r.Context(), s.DB, threshold)
	if err != nil {
		slog.Error("failed to list low stock extracts", "error", err)
		pd.Error = "Could not load the report."
	}

	s.Templates.Render(w, "low_stock.html", &struct {
		PageData
		Threshold int
		Extracts  []model.Extract
	}{
		PageData:  pd,
		Threshold: threshold,
		Extracts:  extracts,
	})
}

// usageYear reads the year from the query string or form, defaulting to
// the current year.
func (s *Server) usageYear(r *http.Request) (int, bool) {
	v := strings.TrimSpace(r.FormValue("year"))
	if v == "" {
		return s.Now().Year(), true
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 || y > 9999 {
		return s.Now().Year(), false
	}
	return y, true
}

// UsagePage handles GET /reports/usage.
func (s *Server) UsagePage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Usage history")
	year, ok := s.usageYear(r)
	if !ok {
		pd.Error = "Enter a four digit year."
	}

	records, err := store.ListUsageByYear(r.Context(), s.DB, year)
	if err != nil {
		slog.Error("failed to list usage", "error", err, "year", year)
		pd.Error = "Could not load the usage history."
	}

	s.Templates.Render(w, "usage.html", &struct {
		PageData
		Year    int
		Records []model.UsageRecord
		InUse   string
	}{
		PageData: pd,
		Year:     year,
		Records:  records,
		InUse:    report.InUse,
	})
}

// UsageDownload handles POST /reports/usage with a CSV attachment.
func (s *Server) UsageDownload(w http.ResponseWriter, r *http.Request) {
	year, ok := s.usageYear(r)
	if !ok {
		redirectError(w, r, "/reports/usage", "Enter a four digit year.")
		return
	}

	records, err := store.ListUsageByYear(r.Context(), s.DB, year)
	if err != nil {
		slog.Error("failed to list usage", "error", err, "year", year)
		redirectError(w, r, "/reports/usage", "Could not export the usage history.")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.UsageFilename(year)))
	if err := report.WriteUsageCSV(w, records); err != nil {
		slog.Error("failed to write usage csv", "error", err, "year", year)
	}
}

// SendNotification handles POST /notifications/send.
func (s *Server) SendNotification(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	const back = "/reports/nearing-expiry"

	if s.Notifier == nil {
		redirectError(w, r, back, "Notifications are not configured.")
		return
	}

	res, err := s.Notifier.Run(r.Context())
	if err != nil {
		slog.Error("failed to send expiry notification", "error", err, "user", claims.Username)
		redirectError(w, r, back, "Sending the notification failed.")
		return
	}
	if !res.Sent {
		slog.Info("expiry notification skipped", "reason", res.Reason, "user", claims.Username)
		redirectError(w, r, back, "Not sent: "+res.Reason+".")
		return
	}
	redirectOK(w, r, back, fmt.Sprintf("Listed %d extracts, %s.", res.Count, res.Reason))
}
