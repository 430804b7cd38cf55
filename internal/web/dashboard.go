package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	today := s.today()

	counts, err := store.GetDashboard(r.Context(), s.DB, today)
	if err != nil {
		slog.Error("failed to load dashboard", "error", err)
		counts = &model.Dashboard{}
	}
	expiring, err := store.NearingExpiry(r.Context(), s.DB, today, store.DefaultExpiryDays)
	if err != nil {
		slog.Error("failed to list expiring extracts for dashboard", "error", err)
	}
	low, err := store.LowStock(r.Context(), s.DB, store.DefaultLowStockThreshold)
	if err != nil {
		slog.Error("failed to list low stock extracts for dashboard", "error", err)
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Counts        *model.Dashboard
		NearingExpiry int
		LowStock      int
		ExpiryDays    int
		Threshold     int
	}{
		PageData:      s.page(r, "Dashboard"),
		Counts:        counts,
		NearingExpiry: len(expiring),
		LowStock:      len(low),
		ExpiryDays:    store.DefaultExpiryDays,
		Threshold:     store.DefaultLowStockThreshold,
	})
}
