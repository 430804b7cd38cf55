package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// PanelsPage handles GET /panels.
func (s *Server) PanelsPage(w http.ResponseWriter, r *http.Request) {
	panels, err := store.ListPanels(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list panels", "error", err)
	}

	s.Templates.Render(w, "panels.html", &struct {
		PageData
		Panels []model.Panel
	}{
		PageData: s.page(r, "Panels"),
		Panels:   panels,
	})
}

// PanelCreateSubmit handles POST /panels.
func (s *Server) PanelCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	panel, err := store.CreatePanel(r.Context(), s.DB, r.FormValue("name"), r.FormValue("description"))
	switch {
	case errors.Is(err, model.ErrInvalid):
		redirectError(w, r, "/panels", "A panel needs a name.")
		return
	case errors.Is(err, store.ErrDuplicate):
		redirectError(w, r, "/panels", "A panel with that name already exists.")
		return
	case err != nil:
		slog.Error("failed to create panel", "error", err)
		redirectError(w, r, "/panels", "Could not create the panel.")
		return
	}

	slog.Info("panel created", "user", claims.Username, "panel", panel.ID, "name", panel.Name)
	http.Redirect(w, r, fmt.Sprintf("/panels/%d", panel.ID), http.StatusSeeOther)
}

// PanelDetailPage handles GET /panels/{id}.
func (s *Server) PanelDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	panel, err := store.GetPanel(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get panel", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if panel == nil {
		http.Error(w, "panel not found", http.StatusNotFound)
		return
	}

	inventory, err := store.ListInventory(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list inventory", "error", err)
	}

	s.Templates.Render(w, "panel_detail.html", &struct {
		PageData
		Panel     *model.Panel
		Inventory []model.InventoryExtract
	}{
		PageData:  s.page(r, panel.Name),
		Panel:     panel,
		Inventory: inventory,
	})
}

// PanelAssignSubmit handles POST /panels/{id}/extracts.
func (s *Server) PanelAssignSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/panels/%d", id)

	inventoryID, err := strconv.ParseInt(r.FormValue("inventory_id"), 10, 64)
	if err != nil {
		redirectError(w, r, back, "Choose an extract from inventory.")
		return
	}

	pe, err := store.AssignToPanel(r.Context(), s.DB, inventoryID, id, s.today())
	if errors.Is(err, store.ErrNotFound) {
		redirectError(w, r, back, "That panel or inventory extract no longer exists.")
		return
	}
	if err != nil {
		slog.Error("failed to assign extract to panel", "error", err)
		redirectError(w, r, back, "Could not assign the extract.")
		return
	}

	slog.Info("extract assigned to panel", "user", claims.Username, "panel", id, "extract", pe.ID, "name", pe.Name)
	redirectOK(w, r, back, fmt.Sprintf("%s is now on the panel.", pe.Name))
}

// PanelDeleteSubmit handles POST /panels/{id}/delete.
func (s *Server) PanelDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	deleted, err := store.DeletePanel(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to delete panel", "error", err)
		redirectError(w, r, "/panels", "Could not delete the panel.")
		return
	}
	if !deleted {
		redirectError(w, r, "/panels", "That panel no longer exists.")
		return
	}

	slog.Info("panel deleted", "user", claims.Username, "panel", id)
	redirectOK(w, r, "/panels", "Panel deleted.")
}

// PanelExtractCloseSubmit handles POST /panel-extracts/{id}/close.
func (s *Server) PanelExtractCloseSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	res, err := store.CloseExtract(r.Context(), s.DB, id, s.today())
	switch {
	case errors.Is(err, store.ErrNotFound):
		redirectError(w, r, "/panels", "That panel extract no longer exists.")
		return
	case errors.Is(err, store.ErrAlreadyClosed):
		redirectError(w, r, "/panels", "That extract is already closed.")
		return
	case err != nil:
		slog.Error("failed to close panel extract", "error", err)
		redirectError(w, r, "/panels", "Could not close the extract.")
		return
	}

	s.Metrics.ExtractClosed(res.Replacement != nil)
	back := fmt.Sprintf("/panels/%d", res.Closed.PanelID)
	if res.Replacement == nil {
		slog.Info("panel extract closed", "user", claims.Username, "extract", id, "panel", res.Closed.PanelID)
		redirectOK(w, r, back, fmt.Sprintf("Closed %s. No replacement in inventory.", res.Closed.Name))
		return
	}
	slog.Info("panel extract closed and replaced", "user", claims.Username, "extract", id,
		"panel", res.Closed.PanelID, "replacement", res.Replacement.ID)
	redirectOK(w, r, back, fmt.Sprintf("Closed %s and replaced it from inventory (lot %s).",
		res.Closed.Name, res.Replacement.LotNumber))
}

// InventoryPage handles GET /inventory.
func (s *Server) InventoryPage(w http.ResponseWriter, r *http.Request) {
	inventory, err := store.ListInventory(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list inventory", "error", err)
	}

	s.Templates.Render(w, "inventory.html", &struct {
		PageData
		Inventory []model.InventoryExtract
		Types     []string
		Today     string
	}{
		PageData:  s.page(r, "Inventory"),
		Inventory: inventory,
		Types:     model.ExtractTypes,
		Today:     model.FormatDate(s.today()),
	})
}

// InventoryAddSubmit handles POST /inventory.
func (s *Server) InventoryAddSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	base := model.ExtractBase{
		Name:         r.FormValue("name"),
		Type:         r.FormValue("type"),
		LotNumber:    r.FormValue("lot_number"),
		Manufacturer: r.FormValue("manufacturer"),
	}

	expiration, err := model.ParseDate(strings.TrimSpace(r.FormValue("expiration_date")))
	if err != nil {
		redirectError(w, r, "/inventory", "Enter the expiration date as YYYY-MM-DD.")
		return
	}
	loading := s.today()
	if v := strings.TrimSpace(r.FormValue("loading_date")); v != "" {
		if loading, err = model.ParseDate(v); err != nil {
			redirectError(w, r, "/inventory", "Enter the loading date as YYYY-MM-DD.")
			return
		}
	}
	count := 1
	if v := strings.TrimSpace(r.FormValue("count")); v != "" {
		if count, err = strconv.Atoi(v); err != nil {
			redirectError(w, r, "/inventory", "The count must be a whole number.")
			return
		}
	}

	added, err := store.AddInventory(r.Context(), s.DB, base, expiration, loading, count)
	if errors.Is(err, model.ErrInvalid) {
		redirectError(w, r, "/inventory", userMessage(err))
		return
	}
	if err != nil {
		slog.Error("failed to add inventory", "error", err)
		redirectError(w, r, "/inventory", "Could not add to inventory.")
		return
	}

	slog.Info("inventory added", "user", claims.Username, "name", base.Name, "count", len(added))
	redirectOK(w, r, "/inventory", fmt.Sprintf("Added %d × %s.", len(added), added[0].Name))
}

// InventoryDeleteSubmit handles POST /inventory/{id}/delete.
func (s *Server) InventoryDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	deleted, err := store.DeleteInventoryExtract(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to delete inventory extract", "error", err)
		redirectError(w, r, "/inventory", "Could not delete the extract.")
		return
	}
	if !deleted {
		redirectError(w, r, "/inventory", "That extract is no longer in inventory.")
		return
	}

	slog.Info("inventory extract deleted", "user", claims.Username, "extract", id)
	redirectOK(w, r, "/inventory", "Removed from inventory.")
}
