package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// PanelsHandler handles panels and the extracts in use on them.
type PanelsHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type createPanelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type assignRequest struct {
	InventoryID int64 `json:"inventory_id"`
}

// List handles GET /api/panels.
func (h *PanelsHandler) List(w http.ResponseWriter, r *http.Request) {
	panels, err := store.ListPanels(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list panels")
		return
	}
	if panels == nil {
		panels = []model.Panel{}
	}
	jsonResponse(w, http.StatusOK, panels)
}

// Create handles POST /api/panels.
func (h *PanelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPanelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := store.CreatePanel(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		storeError(w, err, "create panel")
		return
	}

	slog.Info("panel created", "user", GetClaims(r.Context()).Username, "panel", p.Name)
	jsonResponse(w, http.StatusCreated, p)
}

// Get handles GET /api/panels/{id}.
func (h *PanelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid panel id")
		return
	}

	p, err := store.GetPanel(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get panel")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "panel not found")
		return
	}
	if p.Extracts == nil {
		p.Extracts = []model.PanelExtract{}
	}
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/panels/{id}. The panel's extracts are deleted
// with it and no usage is recorded.
func (h *PanelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid panel id")
		return
	}

	ok, err := store.DeletePanel(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "delete panel")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "panel not found")
		return
	}

	slog.Info("panel deleted", "user", GetClaims(r.Context()).Username, "panel", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "panel deleted"})
}

// Assign handles POST /api/panels/{id}/extracts, moving an inventory
// extract onto the panel.
func (h *PanelsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	panelID, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid panel id")
		return
	}

	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil || req.InventoryID <= 0 {
		jsonError(w, http.StatusBadRequest, "inventory_id required")
		return
	}

	pe, err := store.AssignToPanel(r.Context(), h.DB, req.InventoryID, panelID, h.Now())
	if err != nil {
		storeError(w, err, "assign extract")
		return
	}

	slog.Info("extract assigned to panel", "user", GetClaims(r.Context()).Username,
		"inventory", req.InventoryID, "extract", pe.ID, "panel", pe.PanelName)
	jsonResponse(w, http.StatusCreated, pe)
}

// GetExtract handles GET /api/panel-extracts/{id}. Closed extracts are
// returned too, with their end date.
func (h *PanelsHandler) GetExtract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid panel extract id")
		return
	}

	pe, err := store.GetPanelExtract(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get panel extract")
		return
	}
	if pe == nil {
		jsonError(w, http.StatusNotFound, "panel extract not found")
		return
	}
	jsonResponse(w, http.StatusOK, pe)
}

// Close handles POST /api/panel-extracts/{id}/close.
func (h *PanelsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid panel extract id")
		return
	}

	res, err := store.CloseExtract(r.Context(), h.DB, id, h.Now())
	if err != nil {
		storeError(w, err, "close extract")
		return
	}

	h.Metrics.ExtractClosed(res.Replacement != nil)
	slog.Info("panel extract closed", "user", GetClaims(r.Context()).Username,
		"extract", id, "panel", res.Closed.PanelName, "replaced", res.Replacement != nil)
	jsonResponse(w, http.StatusOK, res)
}
