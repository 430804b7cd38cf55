package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// InventoryHandler handles extracts waiting in storage.
type InventoryHandler struct {
	DB  *sql.DB
	Now func() time.Time
}

type addInventoryRequest struct {
	model.ExtractBase
	ExpirationDate string `json:"expiration_date"`
	LoadingDate    string `json:"loading_date"`
	Quantity       int    `json:"quantity"`
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListInventory(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list inventory")
		return
	}
	if items == nil {
		items = []model.InventoryExtract{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Add handles POST /api/inventory. Quantity extracts are created, one row
// each; the loading date defaults to today.
func (h *InventoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addInventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expiration, err := model.ParseDate(req.ExpirationDate)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	loading := model.Day(h.Now())
	if req.LoadingDate != "" {
		if loading, err = model.ParseDate(req.LoadingDate); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	added, err := store.AddInventory(r.Context(), h.DB, req.ExtractBase, expiration, loading, req.Quantity)
	if err != nil {
		storeError(w, err, "add inventory")
		return
	}

	slog.Info("inventory added", "user", GetClaims(r.Context()).Username, "name", req.Name, "count", len(added))
	jsonResponse(w, http.StatusCreated, added)
}

// Delete handles DELETE /api/inventory/{id}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}

	ok, err := store.DeleteInventoryExtract(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "delete inventory extract")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "inventory extract not found")
		return
	}

	slog.Info("inventory extract deleted", "user", GetClaims(r.Context()).Username, "extract", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "inventory extract deleted"})
}
