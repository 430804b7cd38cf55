package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/alergo/internal/imaging"
	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// ExtractsHandler handles the stock-tracked extract endpoints.
type ExtractsHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

// extractRequest carries dates as YYYY-MM-DD strings.
type extractRequest struct {
	Name            string `json:"name"`
	BatchNumber     string `json:"batch_number"`
	ExpiryDate      string `json:"expiry_date"`
	QuantityOnHand  int    `json:"quantity_on_hand"`
	StorageLocation string `json:"storage_location"`
	SupplierDetails string `json:"supplier_details"`
	DateReceived    string `json:"date_received"`
	Notes           string `json:"notes"`
}

func (req extractRequest) input() (model.ExtractInput, error) {
	expiry, err := model.ParseOptionalDate(req.ExpiryDate)
	if err != nil {
		return model.ExtractInput{}, err
	}
	received, err := model.ParseOptionalDate(req.DateReceived)
	if err != nil {
		return model.ExtractInput{}, err
	}
	return model.ExtractInput{
		Name:            req.Name,
		BatchNumber:     req.BatchNumber,
		ExpiryDate:      expiry,
		QuantityOnHand:  req.QuantityOnHand,
		StorageLocation: req.StorageLocation,
		SupplierDetails: req.SupplierDetails,
		DateReceived:    received,
		Notes:           req.Notes,
	}, nil
}

type stockRequest struct {
	Delta *int `json:"delta"`
}

type stockResponse struct {
	ID             int64  `json:"id"`
	QuantityOnHand int    `json:"quantity_on_hand"`
	Error          string `json:"error,omitempty"`
}

// List handles GET /api/extracts.
func (h *ExtractsHandler) List(w http.ResponseWriter, r *http.Request) {
	extracts, err := store.ListExtracts(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list extracts")
		return
	}
	if extracts == nil {
		extracts = []model.Extract{}
	}
	jsonResponse(w, http.StatusOK, extracts)
}

// Create handles POST /api/extracts.
func (h *ExtractsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := store.CreateExtract(r.Context(), h.DB, in)
	if err != nil {
		storeError(w, err, "create extract")
		return
	}

	slog.Info("extract created", "user", GetClaims(r.Context()).Username, "extract", e.ID, "name", e.Name)
	jsonResponse(w, http.StatusCreated, e)
}

// Get handles GET /api/extracts/{id}.
func (h *ExtractsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}

	e, err := store.GetExtract(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get extract")
		return
	}
	if e == nil {
		jsonError(w, http.StatusNotFound, "extract not found")
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// Update handles PUT /api/extracts/{id}.
func (h *ExtractsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}

	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := store.UpdateExtract(r.Context(), h.DB, id, in)
	if err != nil {
		storeError(w, err, "update extract")
		return
	}
	if res == store.UpdateNotFound {
		jsonError(w, http.StatusNotFound, "extract not found")
		return
	}

	e, err := store.GetExtract(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get extract")
		return
	}
	if res == store.Updated {
		slog.Info("extract updated", "user", GetClaims(r.Context()).Username, "extract", id)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"result": res.String(), "extract": e})
}

// Delete handles DELETE /api/extracts/{id}.
func (h *ExtractsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}

	ok, err := store.DeleteExtract(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "delete extract")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "extract not found")
		return
	}

	slog.Info("extract deleted", "user", GetClaims(r.Context()).Username, "extract", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "extract deleted"})
}

// Stock handles POST /api/extracts/{id}/stock. A change that would leave
// the quantity negative is rejected with 409 and the unchanged quantity.
func (h *ExtractsHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}

	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Delta == nil {
		jsonError(w, http.StatusBadRequest, "delta required")
		return
	}

	qty, err := store.UpdateStock(r.Context(), h.DB, id, *req.Delta)
	switch {
	case err == nil:
		h.Metrics.StockUpdate(metrics.OutcomeApplied)
		slog.Info("stock updated", "user", GetClaims(r.Context()).Username, "extract", id, "delta", *req.Delta, "quantity", qty)
		jsonResponse(w, http.StatusOK, stockResponse{ID: id, QuantityOnHand: qty})
	case errors.Is(err, store.ErrInsufficientStock):
		h.Metrics.StockUpdate(metrics.OutcomeInsufficient)
		jsonResponse(w, http.StatusConflict, stockResponse{ID: id, QuantityOnHand: qty, Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		h.Metrics.StockUpdate(metrics.OutcomeNotFound)
		jsonError(w, http.StatusNotFound, "extract not found")
	default:
		h.Metrics.StockUpdate(metrics.OutcomeError)
		storeError(w, err, "update stock")
	}
}

// UploadLabel handles PUT /api/extracts/{id}/label with a multipart "image" field.
func (h *ExtractsHandler) UploadLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	label, err := imaging.ProcessLabel(file)
	if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		storeError(w, err, "process label photo")
		return
	}

	if err := store.SetExtractLabel(r.Context(), h.DB, id, label.Data, label.MIME); err != nil {
		storeError(w, err, "save label photo")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "label uploaded"})
}

// GetLabel handles GET /api/extracts/{id}/label.
func (h *ExtractsHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extract id")
		return
	}
	serveLabel(w, r, h.DB, id)
}

// serveLabel writes a stored label photo, or 404 if there is none.
func serveLabel(w http.ResponseWriter, r *http.Request, db *sql.DB, id int64) {
	data, mime, err := store.GetExtractLabel(r.Context(), db, id)
	if err != nil {
		storeError(w, err, "get label photo")
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
