package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/alergo/internal/imaging"
	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/report"
	"github.com/erazemk/alergo/internal/store"
)

// extractRow is an extract with its expiry classification for display.
type extractRow struct {
	model.Extract
	Status string
}

// ExtractsPage handles GET /extracts.
func (s *Server) ExtractsPage(w http.ResponseWriter, r *http.Request) {
	extracts, err := store.ListExtracts(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list extracts", "error", err)
	}

	today := s.today()
	rows := make([]extractRow, 0, len(extracts))
	for _, e := range extracts {
		rows = append(rows, extractRow{
			Extract: e,
			Status:  report.ExpiryStatus(today, e.ExpiryDate, store.DefaultExpiryDays),
		})
	}

	s.Templates.Render(w, "extracts.html", &struct {
		PageData
		Extracts []extractRow
	}{
		PageData: s.page(r, "Extracts"),
		Extracts: rows,
	})
}

// ExtractDetailPage handles GET /extracts/{id}.
func (s *Server) ExtractDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	extract, err := store.GetExtract(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get extract", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if extract == nil {
		http.Error(w, "extract not found", http.StatusNotFound)
		return
	}

	s.Templates.Render(w, "extract_detail.html", &struct {
		PageData
		Extract *model.Extract
		Status  string
	}{
		PageData: s.page(r, extract.Name),
		Extract:  extract,
		Status:   report.ExpiryStatus(s.today(), extract.ExpiryDate, store.DefaultExpiryDays),
	})
}

// parseExtractForm reads the add/edit form fields.
func parseExtractForm(r *http.Request) (model.ExtractInput, error) {
	in := model.ExtractInput{
		Name:            r.FormValue("name"),
		BatchNumber:     r.FormValue("batch_number"),
		StorageLocation: r.FormValue("storage_location"),
		SupplierDetails: r.FormValue("supplier_details"),
		Notes:           r.FormValue("notes"),
	}

	var err error
	if q := strings.TrimSpace(r.FormValue("quantity_on_hand")); q != "" {
		if in.QuantityOnHand, err = strconv.Atoi(q); err != nil {
			return in, fmt.Errorf("%w: quantity must be a whole number", model.ErrInvalid)
		}
	}
	if in.ExpiryDate, err = model.ParseOptionalDate(strings.TrimSpace(r.FormValue("expiry_date"))); err != nil {
		return in, err
	}
	if in.DateReceived, err = model.ParseOptionalDate(strings.TrimSpace(r.FormValue("date_received"))); err != nil {
		return in, err
	}
	return in, in.Validate()
}

// ExtractCreateSubmit handles POST /extracts.
func (s *Server) ExtractCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	in, err := parseExtractForm(r)
	if err != nil {
		redirectError(w, r, "/extracts", userMessage(err))
		return
	}

	extract, err := store.CreateExtract(r.Context(), s.DB, in)
	if err != nil {
		slog.Error("failed to create extract", "error", err)
		redirectError(w, r, "/extracts", "Could not save the extract.")
		return
	}

	slog.Info("extract created", "user", claims.Username, "extract", extract.ID, "name", extract.Name)
	redirectOK(w, r, "/extracts", fmt.Sprintf("Added %s.", extract.Name))
}

// ExtractUpdateSubmit handles POST /extracts/{id}.
func (s *Server) ExtractUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/extracts/%d", id)

	in, err := parseExtractForm(r)
	if err != nil {
		redirectError(w, r, back, userMessage(err))
		return
	}

	res, err := store.UpdateExtract(r.Context(), s.DB, id, in)
	if err != nil {
		slog.Error("failed to update extract", "error", err)
		redirectError(w, r, back, "Could not update the extract.")
		return
	}

	switch res {
	case store.UpdateNotFound:
		redirectError(w, r, "/extracts", "That extract no longer exists.")
	case store.UpdateNoChange:
		redirectOK(w, r, back, "Nothing changed.")
	default:
		slog.Info("extract updated", "user", claims.Username, "extract", id)
		redirectOK(w, r, back, "Extract updated.")
	}
}

// ExtractDeleteSubmit handles POST /extracts/{id}/delete.
func (s *Server) ExtractDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	deleted, err := store.DeleteExtract(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to delete extract", "error", err)
		redirectError(w, r, "/extracts", "Could not delete the extract.")
		return
	}
	if !deleted {
		redirectError(w, r, "/extracts", "That extract no longer exists.")
		return
	}

	slog.Info("extract deleted", "user", claims.Username, "extract", id)
	redirectOK(w, r, "/extracts", "Extract deleted.")
}

// ExtractStockSubmit handles POST /extracts/{id}/stock.
func (s *Server) ExtractStockSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/extracts/%d", id)

	delta, err := strconv.Atoi(strings.TrimSpace(r.FormValue("delta")))
	if err != nil {
		redirectError(w, r, back, "The stock change must be a whole number.")
		return
	}

	qty, err := store.UpdateStock(r.Context(), s.DB, id, delta)
	switch {
	case err == nil:
		s.Metrics.StockUpdate(metrics.OutcomeApplied)
		slog.Info("stock updated", "user", claims.Username, "extract", id, "delta", delta, "quantity", qty)
		redirectOK(w, r, back, fmt.Sprintf("Quantity on hand is now %d.", qty))
	case errors.Is(err, store.ErrInsufficientStock):
		s.Metrics.StockUpdate(metrics.OutcomeInsufficient)
		redirectError(w, r, back, fmt.Sprintf("Not enough stock: only %d on hand.", qty))
	case errors.Is(err, store.ErrNotFound):
		s.Metrics.StockUpdate(metrics.OutcomeNotFound)
		redirectError(w, r, "/extracts", "That extract no longer exists.")
	default:
		s.Metrics.StockUpdate(metrics.OutcomeError)
		slog.Error("failed to update stock", "error", err)
		redirectError(w, r, back, "Could not update stock.")
	}
}

// ExtractLabelSubmit handles POST /extracts/{id}/label.
func (s *Server) ExtractLabelSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/extracts/%d", id)

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	file, _, err := r.FormFile("image")
	if err != nil {
		redirectError(w, r, back, "Choose a photo to upload.")
		return
	}
	defer file.Close()

	label, err := imaging.ProcessLabel(file)
	if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
		redirectError(w, r, back, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to process label photo", "error", err)
		redirectError(w, r, back, "Could not read the photo.")
		return
	}

	if err := store.SetExtractLabel(r.Context(), s.DB, id, label.Data, label.MIME); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			redirectError(w, r, "/extracts", "That extract no longer exists.")
			return
		}
		slog.Error("failed to save label photo", "error", err)
		redirectError(w, r, back, "Could not save the photo.")
		return
	}

	slog.Info("label photo uploaded", "user", claims.Username, "extract", id, "width", label.Width, "height", label.Height)
	redirectOK(w, r, back, "Label photo saved.")
}

// ExtractLabelGet handles GET /extracts/{id}/label.
func (s *Server) ExtractLabelGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	data, mime, err := store.GetExtractLabel(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get label photo", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write label response", "error", err)
	}
}

// userMessage returns the part of a validation error worth showing on a page.
func userMessage(err error) string {
	if errors.Is(err, model.ErrInvalid) {
		msg := strings.TrimPrefix(err.Error(), model.ErrInvalid.Error()+": ")
		if msg == "" {
			return "Invalid input."
		}
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	}
	return "Invalid input."
}
