package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/validation"
)

// feeStructure serves the fee structure singleton. A missing structure reads as {}.
func (h *Handler) feeStructure(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		store, ok := h.stores.Store()
		if !ok {
			slog.Warn("Store not connected, returning empty fee structure")
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}

		fs, err := store.FeeStructure(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		if err != nil {
			slog.Error("Failed to fetch fee structure", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch fee structure")
			return
		}
		writeJSON(w, http.StatusOK, fs)

	case http.MethodPost:
		store, ok := h.stores.Store()
		if !ok {
			storeUnavailable(w)
			return
		}

		// Upsert: start from the stored structure so omitted grades are kept.
		fs, err := store.FeeStructure(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			fs = &models.FeeStructure{}
		} else if err != nil {
			slog.Error("Failed to load fee structure", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save fee structure")
			return
		}
		if err := decodeBody(w, r, fs); err != nil {
			writeErrorDetails(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		if err := store.SaveFeeStructure(r.Context(), fs); err != nil {
			slog.Error("Failed to save fee structure", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save fee structure")
			return
		}

		slog.Info("Fee structure saved")
		writeJSON(w, http.StatusOK, fs)

	default:
		methodNotAllowed(w)
	}
}

// termSettings serves the term settings singleton. Missing settings read as the
// first term of the current calendar year.
func (h *Handler) termSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		defaults := models.DefaultTermSettings(h.now())
		store, ok := h.stores.Store()
		if !ok {
			slog.Warn("Store not connected, returning default term settings")
			writeJSON(w, http.StatusOK, defaults)
			return
		}

		ts, err := store.TermSettings(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, defaults)
			return
		}
		if err != nil {
			slog.Error("Failed to fetch term settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch term settings")
			return
		}
		writeJSON(w, http.StatusOK, ts)

	case http.MethodPost:
		store, ok := h.stores.Store()
		if !ok {
			storeUnavailable(w)
			return
		}

		ts, err := store.TermSettings(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			ts = &models.TermSettings{}
		} else if err != nil {
			slog.Error("Failed to load term settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save term settings")
			return
		}
		if err := decodeBody(w, r, ts); err != nil {
			writeErrorDetails(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		if err := h.validate.Struct(ts); err != nil {
			if validation.IsValidationError(err) {
				writeErrorDetails(w, http.StatusInternalServerError, "Failed to save term settings", err.Error())
				return
			}
			slog.Error("Failed to validate term settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save term settings")
			return
		}
		if err := store.SaveTermSettings(r.Context(), ts); err != nil {
			slog.Error("Failed to save term settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save term settings")
			return
		}

		slog.Info("Term settings saved", "term", ts.CurrentTerm, "year", ts.CurrentYear)
		writeJSON(w, http.StatusOK, ts)

	default:
		methodNotAllowed(w)
	}
}
