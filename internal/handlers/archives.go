package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

// learnerArchives lists archived years, or the learners archived for ?year=.
func (h *Handler) learnerArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	yearParam := r.URL.Query().Get("year")
	store, ok := h.stores.Store()
	if !ok {
		slog.Warn("Store not connected, returning empty archive list")
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	if yearParam == "" {
		years, err := store.ArchiveYears(r.Context())
		if err != nil {
			slog.Error("Failed to fetch archived years", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch archived years")
			return
		}
		writeJSON(w, http.StatusOK, years)
		return
	}

	year, err := strconv.Atoi(yearParam)
	if err != nil {
		writeError(w, http.StatusNotFound, "Archive not found")
		return
	}
	archive, err := store.Archive(r.Context(), year)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Archive not found")
		return
	}
	if err != nil {
		slog.Error("Failed to fetch archived learners", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch archived learners")
		return
	}
	writeJSON(w, http.StatusOK, archive.Learners)
}

// newAcademicYear runs the rollover and reports its result.
func (h *Handler) newAcademicYear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	store, ok := h.stores.Store()
	if !ok {
		storeUnavailable(w)
		return
	}

	slog.Info("Starting new academic year")
	result, err := h.rollover.Run(r.Context(), store)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, rollover.ErrNoTermSettings):
		writeError(w, http.StatusBadRequest, "Term settings not found")
	case errors.Is(err, rollover.ErrAlreadyArchived), errors.Is(err, rollover.ErrInProgress):
		writeErrorDetails(w, http.StatusConflict, "Failed to start new academic year", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to start new academic year")
	}
}
