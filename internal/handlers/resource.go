package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/validation"
)

// resource serves list/get/create/update/delete for one collection.
type resource[T any, P interface {
	*T
	models.Record
}] struct {
	h       *Handler
	noun    string
	plural  string
	records func(storage.Records) storage.Collection[T]

	// beforeSave runs after decoding and before validation. creating is false for updates.
	beforeSave func(ctx context.Context, store storage.Store, doc P, creating bool) error
}

func (rs *resource[T, P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			rs.get(w, r, id)
			return
		}
		rs.list(w, r)
	case http.MethodPost:
		rs.create(w, r)
	case http.MethodPut:
		rs.update(w, r, id)
	case http.MethodDelete:
		rs.delete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (rs *resource[T, P]) list(w http.ResponseWriter, r *http.Request) {
	store, ok := rs.h.stores.Store()
	if !ok {
		slog.Warn("Store not connected, returning empty list", "resource", rs.plural)
		writeJSON(w, http.StatusOK, []T{})
		return
	}

	docs, err := rs.records(store).List(r.Context())
	if err != nil {
		slog.Error("Failed to list records", "resource", rs.plural, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch %s", rs.plural))
		return
	}
	slog.Debug("Listed records", "resource", rs.plural, "count", len(docs))
	writeJSON(w, http.StatusOK, docs)
}

func (rs *resource[T, P]) get(w http.ResponseWriter, r *http.Request, id string) {
	store, ok := rs.h.stores.Store()
	if !ok {
		storeUnavailable(w)
		return
	}

	doc, err := rs.records(store).Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, rs.notFound())
		return
	}
	if err != nil {
		slog.Error("Failed to get record", "resource", rs.plural, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch %s", rs.noun))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rs *resource[T, P]) create(w http.ResponseWriter, r *http.Request) {
	store, ok := rs.h.stores.Store()
	if !ok {
		storeUnavailable(w)
		return
	}

	doc := P(new(T))
	if err := decodeBody(w, r, doc); err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	// Identity is always assigned by the store.
	*doc.Metadata() = models.Meta{}

	if !rs.save(w, r, store, doc, true) {
		return
	}
	if err := rs.records(store).Create(r.Context(), (*T)(doc)); err != nil {
		rs.writeSaveError(w, "add", err)
		return
	}

	slog.Info("Record created", "resource", rs.plural, "id", doc.Metadata().ID)
	writeJSON(w, http.StatusOK, doc)
}

func (rs *resource[T, P]) update(w http.ResponseWriter, r *http.Request, id string) {
	store, ok := rs.h.stores.Store()
	if !ok {
		storeUnavailable(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusNotFound, rs.notFound())
		return
	}

	existing, err := rs.records(store).Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, rs.notFound())
		return
	}
	if err != nil {
		slog.Error("Failed to load record for update", "resource", rs.plural, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update %s", rs.noun))
		return
	}

	// Merge: fields absent from the body keep their stored values.
	doc := P(existing)
	meta := *doc.Metadata()
	if err := decodeBody(w, r, doc); err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	*doc.Metadata() = meta

	if !rs.save(w, r, store, doc, false) {
		return
	}
	if err := rs.records(store).Update(r.Context(), existing); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, rs.notFound())
			return
		}
		rs.writeSaveError(w, "update", err)
		return
	}

	slog.Info("Record updated", "resource", rs.plural, "id", id)
	writeJSON(w, http.StatusOK, existing)
}

func (rs *resource[T, P]) delete(w http.ResponseWriter, r *http.Request, id string) {
	store, ok := rs.h.stores.Store()
	if !ok {
		storeUnavailable(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusNotFound, rs.notFound())
		return
	}

	err := rs.records(store).Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, rs.notFound())
		return
	}
	if err != nil {
		slog.Error("Failed to delete record", "resource", rs.plural, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete %s", rs.noun))
		return
	}

	slog.Info("Record deleted", "resource", rs.plural, "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// save runs the beforeSave hook and validation, writing the error response on failure.
func (rs *resource[T, P]) save(w http.ResponseWriter, r *http.Request, store storage.Store, doc P, creating bool) bool {
	verb := "update"
	if creating {
		verb = "add"
	}

	if rs.beforeSave != nil {
		if err := rs.beforeSave(r.Context(), store, doc, creating); err != nil {
			rs.writeSaveError(w, verb, err)
			return false
		}
	}
	if err := rs.h.validate.Struct(doc); err != nil {
		rs.writeSaveError(w, verb, err)
		return false
	}
	return true
}

func (rs *resource[T, P]) writeSaveError(w http.ResponseWriter, verb string, err error) {
	msg := fmt.Sprintf("Failed to %s %s", verb, rs.noun)
	switch {
	case validation.IsValidationError(err):
		slog.Warn("Validation failed", "resource", rs.plural, "error", err)
		writeErrorDetails(w, http.StatusInternalServerError, msg, err.Error())
	case errors.Is(err, storage.ErrConflict):
		writeErrorDetails(w, http.StatusConflict, msg, err.Error())
	default:
		slog.Error("Failed to save record", "resource", rs.plural, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func (rs *resource[T, P]) notFound() string {
	return fmt.Sprintf("%s not found", capitalize(rs.noun))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
