package handlers

import (
	"net/http"

	"github.com/mpa-academy/schooladmin/internal/connection"
)

type healthResponse struct {
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	StoreConnected string           `json:"storeConnected"`
	State          connection.State `json:"state"`
}

// health reports that the server is up and whether the store is connected.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	connected := "No"
	if _, ok := h.stores.Store(); ok {
		connected = "Yes"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "OK",
		Message:        "Server is running",
		StoreConnected: connected,
		State:          h.stores.State(),
	})
}
