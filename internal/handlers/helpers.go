// Package handlers exposes the HTTP surface on top of the services layer.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sevasetu/seva-gobackend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, fmt.Sprintf(`{"error":%q}`, msg), status)
}

// serviceError maps the services error taxonomy onto HTTP statuses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case services.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case services.IsInvariantViolation(err):
		writeError(w, http.StatusInternalServerError, "internal reconciliation error")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
