package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samlnz/PS-controller/internal/coordinator"
)

func writeHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// writeCoordinatorError maps coordinator sentinels to 4xx codes.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrUnknownHouse):
		writeHTTPError(w, http.StatusBadRequest, "unknown_house")
	case errors.Is(err, coordinator.ErrInvalidStatus):
		writeHTTPError(w, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, coordinator.ErrInvalidQuality):
		writeHTTPError(w, http.StatusBadRequest, "invalid_quality")
	default:
		writeHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
