package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps organizer errors onto HTTP status codes.
func statusFor(err error) int {
	var loadErr *reorganizer.LoadError
	var rebuildErr *reorganizer.RebuildError
	switch {
	case errors.Is(err, reorganizer.ErrNotPDF):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, reorganizer.ErrNoDocument), errors.Is(err, reorganizer.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, reorganizer.ErrInvalidDropTarget),
		errors.Is(err, reorganizer.ErrInvalidMove),
		errors.Is(err, reorganizer.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, reorganizer.ErrUnknownPage):
		return http.StatusNotFound
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rebuildErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeOrganizerError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
