// Package api provides HTTP handlers for the StressSense API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/stresssense/internal/checkin"
	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/session"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 << 10

// Handler provides common handler utilities.
type Handler struct {
	store      *session.Store
	controller *checkin.Controller
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(store *session.Store, controller *checkin.Controller) *Handler {
	return &Handler{
		store:      store,
		controller: controller,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// fail maps err onto a status code and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkin.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkin.ErrTurnInProgress):
		Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
