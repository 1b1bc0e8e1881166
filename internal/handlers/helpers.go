package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ternarybob/diario/internal/models"
)

// RequireMethod validates that the request uses the given method. Returns
// false after writing the error response when it does not.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// statusForError maps pipeline error kinds onto HTTP status codes: caller
// mistakes are 400, everything else is 500.
func statusForError(err error) int {
	switch models.KindOf(err) {
	case models.ErrKindInputInvalid, models.ErrKindUnknownSpider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v. An empty body is allowed
// and leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
