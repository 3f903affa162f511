package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"sintonia/internal/apperr"
)

// respondWithError writes the same error body the handlers use
func respondWithError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message, "code": string(code)}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}

func respondWithAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := "internal server error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	} else {
		slog.Error("Request failed", "error", err)
	}
	respondWithError(w, status, apperr.CodeOf(err), message)
}
